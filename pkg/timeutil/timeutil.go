// Package timeutil provides UTC time utilities for analytics bucketing.
// All learner-facing clients live in their own timezones, so every metric
// window and bucket boundary is computed in UTC to keep aggregates
// comparable. No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// ToUTC converts a time to UTC.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// Date creates a UTC time with the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// DateTime creates a UTC time with the given date and time.
func DateTime(year, month, day, hour, min, sec int) time.Time {
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC)
}

// StartOfDay returns the start of the day (00:00:00) in UTC.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the end of the day (23:59:59.999999999) in UTC.
func EndOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, 999999999, time.UTC)
}

// StartOfWeek returns the start of the week (Monday 00:00:00) in UTC.
func StartOfWeek(t time.Time) time.Time {
	u := t.UTC()
	weekday := int(u.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	daysToSubtract := weekday - 1 // Monday = 1
	return StartOfDay(u.AddDate(0, 0, -daysToSubtract))
}

// StartOfMonth returns the start of the month in UTC.
func StartOfMonth(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// IsToday checks if the given time is today in UTC.
func IsToday(t time.Time) bool {
	return IsSameDay(t, Now())
}

// IsYesterday checks if the given time is yesterday in UTC.
func IsYesterday(t time.Time) bool {
	return IsSameDay(t, Now().AddDate(0, 0, -1))
}

// DaysSince calculates the number of whole days since the given time.
func DaysSince(t time.Time) int {
	now := StartOfDay(Now())
	then := StartOfDay(t)
	return int(now.Sub(then).Hours() / 24)
}

// ══════════════════════════════════════════════════════════════════════════════
// BUCKETING
// ══════════════════════════════════════════════════════════════════════════════

// DefaultBucket is the bucket size used when callers do not specify one.
const DefaultBucket = 24 * time.Hour

// TruncateToBucket aligns t to the bucket grid anchored at origin.
func TruncateToBucket(t, origin time.Time, bucket time.Duration) time.Time {
	if bucket <= 0 {
		bucket = DefaultBucket
	}
	offset := t.Sub(origin)
	if offset < 0 {
		return origin
	}
	return origin.Add(offset / bucket * bucket)
}

// BucketsBetween returns how many buckets of the given size cover
// [from, to), counting a trailing partial bucket as a full one.
func BucketsBetween(from, to time.Time, bucket time.Duration) int {
	if bucket <= 0 {
		bucket = DefaultBucket
	}
	span := to.Sub(from)
	if span <= 0 {
		return 0
	}
	n := int(span / bucket)
	if span%bucket != 0 {
		n++
	}
	return n
}

// BucketIndex returns which bucket (anchored at from) the time falls
// into, or -1 when t precedes from.
func BucketIndex(t, from time.Time, bucket time.Duration) int {
	if bucket <= 0 {
		bucket = DefaultBucket
	}
	offset := t.Sub(from)
	if offset < 0 {
		return -1
	}
	return int(offset / bucket)
}

// ══════════════════════════════════════════════════════════════════════════════
// FORMATS & PARSING
// ══════════════════════════════════════════════════════════════════════════════

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatTime is the standard time format (HH:MM).
	FormatTime = "15:04"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
	// FormatDateTimeSeconds includes seconds.
	FormatDateTimeSeconds = "2006-01-02 15:04:05"
)

// FormatUTC formats a time in UTC with the given layout.
func FormatUTC(t time.Time, layout string) string {
	return t.UTC().Format(layout)
}

// FormatDateStr formats a time as a date string (YYYY-MM-DD) in UTC.
// This is the day-key used for daily rollups.
func FormatDateStr(t time.Time) string {
	return FormatUTC(t, FormatDate)
}

// ParseUTC parses a time string in UTC.
func ParseUTC(layout, value string) (time.Time, error) {
	return time.ParseInLocation(layout, value, time.UTC)
}

// ParseDateUTC parses a date string (YYYY-MM-DD) in UTC.
func ParseDateUTC(value string) (time.Time, error) {
	return ParseUTC(FormatDate, value)
}

// ParseRFC3339 parses an RFC3339 timestamp as used in API payloads,
// normalized to UTC.
func ParseRFC3339(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("timeutil: parse %q: %w", value, err)
	}
	return t.UTC(), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DAY MATH
// ══════════════════════════════════════════════════════════════════════════════

// IsSameDay checks if two times are on the same UTC day.
func IsSameDay(t1, t2 time.Time) bool {
	u1, u2 := t1.UTC(), t2.UTC()
	return u1.Year() == u2.Year() && u1.YearDay() == u2.YearDay()
}

// IsConsecutiveDay checks if t2 is the UTC day after t1.
func IsConsecutiveDay(t1, t2 time.Time) bool {
	return IsSameDay(t1.UTC().AddDate(0, 0, 1), t2)
}

// DaysBetween calculates the number of days between two times.
func DaysBetween(t1, t2 time.Time) int {
	d1 := StartOfDay(t1)
	d2 := StartOfDay(t2)
	days := int(d2.Sub(d1).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION TIMING
// ══════════════════════════════════════════════════════════════════════════════

// Quiet-hours bounds for push delivery, in the user's local clock hours.
const (
	// NotificationWindowStart is the earliest hour pushes go out.
	NotificationWindowStart = 9
	// NotificationWindowEnd is the hour after which pushes are held.
	NotificationWindowEnd = 22
)

// IsSafeNotificationTime checks if it's appropriate to send a push given
// the user's local time.
func IsSafeNotificationTime(local time.Time) bool {
	hour := local.Hour()
	return hour >= NotificationWindowStart && hour < NotificationWindowEnd
}

// NextSafeNotificationTime returns the next time a push may be delivered
// in the user's local clock.
func NextSafeNotificationTime(local time.Time) time.Time {
	hour := local.Hour()

	if hour < NotificationWindowStart {
		return time.Date(local.Year(), local.Month(), local.Day(),
			NotificationWindowStart, 0, 0, 0, local.Location())
	}
	if hour >= NotificationWindowEnd {
		tomorrow := local.AddDate(0, 0, 1)
		return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(),
			NotificationWindowStart, 0, 0, 0, local.Location())
	}
	return local
}
