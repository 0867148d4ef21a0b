package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailySchedule_NextSameDay(t *testing.T) {
	s := NewDailySchedule(2, 30, time.UTC)

	now := time.Date(2026, 3, 14, 1, 0, 0, 0, time.UTC)
	next := s.Next(now)

	assert.Equal(t, time.Date(2026, 3, 14, 2, 30, 0, 0, time.UTC), next)
}

func TestDailySchedule_NextWrapsToTomorrow(t *testing.T) {
	s := NewDailySchedule(2, 30, time.UTC)

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	next := s.Next(now)

	assert.Equal(t, time.Date(2026, 3, 15, 2, 30, 0, 0, time.UTC), next)
}

func TestDailySchedule_ExactTimeFiresNextDay(t *testing.T) {
	s := NewDailySchedule(2, 30, time.UTC)

	now := time.Date(2026, 3, 14, 2, 30, 0, 0, time.UTC)
	next := s.Next(now)

	assert.Equal(t, time.Date(2026, 3, 15, 2, 30, 0, 0, time.UTC), next)
}

func TestDailySchedule_RespectsLocation(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	s := NewDailySchedule(9, 0, loc)

	// 07:00 UTC in winter is 08:00 Berlin, so the 09:00 run is still ahead.
	now := time.Date(2026, 1, 10, 7, 0, 0, 0, time.UTC)
	next := s.Next(now)

	assert.Equal(t, time.Date(2026, 1, 10, 9, 0, 0, 0, loc), next)
}

func TestDailySchedule_NilLocationDefaultsUTC(t *testing.T) {
	s := NewDailySchedule(0, 0, nil)
	assert.Equal(t, time.UTC, s.Location)
	assert.Equal(t, "@daily 00:00 UTC", s.String())
}
