package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/event"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
)

func ev(user string, t event.Type, ts time.Time) event.Event {
	return event.Event{
		UserID:    shared.UserID(user),
		Type:      t,
		Timestamp: ts,
	}
}

func TestComputeFunnel_LaunchToOnboarding(t *testing.T) {
	now := time.Now().UTC()
	var events []event.Event

	// 100 users launch; 40 of them also complete onboarding.
	for i := 0; i < 100; i++ {
		user := fmt.Sprintf("user-%03d", i)
		events = append(events, ev(user, event.TypeAppLaunch, now))
		if i < 40 {
			events = append(events, ev(user, event.TypeOnboardingComplete, now))
		}
	}

	steps, err := ComputeFunnel(events, []event.Type{event.TypeAppLaunch, event.TypeOnboardingComplete})
	require.NoError(t, err)
	require.Len(t, steps, 2)

	assert.Equal(t, "app_launch", steps[0].StepName)
	assert.Equal(t, 0, steps[0].StepIndex)
	assert.Equal(t, 100, steps[0].UserCount)
	assert.Equal(t, 1.0, steps[0].ConversionRate)

	assert.Equal(t, "onboarding_complete", steps[1].StepName)
	assert.Equal(t, 40, steps[1].UserCount)
	assert.InDelta(t, 0.4, steps[1].ConversionRate, 1e-9)
}

func TestComputeFunnel_DistinctUsersNotEvents(t *testing.T) {
	now := time.Now().UTC()
	events := []event.Event{
		ev("user-1", event.TypeAppLaunch, now),
		ev("user-1", event.TypeAppLaunch, now.Add(time.Minute)),
		ev("user-1", event.TypeAppLaunch, now.Add(2*time.Minute)),
		ev("user-2", event.TypeAppLaunch, now),
	}

	steps, err := ComputeFunnel(events, []event.Type{event.TypeAppLaunch})
	require.NoError(t, err)
	assert.Equal(t, 2, steps[0].UserCount)
}

func TestComputeFunnel_NonCausalCounting(t *testing.T) {
	now := time.Now().UTC()
	// user-1 fired the second step without ever firing the first.
	events := []event.Event{
		ev("user-1", event.TypeOnboardingComplete, now),
	}

	steps, err := ComputeFunnel(events, []event.Type{event.TypeAppLaunch, event.TypeOnboardingComplete})
	require.NoError(t, err)

	assert.Equal(t, 0, steps[0].UserCount)
	assert.Equal(t, 1, steps[1].UserCount)
	// Previous step had no users: rate is 0, never NaN or Inf.
	assert.Equal(t, 0.0, steps[1].ConversionRate)
}

func TestComputeFunnel_EmptyWindow(t *testing.T) {
	steps, err := ComputeFunnel(nil, []event.Type{event.TypeAppLaunch, event.TypeVTPRStart})
	require.NoError(t, err)

	assert.Equal(t, 0, steps[0].UserCount)
	assert.Equal(t, 1.0, steps[0].ConversionRate, "step 0 rate is 1.0 by definition")
	assert.Equal(t, 0.0, steps[1].ConversionRate)
}

func TestComputeFunnel_RatesStayInRange(t *testing.T) {
	now := time.Now().UTC()
	var events []event.Event
	for i := 0; i < 30; i++ {
		user := fmt.Sprintf("user-%02d", i)
		events = append(events, ev(user, event.TypeAppLaunch, now))
		if i%2 == 0 {
			events = append(events, ev(user, event.TypeVTPRStart, now))
		}
		if i%3 == 0 {
			events = append(events, ev(user, event.TypeVTPRComplete, now))
		}
	}

	steps, err := ComputeFunnel(events, []event.Type{
		event.TypeAppLaunch, event.TypeVTPRStart, event.TypeVTPRComplete,
	})
	require.NoError(t, err)

	for _, s := range steps {
		assert.GreaterOrEqual(t, s.ConversionRate, 0.0)
		assert.LessOrEqual(t, s.ConversionRate, 1.0)
	}
}

func TestComputeFunnel_NoSteps(t *testing.T) {
	_, err := ComputeFunnel(nil, nil)
	assert.ErrorIs(t, err, shared.ErrEmptyFunnel)
}

func TestValidateSteps(t *testing.T) {
	steps, err := ValidateSteps([]string{"app_launch", "vtpr_start"})
	require.NoError(t, err)
	assert.Equal(t, []event.Type{event.TypeAppLaunch, event.TypeVTPRStart}, steps)

	_, err = ValidateSteps([]string{"app_launch", "not_a_real_type"})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))

	_, err = ValidateSteps(nil)
	assert.ErrorIs(t, err, shared.ErrEmptyFunnel)
}

func TestComputeActivation(t *testing.T) {
	a := ComputeActivation(12, 48)
	assert.Equal(t, 12, a.ActivatedUsers)
	assert.Equal(t, 48, a.NewUsers)
	assert.InDelta(t, 0.25, a.Rate, 1e-9)

	// Zero new users: rate 0, not NaN.
	a = ComputeActivation(5, 0)
	assert.Equal(t, 0.0, a.Rate)
}

func TestComputeRetention(t *testing.T) {
	now := time.Now().UTC()
	events := []event.Event{
		// user-1: three sessions - retained.
		ev("user-1", event.TypeSessionStart, now),
		ev("user-1", event.TypeSessionStart, now.Add(time.Hour)),
		ev("user-1", event.TypeSessionStart, now.Add(2*time.Hour)),
		// user-2: one session - not retained.
		ev("user-2", event.TypeSessionStart, now),
		// user-3: two sessions - retained.
		ev("user-3", event.TypeSessionStart, now),
		ev("user-3", event.TypeSessionStart, now.Add(time.Hour)),
		// user-4: plenty of activity but no session starts.
		ev("user-4", event.TypeVTPRStart, now),
	}

	r := ComputeRetention(events, DefaultSessionStartType)
	assert.Equal(t, 3, r.SessionUsers)
	assert.Equal(t, 2, r.ReturningUsers)
	assert.InDelta(t, 2.0/3.0, r.Rate, 1e-9)
}

func TestComputeRetention_NoUsers(t *testing.T) {
	r := ComputeRetention(nil, DefaultSessionStartType)
	assert.Equal(t, 0, r.SessionUsers)
	assert.Equal(t, 0.0, r.Rate)
}

func TestComputeTimeSeries(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	window := shared.TimeRange{From: from, To: from.Add(3 * 24 * time.Hour)}

	events := []event.Event{
		ev("user-1", event.TypeAppLaunch, from.Add(2*time.Hour)),
		ev("user-2", event.TypeAppLaunch, from.Add(5*time.Hour)),
		ev("user-1", event.TypeAppLaunch, from.Add(26*time.Hour)),
		// Outside the window: ignored.
		ev("user-9", event.TypeAppLaunch, from.Add(100*time.Hour)),
	}

	buckets, err := ComputeTimeSeries(events, window, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, buckets, 3)

	assert.Equal(t, from, buckets[0].Start)
	assert.Equal(t, 2, buckets[0].Count)
	assert.Equal(t, 2, buckets[0].UniqueUsers)

	assert.Equal(t, 1, buckets[1].Count)
	assert.Equal(t, 1, buckets[1].UniqueUsers)

	assert.Equal(t, 0, buckets[2].Count, "empty buckets are present, not skipped")
}

func TestComputeTimeSeries_PartialTrailingBucket(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	window := shared.TimeRange{From: from, To: from.Add(36 * time.Hour)}

	buckets, err := ComputeTimeSeries(nil, window, 24*time.Hour)
	require.NoError(t, err)
	assert.Len(t, buckets, 2)
}

func TestComputeTimeSeries_InvalidWindow(t *testing.T) {
	from := time.Now().UTC()
	_, err := ComputeTimeSeries(nil, shared.TimeRange{From: from, To: from}, time.Hour)
	assert.ErrorIs(t, err, shared.ErrInvalidWindow)
}

func TestComputeTimeSeries_TooManyBuckets(t *testing.T) {
	from := time.Now().UTC()
	window := shared.TimeRange{From: from, To: from.Add(30 * 24 * time.Hour)}

	_, err := ComputeTimeSeries(nil, window, time.Second)
	assert.ErrorIs(t, err, ErrTooManyBuckets)
}

func TestCountingHelpers(t *testing.T) {
	now := time.Now().UTC()
	events := []event.Event{
		ev("user-1", event.TypeAppLaunch, now),
		ev("user-1", event.TypeAppLaunch, now.AddDate(0, 0, 1)),
		ev("user-2", event.TypeVTPRStart, now),
	}

	assert.Equal(t, 1, DistinctUsers(events, event.TypeAppLaunch))
	assert.Equal(t, 0, DistinctUsers(events, event.TypeFeedbackSubmitted))

	counts := CountByType(events)
	assert.Equal(t, 2, counts[event.TypeAppLaunch])
	assert.Equal(t, 1, counts[event.TypeVTPRStart])

	assert.Equal(t, 2, ActiveDays(events))
}
