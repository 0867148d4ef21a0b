package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
)

func testKey() Key {
	return Key{UserID: "user-1", UnitGroupID: "travel-basics", ItemID: "airport"}
}

func TestUnitGroupID_IsValid(t *testing.T) {
	assert.True(t, UnitGroupID("travel-basics").IsValid())
	assert.True(t, UnitGroupID("g1").IsValid())
	assert.False(t, UnitGroupID("").IsValid())
	assert.False(t, UnitGroupID("has space").IsValid())
	assert.False(t, UnitGroupID("has/slash").IsValid())
}

func TestItemID_IsValid(t *testing.T) {
	assert.True(t, ItemID("airport").IsValid())
	assert.False(t, ItemID("").IsValid())
	assert.False(t, ItemID("a/b").IsValid())
}

func TestKey_GroupKey(t *testing.T) {
	k := testKey()
	assert.Equal(t, "user-1/travel-basics", k.GroupKey())
	assert.Equal(t, "user-1/travel-basics/airport", k.String())
}

func TestNewRecord_StartsLocked(t *testing.T) {
	now := time.Now().UTC()
	r := NewRecord(testKey(), now)

	assert.Equal(t, StatusLocked, r.Status)
	assert.Equal(t, 0, r.Attempts)
	assert.Equal(t, 0, r.CorrectAttempts)
	assert.Nil(t, r.LastAttemptAt)
	assert.Equal(t, now, r.CreatedAt)
}

func TestRecord_RegisterAttempt_Incorrect(t *testing.T) {
	now := time.Now().UTC()
	r := NewRecord(testKey(), now)

	r.RegisterAttempt(false, now)

	assert.Equal(t, 1, r.Attempts)
	assert.Equal(t, 0, r.CorrectAttempts)
	assert.Equal(t, StatusLocked, r.Status)
	require.NotNil(t, r.LastAttemptAt)
	assert.Equal(t, now, *r.LastAttemptAt)
}

func TestRecord_RegisterAttempt_FirstCorrectUnlocks(t *testing.T) {
	now := time.Now().UTC()
	r := NewRecord(testKey(), now)

	r.RegisterAttempt(true, now)

	assert.Equal(t, 1, r.Attempts)
	assert.Equal(t, 1, r.CorrectAttempts)
	assert.Equal(t, StatusUnlocked, r.Status)
}

func TestRecord_RegisterAttempt_IncorrectNeverRegresses(t *testing.T) {
	now := time.Now().UTC()
	r := NewRecord(testKey(), now)
	r.RegisterAttempt(true, now)
	require.NoError(t, r.AdvanceStatus(StatusCompleted, now))

	r.RegisterAttempt(false, now.Add(time.Minute))

	assert.Equal(t, StatusCompleted, r.Status)
	assert.Equal(t, 2, r.Attempts)
	assert.Equal(t, 1, r.CorrectAttempts)
}

func TestRecord_CorrectNeverExceedsAttempts(t *testing.T) {
	now := time.Now().UTC()
	r := NewRecord(testKey(), now)

	outcomes := []bool{true, false, true, true, false, false, true}
	for _, ok := range outcomes {
		r.RegisterAttempt(ok, now)
		assert.LessOrEqual(t, r.CorrectAttempts, r.Attempts)
	}
	assert.Equal(t, 7, r.Attempts)
	assert.Equal(t, 4, r.CorrectAttempts)
}

func TestRecord_AdvanceStatus_ForwardOnly(t *testing.T) {
	now := time.Now().UTC()
	r := NewRecord(testKey(), now)

	require.NoError(t, r.AdvanceStatus(StatusUnlocked, now))
	require.NoError(t, r.AdvanceStatus(StatusCompleted, now))

	err := r.AdvanceStatus(StatusUnlocked, now)
	assert.ErrorIs(t, err, shared.ErrStatusRegression)
	assert.Equal(t, StatusCompleted, r.Status)
}

func TestRecord_AdvanceStatus_SameStatusIsNoop(t *testing.T) {
	now := time.Now().UTC()
	r := NewRecord(testKey(), now)
	require.NoError(t, r.AdvanceStatus(StatusUnlocked, now))

	updated := r.UpdatedAt
	require.NoError(t, r.AdvanceStatus(StatusUnlocked, now.Add(time.Hour)))
	assert.Equal(t, updated, r.UpdatedAt)
}

func TestRecord_Accuracy(t *testing.T) {
	now := time.Now().UTC()
	r := NewRecord(testKey(), now)
	assert.Equal(t, 0.0, r.Accuracy())

	r.RegisterAttempt(true, now)
	r.RegisterAttempt(true, now)
	r.RegisterAttempt(false, now)
	r.RegisterAttempt(true, now)
	assert.InDelta(t, 0.75, r.Accuracy(), 1e-9)
}

func TestRecord_MeetsStreakBar(t *testing.T) {
	now := time.Now().UTC()

	r := NewRecord(testKey(), now)
	for i := 0; i < 4; i++ {
		r.RegisterAttempt(true, now)
	}
	r.RegisterAttempt(false, now)
	assert.True(t, r.MeetsStreakBar(), "4/5 = 0.8 meets the bar")

	r.RegisterAttempt(false, now)
	assert.False(t, r.MeetsStreakBar(), "4/6 falls below the bar")
}

func TestRecord_Clone_Independent(t *testing.T) {
	now := time.Now().UTC()
	r := NewRecord(testKey(), now)
	r.RegisterAttempt(true, now)

	clone := r.Clone()
	clone.RegisterAttempt(false, now)

	assert.Equal(t, 1, r.Attempts)
	assert.Equal(t, 2, clone.Attempts)
	assert.NotSame(t, r.LastAttemptAt, clone.LastAttemptAt)
}

func TestMasteredCount(t *testing.T) {
	now := time.Now().UTC()
	records := make([]*Record, 0, 3)
	for _, item := range []ItemID{"a", "b", "c"} {
		r := NewRecord(Key{UserID: "u", UnitGroupID: "g", ItemID: item}, now)
		records = append(records, r)
	}
	records[0].RegisterAttempt(true, now)
	records[1].RegisterAttempt(false, now)
	records[2].RegisterAttempt(true, now)

	assert.Equal(t, 2, MasteredCount(records))
}

func TestStreak_StopsAtFirstMiss(t *testing.T) {
	now := time.Now().UTC()
	mk := func(correct, wrong int) *Record {
		r := NewRecord(testKey(), now)
		for i := 0; i < correct; i++ {
			r.RegisterAttempt(true, now)
		}
		for i := 0; i < wrong; i++ {
			r.RegisterAttempt(false, now)
		}
		return r
	}

	// Most recent first: two clean records, then one below the bar,
	// then another clean one that must not count.
	records := []*Record{mk(1, 0), mk(4, 1), mk(1, 1), mk(3, 0)}
	assert.Equal(t, 2, Streak(records))

	assert.Equal(t, 0, Streak([]*Record{mk(0, 1)}))
	assert.Equal(t, 0, Streak(nil))
}
