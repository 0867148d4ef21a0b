package milestone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/progress"
)

func update(newlyMastered bool) Update {
	return Update{
		UserID:        "user-1",
		UnitGroupID:   "travel-basics",
		ItemID:        "airport",
		NewlyMastered: newlyMastered,
	}
}

func types(ms []Milestone) []Type {
	out := make([]Type, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Type)
	}
	return out
}

func TestDetect_KeywordCompleted(t *testing.T) {
	d := NewDetector()

	ms := d.Detect(update(true),
		progress.Snapshot{MasteredCount: 0, TotalCount: 10},
		progress.Snapshot{MasteredCount: 1, TotalCount: 10})

	require.Len(t, ms, 1)
	assert.Equal(t, TypeKeywordCompleted, ms[0].Type)
	assert.Equal(t, progress.ItemID("airport"), ms[0].ItemID)
	assert.False(t, ms[0].IsTerminal())
}

func TestDetect_NoMilestoneWithoutMastery(t *testing.T) {
	d := NewDetector()

	ms := d.Detect(update(false),
		progress.Snapshot{MasteredCount: 3, TotalCount: 10},
		progress.Snapshot{MasteredCount: 3, TotalCount: 10})

	assert.Empty(t, ms)
}

func TestDetect_HalfCompleteFiresOnCrossing(t *testing.T) {
	d := NewDetector()

	// 10 items: half is 5. Crossing 4 → 5 fires.
	ms := d.Detect(update(true),
		progress.Snapshot{MasteredCount: 4, TotalCount: 10},
		progress.Snapshot{MasteredCount: 5, TotalCount: 10})
	assert.Contains(t, types(ms), TypeHalfComplete)

	// 5 → 6 does not fire again.
	ms = d.Detect(update(true),
		progress.Snapshot{MasteredCount: 5, TotalCount: 10},
		progress.Snapshot{MasteredCount: 6, TotalCount: 10})
	assert.NotContains(t, types(ms), TypeHalfComplete)
}

func TestDetect_HalfCompleteOddTotal(t *testing.T) {
	d := NewDetector()

	// 7 items: half is floor(7/2) = 3.
	ms := d.Detect(update(true),
		progress.Snapshot{MasteredCount: 2, TotalCount: 7},
		progress.Snapshot{MasteredCount: 3, TotalCount: 7})
	assert.Contains(t, types(ms), TypeHalfComplete)
}

func TestDetect_SingleItemGroupSkipsHalf(t *testing.T) {
	d := NewDetector()

	ms := d.Detect(update(true),
		progress.Snapshot{MasteredCount: 0, TotalCount: 1},
		progress.Snapshot{MasteredCount: 1, TotalCount: 1})

	assert.Equal(t, []Type{TypeKeywordCompleted, TypeAllComplete}, types(ms))
}

func TestDetect_PerfectStreakOnCrossing(t *testing.T) {
	d := NewDetector()

	ms := d.Detect(update(true),
		progress.Snapshot{MasteredCount: 4, TotalCount: 20, Streak: 4},
		progress.Snapshot{MasteredCount: 5, TotalCount: 20, Streak: 5})
	assert.Contains(t, types(ms), TypePerfectStreak)

	// Already at or past the threshold: no repeat.
	ms = d.Detect(update(true),
		progress.Snapshot{MasteredCount: 5, TotalCount: 20, Streak: 5},
		progress.Snapshot{MasteredCount: 6, TotalCount: 20, Streak: 6})
	assert.NotContains(t, types(ms), TypePerfectStreak)
}

func TestDetect_SpeedBonus(t *testing.T) {
	d := NewDetector()
	prev := progress.Snapshot{MasteredCount: 1, TotalCount: 10}
	curr := progress.Snapshot{MasteredCount: 2, TotalCount: 10}

	u := update(true)
	u.SessionElapsed = 12 * time.Second
	ms := d.Detect(u, prev, curr)
	require.Contains(t, types(ms), TypeSpeedBonus)
	for _, m := range ms {
		if m.Type == TypeSpeedBonus {
			assert.Equal(t, int64(12000), m.Payload()["elapsed_ms"])
		}
	}

	// Exactly at the limit: no bonus.
	u.SessionElapsed = SpeedBonusMax
	assert.NotContains(t, types(d.Detect(u, prev, curr)), TypeSpeedBonus)

	// No timing data: no bonus.
	u.SessionElapsed = 0
	assert.NotContains(t, types(d.Detect(u, prev, curr)), TypeSpeedBonus)

	// Fast but not newly mastered: no bonus.
	u = update(false)
	u.SessionElapsed = 5 * time.Second
	assert.NotContains(t, types(d.Detect(u, prev, prev)), TypeSpeedBonus)
}

func TestDetect_AllCompleteExactlyOnce(t *testing.T) {
	d := NewDetector()

	ms := d.Detect(update(true),
		progress.Snapshot{MasteredCount: 9, TotalCount: 10},
		progress.Snapshot{MasteredCount: 10, TotalCount: 10})
	require.Contains(t, types(ms), TypeAllComplete)

	// Re-checking after completion never re-fires the gate.
	ms = d.Detect(update(false),
		progress.Snapshot{MasteredCount: 10, TotalCount: 10},
		progress.Snapshot{MasteredCount: 10, TotalCount: 10})
	assert.NotContains(t, types(ms), TypeAllComplete)

	ms = d.Detect(update(true),
		progress.Snapshot{MasteredCount: 10, TotalCount: 10},
		progress.Snapshot{MasteredCount: 10, TotalCount: 10})
	assert.NotContains(t, types(ms), TypeAllComplete)
}

func TestDetect_ZeroTotalNeverCompletes(t *testing.T) {
	d := NewDetector()

	ms := d.Detect(update(true),
		progress.Snapshot{MasteredCount: 0, TotalCount: 0},
		progress.Snapshot{MasteredCount: 1, TotalCount: 0})

	assert.Equal(t, []Type{TypeKeywordCompleted}, types(ms))
}

func TestDetect_FifteenthKeywordFiresStreakAndCompletion(t *testing.T) {
	d := NewDetector()

	// 15-item group, accuracy clean on the last five: the 15th correct
	// attempt lands the streak and the magic moment together.
	ms := d.Detect(update(true),
		progress.Snapshot{MasteredCount: 14, TotalCount: 15, Streak: 4},
		progress.Snapshot{MasteredCount: 15, TotalCount: 15, Streak: 5})

	assert.Equal(t, []Type{TypeKeywordCompleted, TypePerfectStreak, TypeAllComplete}, types(ms))
	last := ms[len(ms)-1]
	assert.True(t, last.IsTerminal())
}

func TestDetect_EmissionOrder(t *testing.T) {
	d := NewDetector()

	// 2-item group: mastering the first item fast with a long streak
	// fires keyword, half, streak, and speed in declaration order.
	u := update(true)
	u.SessionElapsed = 3 * time.Second
	ms := d.Detect(u,
		progress.Snapshot{MasteredCount: 0, TotalCount: 2, Streak: 4},
		progress.Snapshot{MasteredCount: 1, TotalCount: 2, Streak: 5})

	assert.Equal(t, []Type{TypeKeywordCompleted, TypeHalfComplete, TypePerfectStreak, TypeSpeedBonus}, types(ms))
}

func TestMilestone_Payload(t *testing.T) {
	m := Milestone{
		Type:          TypeAllComplete,
		UserID:        "user-1",
		UnitGroupID:   "travel-basics",
		MasteredCount: 15,
		TotalCount:    15,
	}

	p := m.Payload()
	assert.Equal(t, "all_complete", p["type"])
	assert.Equal(t, "user-1", p["user_id"])
	assert.Equal(t, 15, p["mastered_count"])
	assert.NotContains(t, p, "item_id")
}
