package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLearningSession_PhaseProgression(t *testing.T) {
	s := &LearningSession{Phase: PhaseContextGuessing}

	s.RecordAttempt()
	s.RecordAttempt()
	assert.Equal(t, 2, s.AttemptsThisPhase)

	s.AdvancePhase()
	assert.Equal(t, PhasePronunciationTraining, s.Phase)
	assert.Equal(t, 0, s.AttemptsThisPhase, "phase change resets the counter")

	s.AdvancePhase()
	assert.Equal(t, PhaseCompleted, s.Phase)

	s.AdvancePhase()
	assert.Equal(t, PhaseCompleted, s.Phase, "completed is terminal")
}

func TestLearningSession_Elapsed(t *testing.T) {
	start := time.Now()
	s := &LearningSession{StartedAt: start}
	assert.Equal(t, 30*time.Second, s.Elapsed(start.Add(30*time.Second)))

	var zero LearningSession
	assert.Equal(t, time.Duration(0), zero.Elapsed(time.Now()))
}

func TestSessionTracker_TouchSameItemKeepsSession(t *testing.T) {
	st := NewSessionTracker()

	first := st.Touch("user-1", "airport")
	first.RecordAttempt()

	again := st.Touch("user-1", "airport")
	assert.Same(t, first, again)
	assert.Equal(t, 1, again.AttemptsThisPhase)
}

func TestSessionTracker_TouchNewItemResets(t *testing.T) {
	st := NewSessionTracker()

	first := st.Touch("user-1", "airport")
	first.RecordAttempt()
	first.AdvancePhase()

	next := st.Touch("user-1", "ticket")
	assert.NotSame(t, first, next)
	assert.Equal(t, ItemID("ticket"), next.ItemID)
	assert.Equal(t, PhaseContextGuessing, next.Phase)
	assert.Equal(t, 0, next.AttemptsThisPhase)
}

func TestSessionTracker_StartItemDiscardsPrevious(t *testing.T) {
	st := NewSessionTracker()

	st.StartItem("user-1", "airport")
	st.StartItem("user-1", "ticket")

	s, ok := st.Current("user-1")
	require.True(t, ok)
	assert.Equal(t, ItemID("ticket"), s.ItemID)
	assert.Equal(t, 1, st.ActiveCount())
}

func TestSessionTracker_Abandon(t *testing.T) {
	st := NewSessionTracker()
	st.StartItem("user-1", "airport")
	st.StartItem("user-2", "ticket")

	st.Abandon("user-1")

	_, ok := st.Current("user-1")
	assert.False(t, ok)
	assert.Equal(t, 1, st.ActiveCount())
}

func TestSessionTracker_IndependentUsers(t *testing.T) {
	st := NewSessionTracker()

	a := st.Touch("user-a", "airport")
	b := st.Touch("user-b", "airport")
	a.RecordAttempt()

	assert.Equal(t, 1, a.AttemptsThisPhase)
	assert.Equal(t, 0, b.AttemptsThisPhase)
	assert.Equal(t, 2, st.ActiveCount())
}
