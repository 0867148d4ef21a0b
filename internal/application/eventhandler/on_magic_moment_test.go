package eventhandler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/notify"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
)

var errGateDown = errors.New("stage gate: connection refused")

type unlockCall struct {
	userID      shared.UserID
	unitGroupID string
}

// fakeStageGate records unlock calls and can fail the first N attempts.
type fakeStageGate struct {
	mu         sync.Mutex
	unlocked   []unlockCall
	attempts   int
	failFirst  int
	alwaysFail bool
}

func (f *fakeStageGate) UnlockNextStage(_ context.Context, userID shared.UserID, unitGroupID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.alwaysFail || f.attempts <= f.failFirst {
		return errGateDown
	}
	f.unlocked = append(f.unlocked, unlockCall{userID: userID, unitGroupID: unitGroupID})
	return nil
}

func (f *fakeStageGate) stats() (attempts int, unlocked []unlockCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts, append([]unlockCall(nil), f.unlocked...)
}

func newMagicMomentHandler(gate *fakeStageGate, n *fakeNotifier, cfg MagicMomentConfig) *OnMagicMoment {
	return NewOnMagicMoment(gate, n, testRetrier(3), testBreaker(5), testRetrier(3), cfg, testLogger())
}

func TestOnMagicMoment_UnlocksAndCelebrates(t *testing.T) {
	gate := &fakeStageGate{}
	n := &fakeNotifier{}
	h := newMagicMomentHandler(gate, n, DefaultMagicMomentConfig())

	err := h.Handle(shared.NewMagicMomentEvent("user-1", "travel-basics", 8))

	require.NoError(t, err)
	_, unlocked := gate.stats()
	require.Len(t, unlocked, 1)
	assert.Equal(t, shared.UserID("user-1"), unlocked[0].userID)
	assert.Equal(t, "travel-basics", unlocked[0].unitGroupID)

	_, sent := n.stats()
	require.Len(t, sent, 1)
	assert.Equal(t, notify.KindMagicMoment, sent[0].Kind)
	assert.Equal(t, notify.PriorityHigh, sent[0].Priority)
	assert.Contains(t, sent[0].Body, "All 8 keywords")
}

func TestOnMagicMoment_GateFailureStillCelebrates(t *testing.T) {
	gate := &fakeStageGate{alwaysFail: true}
	n := &fakeNotifier{}
	h := newMagicMomentHandler(gate, n, DefaultMagicMomentConfig())

	err := h.Handle(shared.NewMagicMomentEvent("user-1", "travel-basics", 8))

	require.NoError(t, err, "unlock failures must never propagate")
	attempts, unlocked := gate.stats()
	assert.Equal(t, 3, attempts)
	assert.Empty(t, unlocked)

	_, sent := n.stats()
	assert.Len(t, sent, 1, "celebration must go out even when the unlock fails")
}

func TestOnMagicMoment_PushFailureDoesNotAffectUnlock(t *testing.T) {
	gate := &fakeStageGate{}
	n := &fakeNotifier{alwaysFail: true}
	h := newMagicMomentHandler(gate, n, DefaultMagicMomentConfig())

	err := h.Handle(shared.NewMagicMomentEvent("user-1", "travel-basics", 8))

	require.NoError(t, err)
	_, unlocked := gate.stats()
	assert.Len(t, unlocked, 1)
	_, sent := n.stats()
	assert.Empty(t, sent)
}

func TestOnMagicMoment_GateRetriesTransientFailure(t *testing.T) {
	gate := &fakeStageGate{failFirst: 1}
	n := &fakeNotifier{}
	h := newMagicMomentHandler(gate, n, DefaultMagicMomentConfig())

	require.NoError(t, h.Handle(shared.NewMagicMomentEvent("user-1", "travel-basics", 8)))

	attempts, unlocked := gate.stats()
	assert.Equal(t, 2, attempts)
	assert.Len(t, unlocked, 1)
}

func TestOnMagicMoment_ConfigDisablesSideEffects(t *testing.T) {
	gate := &fakeStageGate{}
	n := &fakeNotifier{}
	cfg := DefaultMagicMomentConfig()
	cfg.UnlockEnabled = false
	cfg.CelebrationEnabled = false
	h := newMagicMomentHandler(gate, n, cfg)

	require.NoError(t, h.Handle(shared.NewMagicMomentEvent("user-1", "travel-basics", 8)))

	gateAttempts, _ := gate.stats()
	pushAttempts, _ := n.stats()
	assert.Zero(t, gateAttempts)
	assert.Zero(t, pushAttempts)
}

func TestOnMagicMoment_IgnoresForeignEvent(t *testing.T) {
	gate := &fakeStageGate{}
	n := &fakeNotifier{}
	h := newMagicMomentHandler(gate, n, DefaultMagicMomentConfig())

	err := h.Handle(shared.NewMilestoneReachedEvent("user-1", "travel-basics", "", "half_complete", nil))

	require.NoError(t, err)
	gateAttempts, _ := gate.stats()
	assert.Zero(t, gateAttempts)
}

func TestOnMagicMoment_SubscribesToMagicMoments(t *testing.T) {
	h := NewOnMagicMoment(&fakeStageGate{}, &fakeNotifier{}, nil, nil, nil, DefaultMagicMomentConfig(), testLogger())
	assert.Equal(t, shared.EventMagicMoment, h.EventType())
}
