package progress

import (
	"sync"
	"time"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEARNING SESSION
// Ephemeral per-item state: which item the user is on right now, which
// drill phase they are in, and when they started. Lives only while the
// user stays on one item; switching items discards it. Never persisted.
// ══════════════════════════════════════════════════════════════════════════════

// Phase is the drill phase within one item.
type Phase string

const (
	// PhaseContextGuessing - picking the meaning from video options.
	PhaseContextGuessing Phase = "context_guessing"
	// PhasePronunciationTraining - speaking practice for the same item.
	PhasePronunciationTraining Phase = "pronunciation_training"
	// PhaseCompleted - both phases finished for this item.
	PhaseCompleted Phase = "completed"
)

// Next returns the phase that follows. Completed is terminal.
func (p Phase) Next() Phase {
	switch p {
	case PhaseContextGuessing:
		return PhasePronunciationTraining
	case PhasePronunciationTraining:
		return PhaseCompleted
	default:
		return PhaseCompleted
	}
}

// LearningSession tracks one user's work on one item.
type LearningSession struct {
	UserID            shared.UserID
	ItemID            ItemID
	Phase             Phase
	AttemptsThisPhase int
	StartedAt         time.Time
}

// RecordAttempt counts an attempt in the current phase.
func (s *LearningSession) RecordAttempt() {
	s.AttemptsThisPhase++
}

// AdvancePhase moves to the next phase and resets the phase counter.
func (s *LearningSession) AdvancePhase() {
	if s.Phase == PhaseCompleted {
		return
	}
	s.Phase = s.Phase.Next()
	s.AttemptsThisPhase = 0
}

// Elapsed returns how long the user has been on this item.
func (s *LearningSession) Elapsed(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(s.StartedAt)
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION TRACKER
// In-memory registry of active sessions, one per user. Safe for
// concurrent use.
// ══════════════════════════════════════════════════════════════════════════════

// SessionTracker holds the active learning session per user.
type SessionTracker struct {
	mu       sync.RWMutex
	sessions map[shared.UserID]*LearningSession
}

// NewSessionTracker creates an empty session tracker.
func NewSessionTracker() *SessionTracker {
	return &SessionTracker{
		sessions: make(map[shared.UserID]*LearningSession),
	}
}

// StartItem begins a session on an item, discarding any previous session
// the user had (item change resets everything ephemeral).
func (t *SessionTracker) StartItem(userID shared.UserID, itemID ItemID) *LearningSession {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &LearningSession{
		UserID:    userID,
		ItemID:    itemID,
		Phase:     PhaseContextGuessing,
		StartedAt: time.Now(),
	}
	t.sessions[userID] = s
	return s
}

// Touch returns the user's session for the item, starting one if the user
// has no session or was on a different item.
func (t *SessionTracker) Touch(userID shared.UserID, itemID ItemID) *LearningSession {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.sessions[userID]; ok && s.ItemID == itemID {
		return s
	}
	s := &LearningSession{
		UserID:    userID,
		ItemID:    itemID,
		Phase:     PhaseContextGuessing,
		StartedAt: time.Now(),
	}
	t.sessions[userID] = s
	return s
}

// Current returns the user's active session, if any.
func (t *SessionTracker) Current(userID shared.UserID) (*LearningSession, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[userID]
	return s, ok
}

// Abandon discards the user's active session (navigated away).
func (t *SessionTracker) Abandon(userID shared.UserID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, userID)
}

// ActiveCount returns how many users have a live session.
func (t *SessionTracker) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
