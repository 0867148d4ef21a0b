// Package focus implements the adaptive difficulty controller ("Focus
// Mode"): a two-state machine per user that engages after consecutive
// incorrect answers on the same item and flags the correct option for
// emphasis until the user recovers or moves on. It never alters scoring.
package focus

import (
	"fmt"
	"sync"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/progress"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATES & TRANSITIONS
// ══════════════════════════════════════════════════════════════════════════════

// State is the controller's mode for one user's current item.
type State string

const (
	// StateInactive - normal drilling, no scaffold shown.
	StateInactive State = "inactive"
	// StateActive - the user is struggling; the correct option is
	// emphasized until a correct answer or an item change.
	StateActive State = "active"
)

// ActivationThreshold is the consecutive-incorrect count at which the
// controller engages.
const ActivationThreshold = 2

// Trigger names what caused a state change.
type Trigger string

const (
	// TriggerConsecutiveIncorrect - the incorrect streak reached the
	// activation threshold.
	TriggerConsecutiveIncorrect Trigger = "consecutive_incorrect"
	// TriggerCorrectAnswer - the user answered correctly while active.
	TriggerCorrectAnswer Trigger = "correct_answer"
	// TriggerItemChanged - the active item changed or was abandoned.
	TriggerItemChanged Trigger = "item_changed"
)

// Transition records one state change for event logging.
type Transition struct {
	UserID  shared.UserID
	ItemID  progress.ItemID
	From    State
	To      State
	Trigger Trigger
}

// Activated reports whether this transition engaged Focus Mode.
func (t *Transition) Activated() bool {
	return t != nil && t.To == StateActive
}

// String returns a compact representation for logging.
func (t *Transition) String() string {
	if t == nil {
		return "Transition{nil}"
	}
	return fmt.Sprintf("Transition{%s/%s %s→%s %s}", t.UserID, t.ItemID, t.From, t.To, t.Trigger)
}

// ══════════════════════════════════════════════════════════════════════════════
// ITEM STATE
// ══════════════════════════════════════════════════════════════════════════════

// ItemState is the per-user machine state: which item is in focus and how
// the incorrect streak stands. Ephemeral - discarded whenever the item
// changes, never persisted.
type ItemState struct {
	ItemID               progress.ItemID
	ConsecutiveIncorrect int
	State                State
}

// Active reports whether Focus Mode is engaged.
func (s ItemState) Active() bool {
	return s.State == StateActive
}

// ══════════════════════════════════════════════════════════════════════════════
// DECISION
// ══════════════════════════════════════════════════════════════════════════════

// Decision is the controller's output for one answer: the state after the
// answer, whether the UI should emphasize the correct option, and the
// transition (if the answer caused one).
type Decision struct {
	State                State
	ConsecutiveIncorrect int

	// HighlightCorrect - the controller's sole externally-observable
	// effect. True exactly while the state is active.
	HighlightCorrect bool

	// Transition is non-nil only when this answer changed the state.
	Transition *Transition
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTROLLER
// ══════════════════════════════════════════════════════════════════════════════

// Controller drives Focus Mode for all users. One instance is constructed
// at process start and shared; it is safe for concurrent use. State is
// keyed by user and scoped to the user's current item - switching items
// resets the incorrect streak even mid-struggle.
type Controller struct {
	mu     sync.RWMutex
	states map[shared.UserID]*ItemState
}

// NewController creates an empty controller.
func NewController() *Controller {
	return &Controller{
		states: make(map[shared.UserID]*ItemState),
	}
}

// RecordAnswer feeds one answer into the machine and returns the
// resulting decision.
//
// An incorrect answer increments the streak and engages the controller at
// the activation threshold. A correct answer always clears the streak and
// disengages immediately. Answering a different item first resets state
// to inactive (reported as an item_changed transition when the controller
// was engaged).
func (c *Controller) RecordAnswer(userID shared.UserID, itemID progress.ItemID, correct bool) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.states[userID]
	var transition *Transition

	if !ok || st.ItemID != itemID {
		if ok && st.Active() {
			transition = &Transition{
				UserID:  userID,
				ItemID:  st.ItemID,
				From:    StateActive,
				To:      StateInactive,
				Trigger: TriggerItemChanged,
			}
		}
		st = &ItemState{ItemID: itemID, State: StateInactive}
		c.states[userID] = st
	}

	if correct {
		st.ConsecutiveIncorrect = 0
		if st.Active() {
			st.State = StateInactive
			transition = &Transition{
				UserID:  userID,
				ItemID:  itemID,
				From:    StateActive,
				To:      StateInactive,
				Trigger: TriggerCorrectAnswer,
			}
		}
	} else {
		st.ConsecutiveIncorrect++
		if !st.Active() && st.ConsecutiveIncorrect >= ActivationThreshold {
			st.State = StateActive
			transition = &Transition{
				UserID:  userID,
				ItemID:  itemID,
				From:    StateInactive,
				To:      StateActive,
				Trigger: TriggerConsecutiveIncorrect,
			}
		}
	}

	return Decision{
		State:                st.State,
		ConsecutiveIncorrect: st.ConsecutiveIncorrect,
		HighlightCorrect:     st.Active(),
		Transition:           transition,
	}
}

// Abandon discards the user's state (navigated away without answering).
// Returns the deactivation transition if the controller was engaged, nil
// otherwise - two incorrect answers followed by navigation do not carry
// into the next item.
func (c *Controller) Abandon(userID shared.UserID) *Transition {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.states[userID]
	if !ok {
		return nil
	}
	delete(c.states, userID)

	if !st.Active() {
		return nil
	}
	return &Transition{
		UserID:  userID,
		ItemID:  st.ItemID,
		From:    StateActive,
		To:      StateInactive,
		Trigger: TriggerItemChanged,
	}
}

// StateOf returns a copy of the user's current machine state.
func (c *Controller) StateOf(userID shared.UserID) (ItemState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st, ok := c.states[userID]
	if !ok {
		return ItemState{}, false
	}
	return *st, true
}

// ActiveCount returns how many users currently have Focus Mode engaged.
func (c *Controller) ActiveCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, st := range c.states {
		if st.Active() {
			n++
		}
	}
	return n
}
