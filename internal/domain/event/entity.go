// Package event contains the behavioral event model: the fixed event-type
// vocabulary, the sanitized payload contract, and the append-only store port.
// This is the write side of the analytics funnel - events are immutable once
// stored and are never mutated or deleted by this engine.
package event

import (
	"regexp"
	"time"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT TYPE VOCABULARY
// ══════════════════════════════════════════════════════════════════════════════

// Type identifies a behavioral event. The vocabulary is a fixed enumerated
// set; unrecognized types are rejected at the validation boundary rather
// than silently accepted.
type Type string

const (
	// Lifecycle
	TypeAppLaunch    Type = "app_launch"
	TypeSessionStart Type = "session_start"

	// Onboarding
	TypeOnboardingStart    Type = "onboarding_start"
	TypeOnboardingComplete Type = "onboarding_complete"

	// vTPR drill (video-based vocabulary training)
	TypeVTPRStart           Type = "vtpr_start"
	TypeVTPRAnswerCorrect   Type = "vtpr_answer_correct"
	TypeVTPRAnswerIncorrect Type = "vtpr_answer_incorrect"
	TypeVTPRComplete        Type = "vtpr_complete"

	// Pronunciation assessment
	TypePronunciationStart    Type = "pronunciation_start"
	TypePronunciationComplete Type = "pronunciation_complete"

	// Progression
	TypeKeywordUnlocked     Type = "keyword_unlocked"
	TypeFocusModeEnter      Type = "focus_mode_enter"
	TypeMilestoneReached    Type = "milestone_reached"
	TypeMagicMomentComplete Type = "magic_moment_complete"

	// Feedback
	TypeFeedbackSubmitted Type = "feedback_submitted"
)

// typeFormat is the structural rule for event type names.
var typeFormat = regexp.MustCompile(`^[a-z_]+$`)

// vocabulary is the closed set of accepted event types.
var vocabulary = map[Type]struct{}{
	TypeAppLaunch:             {},
	TypeSessionStart:          {},
	TypeOnboardingStart:       {},
	TypeOnboardingComplete:    {},
	TypeVTPRStart:             {},
	TypeVTPRAnswerCorrect:     {},
	TypeVTPRAnswerIncorrect:   {},
	TypeVTPRComplete:          {},
	TypePronunciationStart:    {},
	TypePronunciationComplete: {},
	TypeKeywordUnlocked:       {},
	TypeFocusModeEnter:        {},
	TypeMilestoneReached:      {},
	TypeMagicMomentComplete:   {},
	TypeFeedbackSubmitted:     {},
}

// IsWellFormed checks the structural rule only (^[a-z_]+$).
func (t Type) IsWellFormed() bool {
	return typeFormat.MatchString(string(t))
}

// IsKnown checks membership in the fixed vocabulary.
func (t Type) IsKnown() bool {
	_, ok := vocabulary[t]
	return ok
}

// IsAnswer reports whether the type is a vTPR answer event.
func (t Type) IsAnswer() bool {
	return t == TypeVTPRAnswerCorrect || t == TypeVTPRAnswerIncorrect
}

// String returns the string representation.
func (t Type) String() string {
	return string(t)
}

// ParseType validates a raw string against both the structural rule and the
// vocabulary. The structural check runs first so malformed input gets the
// more specific error.
func ParseType(raw string) (Type, error) {
	t := Type(raw)
	if !t.IsWellFormed() {
		return "", shared.ErrInvalidEventType
	}
	if !t.IsKnown() {
		return "", shared.ErrUnknownEventType
	}
	return t, nil
}

// Vocabulary returns the accepted event types in no particular order.
func Vocabulary() []Type {
	out := make([]Type, 0, len(vocabulary))
	for t := range vocabulary {
		out = append(out, t)
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: EVENT
// ══════════════════════════════════════════════════════════════════════════════

// Event is one stored behavioral fact: a user did something at a time, with
// a sanitized free-form payload. Immutable once stored.
type Event struct {
	// ID - store-assigned identifier (ULID). Empty until appended.
	ID shared.EventID

	// UserID - who produced the event.
	UserID shared.UserID

	// Type - member of the fixed vocabulary.
	Type Type

	// Payload - sanitized free-form attributes (see Sanitize).
	Payload map[string]interface{}

	// Timestamp - when the event occurred, UTC.
	Timestamp time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewEventParams contains parameters for creating a new event.
type NewEventParams struct {
	UserID    string
	Type      string
	Payload   map[string]interface{}
	Timestamp time.Time
}

// clockSkewTolerance allows slightly-ahead client clocks before a
// timestamp is rejected as being in the future.
const clockSkewTolerance = 5 * time.Minute

// NewEvent validates params and returns an event with a sanitized payload.
// A zero timestamp defaults to now; a timestamp beyond the skew tolerance
// is rejected. The payload is always passed through Sanitize, so a stored
// event's payload invariant holds by construction.
func NewEvent(params NewEventParams) (*Event, error) {
	userID, err := shared.NewUserID(params.UserID)
	if err != nil {
		return nil, shared.ErrInvalidEventUser
	}

	eventType, err := ParseType(params.Type)
	if err != nil {
		return nil, err
	}

	ts := params.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.UTC()
	if ts.After(time.Now().UTC().Add(clockSkewTolerance)) {
		return nil, shared.ErrEventTimestamp
	}

	return &Event{
		UserID:    userID,
		Type:      eventType,
		Payload:   Sanitize(params.Payload),
		Timestamp: ts,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// InWindow reports whether the event falls inside the half-open window.
func (e *Event) InWindow(w shared.TimeRange) bool {
	return w.Contains(e.Timestamp)
}

// Clone returns a copy with an independent payload map. Nested values are
// shared; stored events are never mutated so shallow nesting is safe.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Payload = make(map[string]interface{}, len(e.Payload))
	for k, v := range e.Payload {
		clone.Payload[k] = v
	}
	return &clone
}
