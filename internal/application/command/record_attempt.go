package command

import (
	"context"
	"time"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/focus"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/milestone"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/progress"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
	"github.com/lexio-app/lexio-insight-hub/pkg/keylock"
	"github.com/lexio-app/lexio-insight-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ATTEMPT COMMAND
// The learning-loop write path: records one answer, updates mastery
// progress, drives the Focus Mode controller, and detects milestones by
// comparing the group snapshot from before and after the attempt.
// Writes for one (user, unit group) are serialized through a keyed lock
// so the snapshot pair is consistent.
// ══════════════════════════════════════════════════════════════════════════════

// RecordAttemptCommand contains one answer given by a learner.
type RecordAttemptCommand struct {
	// UserID is the learner.
	UserID string

	// UnitGroupID is the keyword group the item belongs to.
	UnitGroupID string

	// ItemID is the content item that was answered.
	ItemID string

	// Correct reports whether the answer was correct.
	Correct bool

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command against the domain id formats.
func (c RecordAttemptCommand) Validate() error {
	if !shared.UserID(c.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	if !progress.UnitGroupID(c.UnitGroupID).IsValid() {
		return shared.ErrInvalidUnitGroupID
	}
	if !progress.ItemID(c.ItemID).IsValid() {
		return shared.ErrInvalidItemID
	}
	return nil
}

// RecordAttemptResult contains everything the client needs to render the
// next step of the loop.
type RecordAttemptResult struct {
	// Record is the item's progress after the attempt.
	Record *progress.Record

	// Snapshot is the group's mastery state after the attempt.
	Snapshot progress.Snapshot

	// Focus is the difficulty decision for the next presentation.
	Focus focus.Decision

	// Phase is the learner's current drill phase for the item.
	Phase progress.Phase

	// Milestones lists the milestones this attempt crossed, in emission
	// order. all_complete, when present, is always last.
	Milestones []milestone.Milestone
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordAttemptHandler handles the RecordAttemptCommand.
type RecordAttemptHandler struct {
	tracker  *progress.Tracker
	sessions *progress.SessionTracker
	focus    *focus.Controller
	detector *milestone.Detector
	locks    *keylock.KeyLock
	bus      shared.EventPublisher
	log      *logger.Logger
}

// NewRecordAttemptHandler creates a new RecordAttemptHandler.
func NewRecordAttemptHandler(
	tracker *progress.Tracker,
	sessions *progress.SessionTracker,
	focusCtrl *focus.Controller,
	detector *milestone.Detector,
	locks *keylock.KeyLock,
	bus shared.EventPublisher,
	log *logger.Logger,
) *RecordAttemptHandler {
	if log == nil {
		log = logger.Default()
	}
	return &RecordAttemptHandler{
		tracker:  tracker,
		sessions: sessions,
		focus:    focusCtrl,
		detector: detector,
		locks:    locks,
		bus:      bus,
		log:      log.With(logger.Component("record_attempt")),
	}
}

// Handle executes the record attempt command.
func (h *RecordAttemptHandler) Handle(ctx context.Context, cmd RecordAttemptCommand) (*RecordAttemptResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	key := progress.Key{
		UserID:      shared.UserID(cmd.UserID),
		UnitGroupID: progress.UnitGroupID(cmd.UnitGroupID),
		ItemID:      progress.ItemID(cmd.ItemID),
	}

	var (
		result      *RecordAttemptResult
		integration []shared.Event
	)
	err := h.locks.Do(key.GroupKey(), func() error {
		var err error
		result, integration, err = h.record(ctx, cmd, key)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Side effects ride the bus after the lock is released. The attempt is
	// durable; a failed publish is logged, never surfaced.
	h.publish(integration)

	return result, nil
}

// record runs the write path under the group lock.
func (h *RecordAttemptHandler) record(ctx context.Context, cmd RecordAttemptCommand, key progress.Key) (*RecordAttemptResult, []shared.Event, error) {
	prev, err := h.tracker.Snapshot(ctx, key.UserID, key.UnitGroupID)
	if err != nil {
		return nil, nil, err
	}

	rec, err := h.tracker.RecordAttempt(ctx, key.UserID, key.UnitGroupID, key.ItemID, cmd.Correct)
	if err != nil {
		return nil, nil, err
	}

	// Session bookkeeping. An item first seen in this same call has no
	// presentation timing, so no speed bonus can be assessed for it.
	active, ok := h.sessions.Current(key.UserID)
	freshItem := !ok || active.ItemID != key.ItemID
	sess := h.sessions.Touch(key.UserID, key.ItemID)
	sess.RecordAttempt()
	var elapsed time.Duration
	if !freshItem {
		elapsed = sess.Elapsed(time.Now())
	}
	if cmd.Correct {
		sess.AdvancePhase()
	}

	decision := h.focus.RecordAnswer(key.UserID, key.ItemID, cmd.Correct)

	curr, err := h.tracker.Snapshot(ctx, key.UserID, key.UnitGroupID)
	if err != nil {
		return nil, nil, err
	}

	milestones := h.detector.Detect(milestone.Update{
		UserID:         key.UserID,
		UnitGroupID:    key.UnitGroupID,
		ItemID:         key.ItemID,
		NewlyMastered:  curr.MasteredCount > prev.MasteredCount,
		SessionElapsed: elapsed,
	}, prev, curr)

	result := &RecordAttemptResult{
		Record:     rec,
		Snapshot:   curr,
		Focus:      decision,
		Phase:      sess.Phase,
		Milestones: milestones,
	}

	return result, h.integrationEvents(cmd.CorrelationID, key, cmd.Correct, rec, curr, prev, decision, milestones), nil
}

// integrationEvents assembles the bus traffic for one attempt.
func (h *RecordAttemptHandler) integrationEvents(
	correlationID string,
	key progress.Key,
	correct bool,
	rec *progress.Record,
	curr, prev progress.Snapshot,
	decision focus.Decision,
	milestones []milestone.Milestone,
) []shared.Event {
	events := make([]shared.Event, 0, 2+len(milestones))

	attempt := shared.NewAttemptRecordedEvent(
		key.UserID.String(), key.UnitGroupID.String(), key.ItemID.String(),
		correct, rec.Attempts, rec.CorrectAttempts, rec.Accuracy(),
	)
	attempt.BaseEvent = attempt.BaseEvent.WithCorrelationID(correlationID)
	events = append(events, attempt)

	if curr.MasteredCount > prev.MasteredCount {
		mastered := shared.NewItemMasteredEvent(
			key.UserID.String(), key.UnitGroupID.String(), key.ItemID.String(),
			curr.MasteredCount, curr.TotalCount,
		)
		mastered.BaseEvent = mastered.BaseEvent.WithCorrelationID(correlationID)
		events = append(events, mastered)
	}

	if t := decision.Transition; t != nil {
		if t.Activated() {
			activated := shared.NewFocusActivatedEvent(
				t.UserID.String(), t.ItemID.String(), decision.ConsecutiveIncorrect)
			activated.BaseEvent = activated.BaseEvent.WithCorrelationID(correlationID)
			events = append(events, activated)
		} else {
			deactivated := shared.NewFocusDeactivatedEvent(
				t.UserID.String(), t.ItemID.String(), string(t.Trigger))
			deactivated.BaseEvent = deactivated.BaseEvent.WithCorrelationID(correlationID)
			events = append(events, deactivated)
		}
	}

	for _, m := range milestones {
		if m.IsTerminal() {
			moment := shared.NewMagicMomentEvent(
				m.UserID.String(), m.UnitGroupID.String(), m.MasteredCount)
			moment.BaseEvent = moment.BaseEvent.WithCorrelationID(correlationID)
			events = append(events, moment)
			continue
		}
		reached := shared.NewMilestoneReachedEvent(
			m.UserID.String(), m.UnitGroupID.String(), m.ItemID.String(),
			m.Type.String(), m.Payload())
		reached.BaseEvent = reached.BaseEvent.WithCorrelationID(correlationID)
		events = append(events, reached)
	}

	return events
}

// publish sends integration events, logging failures without surfacing them.
func (h *RecordAttemptHandler) publish(events []shared.Event) {
	if h.bus == nil {
		return
	}
	for _, e := range events {
		if err := h.bus.Publish(e); err != nil {
			h.log.Warn("event bus publish failed",
				logger.String("integration_type", string(e.EventType())),
				logger.Err(err))
		}
	}
}
