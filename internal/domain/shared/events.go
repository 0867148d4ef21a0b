// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of integration event carried by the bus.
type EventType string

// Integration event types - these drive the asynchronous side of the engine.
// They are internal signals between components, distinct from the behavioral
// events clients submit for analytics (see internal/domain/event).
const (
	// Ingestion events
	EventIngested      EventType = "event.ingested"
	EventBatchIngested EventType = "event.batch_ingested"

	// Progress events
	EventAttemptRecorded EventType = "progress.attempt_recorded"
	EventItemMastered    EventType = "progress.item_mastered"

	// Focus Mode events
	EventFocusActivated   EventType = "focus.activated"
	EventFocusDeactivated EventType = "focus.deactivated"

	// Milestone events
	EventMilestoneReached EventType = "milestone.reached"
	EventMagicMoment      EventType = "milestone.magic_moment"

	// System events
	EventReportRefreshed EventType = "system.report_refreshed"
)

// Event is the base interface for all integration events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Ingestion Events
// ═══════════════════════════════════════════════════════════════════════════

// IngestedEvent is emitted after a behavioral event has been stored.
type IngestedEvent struct {
	BaseEvent
	EventID       string `json:"event_id"`
	UserID        string `json:"user_id"`
	BehaviorType  string `json:"behavior_type"`
	PayloadFields int    `json:"payload_fields"`
}

// Payload implements Event interface.
func (e IngestedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"event_id":       e.EventID,
		"user_id":        e.UserID,
		"behavior_type":  e.BehaviorType,
		"payload_fields": e.PayloadFields,
	}
}

// NewIngestedEvent creates a new IngestedEvent.
func NewIngestedEvent(eventID, userID, behaviorType string, payloadFields int) IngestedEvent {
	return IngestedEvent{
		BaseEvent:     NewBaseEvent(EventIngested, userID),
		EventID:       eventID,
		UserID:        userID,
		BehaviorType:  behaviorType,
		PayloadFields: payloadFields,
	}
}

// BatchIngestedEvent is emitted after a batch of behavioral events has been
// processed. Dropped counts events that referenced unknown users.
type BatchIngestedEvent struct {
	BaseEvent
	Appended int `json:"appended"`
	Dropped  int `json:"dropped"`
	Failed   int `json:"failed"`
}

// Payload implements Event interface.
func (e BatchIngestedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"appended": e.Appended,
		"dropped":  e.Dropped,
		"failed":   e.Failed,
	}
}

// NewBatchIngestedEvent creates a new BatchIngestedEvent.
func NewBatchIngestedEvent(appended, dropped, failed int) BatchIngestedEvent {
	return BatchIngestedEvent{
		BaseEvent: NewBaseEvent(EventBatchIngested, "batch"),
		Appended:  appended,
		Dropped:   dropped,
		Failed:    failed,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// AttemptRecordedEvent is emitted after every recorded attempt.
type AttemptRecordedEvent struct {
	BaseEvent
	UserID          string  `json:"user_id"`
	UnitGroupID     string  `json:"unit_group_id"`
	ItemID          string  `json:"item_id"`
	Correct         bool    `json:"correct"`
	Attempts        int     `json:"attempts"`
	CorrectAttempts int     `json:"correct_attempts"`
	Accuracy        float64 `json:"accuracy"`
}

// Payload implements Event interface.
func (e AttemptRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":          e.UserID,
		"unit_group_id":    e.UnitGroupID,
		"item_id":          e.ItemID,
		"correct":          e.Correct,
		"attempts":         e.Attempts,
		"correct_attempts": e.CorrectAttempts,
		"accuracy":         e.Accuracy,
	}
}

// NewAttemptRecordedEvent creates a new AttemptRecordedEvent.
func NewAttemptRecordedEvent(userID, unitGroupID, itemID string, correct bool, attempts, correctAttempts int, accuracy float64) AttemptRecordedEvent {
	return AttemptRecordedEvent{
		BaseEvent:       NewBaseEvent(EventAttemptRecorded, userID),
		UserID:          userID,
		UnitGroupID:     unitGroupID,
		ItemID:          itemID,
		Correct:         correct,
		Attempts:        attempts,
		CorrectAttempts: correctAttempts,
		Accuracy:        accuracy,
	}
}

// ItemMasteredEvent is emitted when an item receives its first correct answer.
type ItemMasteredEvent struct {
	BaseEvent
	UserID       string `json:"user_id"`
	UnitGroupID  string `json:"unit_group_id"`
	ItemID       string `json:"item_id"`
	MasteredNow  int    `json:"mastered_now"`
	TotalInGroup int    `json:"total_in_group"`
}

// Payload implements Event interface.
func (e ItemMasteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"unit_group_id":  e.UnitGroupID,
		"item_id":        e.ItemID,
		"mastered_now":   e.MasteredNow,
		"total_in_group": e.TotalInGroup,
	}
}

// NewItemMasteredEvent creates a new ItemMasteredEvent.
func NewItemMasteredEvent(userID, unitGroupID, itemID string, masteredNow, totalInGroup int) ItemMasteredEvent {
	return ItemMasteredEvent{
		BaseEvent:    NewBaseEvent(EventItemMastered, userID),
		UserID:       userID,
		UnitGroupID:  unitGroupID,
		ItemID:       itemID,
		MasteredNow:  masteredNow,
		TotalInGroup: totalInGroup,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Focus Mode Events
// ═══════════════════════════════════════════════════════════════════════════

// FocusActivatedEvent is emitted when Focus Mode engages for a user's item.
type FocusActivatedEvent struct {
	BaseEvent
	UserID               string `json:"user_id"`
	ItemID               string `json:"item_id"`
	ConsecutiveIncorrect int    `json:"consecutive_incorrect"`
}

// Payload implements Event interface.
func (e FocusActivatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":               e.UserID,
		"item_id":               e.ItemID,
		"consecutive_incorrect": e.ConsecutiveIncorrect,
	}
}

// NewFocusActivatedEvent creates a new FocusActivatedEvent.
func NewFocusActivatedEvent(userID, itemID string, consecutiveIncorrect int) FocusActivatedEvent {
	return FocusActivatedEvent{
		BaseEvent:            NewBaseEvent(EventFocusActivated, userID),
		UserID:               userID,
		ItemID:               itemID,
		ConsecutiveIncorrect: consecutiveIncorrect,
	}
}

// FocusDeactivatedEvent is emitted when Focus Mode disengages.
type FocusDeactivatedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	ItemID string `json:"item_id"`
	Reason string `json:"reason"` // "correct_answer" or "item_changed"
}

// Payload implements Event interface.
func (e FocusDeactivatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"item_id": e.ItemID,
		"reason":  e.Reason,
	}
}

// NewFocusDeactivatedEvent creates a new FocusDeactivatedEvent.
func NewFocusDeactivatedEvent(userID, itemID, reason string) FocusDeactivatedEvent {
	return FocusDeactivatedEvent{
		BaseEvent: NewBaseEvent(EventFocusDeactivated, userID),
		UserID:    userID,
		ItemID:    itemID,
		Reason:    reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Milestone Events
// ═══════════════════════════════════════════════════════════════════════════

// MilestoneReachedEvent is emitted for every non-terminal milestone.
type MilestoneReachedEvent struct {
	BaseEvent
	UserID        string                 `json:"user_id"`
	UnitGroupID   string                 `json:"unit_group_id"`
	ItemID        string                 `json:"item_id,omitempty"`
	MilestoneType string                 `json:"milestone_type"`
	Detail        map[string]interface{} `json:"detail,omitempty"`
}

// Payload implements Event interface.
func (e MilestoneReachedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"unit_group_id":  e.UnitGroupID,
		"item_id":        e.ItemID,
		"milestone_type": e.MilestoneType,
		"detail":         e.Detail,
	}
}

// NewMilestoneReachedEvent creates a new MilestoneReachedEvent.
func NewMilestoneReachedEvent(userID, unitGroupID, itemID, milestoneType string, detail map[string]interface{}) MilestoneReachedEvent {
	return MilestoneReachedEvent{
		BaseEvent:     NewBaseEvent(EventMilestoneReached, userID),
		UserID:        userID,
		UnitGroupID:   unitGroupID,
		ItemID:        itemID,
		MilestoneType: milestoneType,
		Detail:        detail,
	}
}

// MagicMomentEvent is emitted exactly once per (user, unit group), when the
// final item of the group is mastered. It authorizes the next-stage unlock.
type MagicMomentEvent struct {
	BaseEvent
	UserID         string `json:"user_id"`
	UnitGroupID    string `json:"unit_group_id"`
	CompletedCount int    `json:"completed_count"`
}

// Payload implements Event interface.
func (e MagicMomentEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         e.UserID,
		"unit_group_id":   e.UnitGroupID,
		"completed_count": e.CompletedCount,
	}
}

// NewMagicMomentEvent creates a new MagicMomentEvent.
func NewMagicMomentEvent(userID, unitGroupID string, completedCount int) MagicMomentEvent {
	return MagicMomentEvent{
		BaseEvent:      NewBaseEvent(EventMagicMoment, userID),
		UserID:         userID,
		UnitGroupID:    unitGroupID,
		CompletedCount: completedCount,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// ReportRefreshedEvent is emitted when a scheduled job rebuilds a cached report.
type ReportRefreshedEvent struct {
	BaseEvent
	Report     string        `json:"report"`
	WindowFrom time.Time     `json:"window_from"`
	WindowTo   time.Time     `json:"window_to"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Payload implements Event interface.
func (e ReportRefreshedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"report":      e.Report,
		"window_from": e.WindowFrom.Format(time.RFC3339),
		"window_to":   e.WindowTo.Format(time.RFC3339),
		"elapsed":     e.Elapsed.String(),
	}
}

// NewReportRefreshedEvent creates a new ReportRefreshedEvent.
func NewReportRefreshedEvent(report string, from, to time.Time, elapsed time.Duration) ReportRefreshedEvent {
	return ReportRefreshedEvent{
		BaseEvent:  NewBaseEvent(EventReportRefreshed, report),
		Report:     report,
		WindowFrom: from,
		WindowTo:   to,
		Elapsed:    elapsed,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
