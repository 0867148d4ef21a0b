// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"time"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/event"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
	"github.com/lexio-app/lexio-insight-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD EVENT COMMAND
// Ingests one behavioral event into the append-only store. This is the
// write entry point of the analytics funnel: validate, sanitize, append,
// then notify subscribers without ever failing the ingestion over a
// side effect.
// ══════════════════════════════════════════════════════════════════════════════

// RecordEventCommand contains the data to ingest a behavioral event.
type RecordEventCommand struct {
	// UserID is the product-wide user identifier.
	UserID string

	// Type is the behavioral event type (must be in the fixed vocabulary).
	Type string

	// Payload contains free-form event attributes. Sanitized before storage.
	Payload map[string]interface{}

	// Timestamp is when the event occurred (defaults to now if zero).
	Timestamp time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command. Full validation (vocabulary membership,
// timestamp skew) happens in event.NewEvent; this is the cheap structural
// check.
func (c RecordEventCommand) Validate() error {
	if c.UserID == "" {
		return shared.ErrInvalidEventUser
	}
	if c.Type == "" {
		return shared.ErrInvalidEventType
	}
	return nil
}

// RecordEventResult contains the result of ingesting an event.
type RecordEventResult struct {
	// EventID is the store-assigned identifier.
	EventID string

	// UserID the event belongs to.
	UserID string

	// Type is the accepted event type.
	Type string

	// Timestamp is the normalized (UTC) event time.
	Timestamp time.Time

	// PayloadFields is the number of payload keys that survived sanitization.
	PayloadFields int
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordEventHandler handles the RecordEventCommand.
type RecordEventHandler struct {
	events event.Repository
	bus    shared.EventPublisher
	log    *logger.Logger
}

// NewRecordEventHandler creates a new RecordEventHandler.
func NewRecordEventHandler(events event.Repository, bus shared.EventPublisher, log *logger.Logger) *RecordEventHandler {
	if log == nil {
		log = logger.Default()
	}
	return &RecordEventHandler{
		events: events,
		bus:    bus,
		log:    log.With(logger.Component("record_event")),
	}
}

// Handle executes the record event command.
func (h *RecordEventHandler) Handle(ctx context.Context, cmd RecordEventCommand) (*RecordEventResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	e, err := event.NewEvent(event.NewEventParams{
		UserID:    cmd.UserID,
		Type:      cmd.Type,
		Payload:   cmd.Payload,
		Timestamp: cmd.Timestamp,
	})
	if err != nil {
		return nil, err
	}

	id, err := h.events.Append(ctx, e)
	if err != nil {
		return nil, err
	}

	// The event is durable; a failed publish must not fail the ingestion.
	if h.bus != nil {
		integration := shared.NewIngestedEvent(id.String(), e.UserID.String(), e.Type.String(), len(e.Payload))
		if cmd.CorrelationID != "" {
			integration.BaseEvent = integration.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		if err := h.bus.Publish(integration); err != nil {
			h.log.Warn("event bus publish failed",
				logger.EventID(id.String()),
				logger.Err(err))
		}
	}

	return &RecordEventResult{
		EventID:       id.String(),
		UserID:        e.UserID.String(),
		Type:          e.Type.String(),
		Timestamp:     e.Timestamp,
		PayloadFields: len(e.Payload),
	}, nil
}
