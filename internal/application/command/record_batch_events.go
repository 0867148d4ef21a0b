package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/event"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
	"github.com/lexio-app/lexio-insight-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD BATCH EVENTS COMMAND
// Mobile clients buffer events offline and flush them in one call. The
// batch is validated as a unit: one malformed event rejects the whole
// batch and nothing is persisted. Append failures after validation are
// per-event - events for unknown users (stale local queues after account
// deletion) are dropped and counted, never fatal.
// ══════════════════════════════════════════════════════════════════════════════

// MaxBatchSize bounds a single batch submission.
const MaxBatchSize = 500

// RecordBatchEventsCommand contains the events to ingest.
type RecordBatchEventsCommand struct {
	// Events are the buffered events, in client submission order.
	Events []RecordEventCommand

	// CorrelationID for tracing the whole flush.
	CorrelationID string
}

// Validate checks the batch envelope only. Per-event validation happens in
// the handler so failing indexes can be reported.
func (c RecordBatchEventsCommand) Validate() error {
	if len(c.Events) == 0 {
		return shared.ErrEmptyBatch
	}
	if len(c.Events) > MaxBatchSize {
		return shared.NewDomainError("event", "ValidateBatch", shared.ErrValueOutOfRange,
			fmt.Sprintf("batch exceeds %d events", MaxBatchSize))
	}
	return nil
}

// BatchRejectedError reports which events failed validation. The whole
// batch was rejected and nothing was persisted.
type BatchRejectedError struct {
	// Total is the number of events submitted.
	Total int

	// Invalid maps the submission index of each malformed event to its error.
	Invalid map[int]error
}

// Error implements the error interface.
func (e *BatchRejectedError) Error() string {
	return fmt.Sprintf("event.RecordBatch: %d of %d events failed validation", len(e.Invalid), e.Total)
}

// Is marks the rejection as a validation error so transports map it to a
// client fault.
func (e *BatchRejectedError) Is(target error) bool {
	return target == shared.ErrValidation
}

// RecordBatchEventsResult contains counts for a processed batch.
type RecordBatchEventsResult struct {
	// Total is the number of events submitted.
	Total int

	// Appended is the number of events durably stored.
	Appended int

	// Dropped is the number of events discarded for unknown users.
	Dropped int

	// Failed is the number of events that hit a store failure.
	Failed int

	// EventIDs are the assigned ids of appended events, in submission order.
	EventIDs []string

	// Errors maps the submission index of each failed event to its error.
	Errors map[int]error
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordBatchEventsHandler handles the RecordBatchEventsCommand.
type RecordBatchEventsHandler struct {
	events event.Repository
	bus    shared.EventPublisher
	log    *logger.Logger
}

// NewRecordBatchEventsHandler creates a new RecordBatchEventsHandler.
func NewRecordBatchEventsHandler(events event.Repository, bus shared.EventPublisher, log *logger.Logger) *RecordBatchEventsHandler {
	if log == nil {
		log = logger.Default()
	}
	return &RecordBatchEventsHandler{
		events: events,
		bus:    bus,
		log:    log.With(logger.Component("record_batch_events")),
	}
}

// Handle executes the batch command: validate everything, then append one
// by one.
func (h *RecordBatchEventsHandler) Handle(ctx context.Context, cmd RecordBatchEventsCommand) (*RecordBatchEventsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	// Phase 1: build and validate every event before touching the store.
	built := make([]*event.Event, len(cmd.Events))
	invalid := make(map[int]error)
	for i, ec := range cmd.Events {
		e, err := event.NewEvent(event.NewEventParams{
			UserID:    ec.UserID,
			Type:      ec.Type,
			Payload:   ec.Payload,
			Timestamp: ec.Timestamp,
		})
		if err != nil {
			invalid[i] = err
			continue
		}
		built[i] = e
	}
	if len(invalid) > 0 {
		return nil, &BatchRejectedError{Total: len(cmd.Events), Invalid: invalid}
	}

	// Phase 2: append. Partial success is allowed from here on.
	result := &RecordBatchEventsResult{
		Total:    len(built),
		EventIDs: make([]string, 0, len(built)),
		Errors:   make(map[int]error),
	}
	for i, e := range built {
		id, err := h.events.Append(ctx, e)
		switch {
		case err == nil:
			result.Appended++
			result.EventIDs = append(result.EventIDs, id.String())
		case errors.Is(err, shared.ErrEventUserUnknown):
			result.Dropped++
			h.log.Debug("dropped event for unknown user",
				logger.Int("index", i),
				logger.UserID(e.UserID.String()))
		default:
			result.Failed++
			result.Errors[i] = err
			h.log.Error("batch append failed",
				logger.Int("index", i),
				logger.EventType(e.Type.String()),
				logger.Err(err))
		}
	}

	if h.bus != nil {
		integration := shared.NewBatchIngestedEvent(result.Appended, result.Dropped, result.Failed)
		if cmd.CorrelationID != "" {
			integration.BaseEvent = integration.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		if err := h.bus.Publish(integration); err != nil {
			h.log.Warn("event bus publish failed", logger.Err(err))
		}
	}

	return result, nil
}
