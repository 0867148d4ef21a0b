package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/event"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
	"github.com/lexio-app/lexio-insight-hub/pkg/logger"
)

// ─────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Output: io.Discard, Level: logger.LevelFatal})
}

// memEventRepo is an in-memory append-only store. Users listed in unknown
// are rejected the way the real store rejects a missing user row.
type memEventRepo struct {
	mu      sync.Mutex
	stored  []*event.Event
	unknown map[string]bool
	failFor map[string]error
	seq     int
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{
		unknown: make(map[string]bool),
		failFor: make(map[string]error),
	}
}

func (m *memEventRepo) Append(_ context.Context, e *event.Event) (shared.EventID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor[e.UserID.String()]; err != nil {
		return "", err
	}
	if m.unknown[e.UserID.String()] {
		return "", shared.ErrEventUserUnknown
	}
	m.seq++
	id := shared.EventID(fmt.Sprintf("%026d", m.seq))
	clone := e.Clone()
	clone.ID = id
	m.stored = append(m.stored, clone)
	return id, nil
}

func (m *memEventRepo) Query(_ context.Context, f event.Filter) ([]*event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*event.Event
	for _, e := range m.stored {
		if !f.UserID.IsEmpty() && e.UserID != f.UserID {
			continue
		}
		out = append(out, e.Clone())
	}
	return out, nil
}

func (m *memEventRepo) CountInWindow(_ context.Context, w shared.TimeRange) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.stored {
		if e.InWindow(w) {
			n++
		}
	}
	return n, nil
}

// memBus records published integration events in order.
type memBus struct {
	mu        sync.Mutex
	published []shared.Event
	err       error
}

func (b *memBus) Publish(e shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, e)
	return nil
}

func (b *memBus) types() []shared.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]shared.EventType, len(b.published))
	for i, e := range b.published {
		out[i] = e.EventType()
	}
	return out
}

// ─────────────────────────────────────────────
// RecordEvent
// ─────────────────────────────────────────────

func TestRecordEvent_Success(t *testing.T) {
	repo := newMemEventRepo()
	bus := &memBus{}
	h := NewRecordEventHandler(repo, bus, testLogger())

	res, err := h.Handle(context.Background(), RecordEventCommand{
		UserID:  "user-1",
		Type:    "app_launch",
		Payload: map[string]interface{}{"platform": "ios"},
	})

	require.NoError(t, err)
	assert.Equal(t, "user-1", res.UserID)
	assert.Equal(t, "app_launch", res.Type)
	assert.NotEmpty(t, res.EventID)
	assert.Equal(t, 1, res.PayloadFields)

	require.Len(t, repo.stored, 1)
	assert.Equal(t, event.TypeAppLaunch, repo.stored[0].Type)

	require.Len(t, bus.published, 1)
	assert.Equal(t, shared.EventIngested, bus.published[0].EventType())
}

func TestRecordEvent_DefaultsTimestampToNow(t *testing.T) {
	repo := newMemEventRepo()
	h := NewRecordEventHandler(repo, &memBus{}, testLogger())

	res, err := h.Handle(context.Background(), RecordEventCommand{
		UserID: "user-1",
		Type:   "session_start",
	})

	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), res.Timestamp, 5*time.Second)
	assert.Equal(t, time.UTC, res.Timestamp.Location())
}

func TestRecordEvent_RejectsUnknownType(t *testing.T) {
	repo := newMemEventRepo()
	h := NewRecordEventHandler(repo, &memBus{}, testLogger())

	_, err := h.Handle(context.Background(), RecordEventCommand{
		UserID: "user-1",
		Type:   "coffee_break",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrUnknownEventType)
	assert.True(t, shared.IsValidation(err))
	assert.Empty(t, repo.stored)
}

func TestRecordEvent_RejectsMalformedType(t *testing.T) {
	h := NewRecordEventHandler(newMemEventRepo(), &memBus{}, testLogger())

	_, err := h.Handle(context.Background(), RecordEventCommand{
		UserID: "user-1",
		Type:   "App-Launch!",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidEventType)
	assert.True(t, shared.IsValidation(err))
}

func TestRecordEvent_RejectsMissingUser(t *testing.T) {
	h := NewRecordEventHandler(newMemEventRepo(), &memBus{}, testLogger())

	_, err := h.Handle(context.Background(), RecordEventCommand{Type: "app_launch"})

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidEventUser)
}

func TestRecordEvent_RejectsFutureTimestamp(t *testing.T) {
	h := NewRecordEventHandler(newMemEventRepo(), &memBus{}, testLogger())

	_, err := h.Handle(context.Background(), RecordEventCommand{
		UserID:    "user-1",
		Type:      "app_launch",
		Timestamp: time.Now().Add(time.Hour),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrEventTimestamp)
}

func TestRecordEvent_UnknownUserPropagates(t *testing.T) {
	repo := newMemEventRepo()
	repo.unknown["ghost"] = true
	h := NewRecordEventHandler(repo, &memBus{}, testLogger())

	_, err := h.Handle(context.Background(), RecordEventCommand{
		UserID: "ghost",
		Type:   "app_launch",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrEventUserUnknown)
	assert.True(t, shared.IsNotFound(err))
}

func TestRecordEvent_SanitizesPayload(t *testing.T) {
	repo := newMemEventRepo()
	h := NewRecordEventHandler(repo, &memBus{}, testLogger())

	_, err := h.Handle(context.Background(), RecordEventCommand{
		UserID: "user-1",
		Type:   "feedback_submitted",
		Payload: map[string]interface{}{
			"note": strings.Repeat("x", 600),
		},
	})

	require.NoError(t, err)
	require.Len(t, repo.stored, 1)
	note, ok := repo.stored[0].Payload["note"].(string)
	require.True(t, ok)
	assert.Equal(t, event.MaxStringLength+len(event.TruncationMarker), utf8.RuneCountInString(note))
	assert.True(t, strings.HasSuffix(note, event.TruncationMarker))
}

func TestRecordEvent_BusFailureDoesNotFailIngestion(t *testing.T) {
	repo := newMemEventRepo()
	bus := &memBus{err: errors.New("bus down")}
	h := NewRecordEventHandler(repo, bus, testLogger())

	res, err := h.Handle(context.Background(), RecordEventCommand{
		UserID: "user-1",
		Type:   "app_launch",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, res.EventID)
	assert.Len(t, repo.stored, 1)
}
