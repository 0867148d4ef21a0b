package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/event"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/progress"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
)

func openTestDB(t *testing.T) *Connection {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "test.db")

	conn, err := NewConnection(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func seedUser(t *testing.T, conn *Connection, userID string) {
	t.Helper()
	_, err := conn.DB().Exec("INSERT INTO users (id) VALUES (?)", userID)
	require.NoError(t, err)
}

func TestEventRepository_AppendAndQuery(t *testing.T) {
	conn := openTestDB(t)
	seedUser(t, conn, "u1")
	repo := NewEventRepository(conn)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	id1, err := repo.Append(ctx, &event.Event{
		UserID:    shared.UserID("u1"),
		Type:      event.TypeSessionStart,
		Payload:   map[string]interface{}{"locale": "en"},
		Timestamp: base,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id1)

	_, err = repo.Append(ctx, &event.Event{
		UserID:    shared.UserID("u1"),
		Type:      event.TypeAppLaunch,
		Timestamp: base.Add(time.Minute),
	})
	require.NoError(t, err)

	got, err := repo.Query(ctx, event.Filter{
		UserID: shared.UserID("u1"),
		Types:  []event.Type{event.TypeSessionStart},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id1, got[0].ID)
	assert.Equal(t, event.TypeSessionStart, got[0].Type)
	assert.Equal(t, "en", got[0].Payload["locale"])
	assert.True(t, got[0].Timestamp.Equal(base))
}

func TestEventRepository_AppendUnknownUser(t *testing.T) {
	conn := openTestDB(t)
	repo := NewEventRepository(conn)

	_, err := repo.Append(context.Background(), &event.Event{
		UserID:    shared.UserID("ghost"),
		Type:      event.TypeSessionStart,
		Timestamp: time.Now().UTC(),
	})

	assert.ErrorIs(t, err, shared.ErrEventUserUnknown)
}

func TestEventRepository_CountInWindow(t *testing.T) {
	conn := openTestDB(t)
	seedUser(t, conn, "u1")
	repo := NewEventRepository(conn)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := repo.Append(ctx, &event.Event{
			UserID:    shared.UserID("u1"),
			Type:      event.TypeSessionStart,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	// Half-open window excludes the event at the upper bound.
	n, err := repo.CountInWindow(ctx, shared.TimeRange{From: base, To: base.Add(2 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestProgressRepository_UpsertAccumulates(t *testing.T) {
	conn := openTestDB(t)
	seedUser(t, conn, "u1")
	repo := NewProgressRepository(conn)
	ctx := context.Background()

	key := progress.Key{
		UserID:      shared.UserID("u1"),
		UnitGroupID: progress.UnitGroupID("g1"),
		ItemID:      progress.ItemID("i1"),
	}

	rec, err := repo.Upsert(ctx, key, progress.Delta{
		AttemptsDelta: 1,
		CorrectDelta:  0,
		Status:        progress.StatusUnlocked,
		LastAttemptAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Attempts)
	assert.Equal(t, 0, rec.CorrectAttempts)
	assert.Equal(t, progress.StatusUnlocked, rec.Status)

	rec, err = repo.Upsert(ctx, key, progress.Delta{
		AttemptsDelta: 1,
		CorrectDelta:  1,
		Status:        progress.StatusCompleted,
		LastAttemptAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Attempts)
	assert.Equal(t, 1, rec.CorrectAttempts)
	assert.Equal(t, progress.StatusCompleted, rec.Status)
}

func TestProgressRepository_StatusNeverRegresses(t *testing.T) {
	conn := openTestDB(t)
	seedUser(t, conn, "u1")
	repo := NewProgressRepository(conn)
	ctx := context.Background()

	key := progress.Key{
		UserID:      shared.UserID("u1"),
		UnitGroupID: progress.UnitGroupID("g1"),
		ItemID:      progress.ItemID("i1"),
	}

	_, err := repo.Upsert(ctx, key, progress.Delta{
		AttemptsDelta: 1, CorrectDelta: 1,
		Status:        progress.StatusCompleted,
		LastAttemptAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	rec, err := repo.Upsert(ctx, key, progress.Delta{
		AttemptsDelta: 1,
		Status:        progress.StatusUnlocked,
		LastAttemptAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, progress.StatusCompleted, rec.Status)
}

func TestProgressRepository_GetMissing(t *testing.T) {
	conn := openTestDB(t)
	repo := NewProgressRepository(conn)

	_, err := repo.Get(context.Background(), progress.Key{
		UserID:      shared.UserID("u1"),
		UnitGroupID: progress.UnitGroupID("g1"),
		ItemID:      progress.ItemID("i1"),
	})

	assert.ErrorIs(t, err, shared.ErrProgressNotFound)
}

func TestUserDirectory(t *testing.T) {
	conn := openTestDB(t)
	seedUser(t, conn, "u1")
	dir := NewUserDirectory(conn)
	ctx := context.Background()

	exists, err := dir.Exists(ctx, shared.UserID("u1"))
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = dir.Exists(ctx, shared.UserID("nobody"))
	require.NoError(t, err)
	assert.False(t, exists)
}
