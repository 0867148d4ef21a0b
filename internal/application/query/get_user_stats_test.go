package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/event"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/progress"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
)

func seedRecord(user, group, item string, attempts, correct int, status progress.Status) *progress.Record {
	key := progress.Key{
		UserID:      shared.UserID(user),
		UnitGroupID: progress.UnitGroupID(group),
		ItemID:      progress.ItemID(item),
	}
	r := progress.NewRecord(key, day(0))
	r.Attempts = attempts
	r.CorrectAttempts = correct
	r.Status = status
	return r
}

func newUserStatsHandler(repo *queryEventRepo, store *fakeProgressStore, cache *fakeReportCache) *GetUserStatsHandler {
	dir := &fakeDirectory{known: map[shared.UserID]bool{"u1": true}}
	return NewGetUserStatsHandler(repo, store, dir, cache, testLogger())
}

func TestGetUserStats_Success(t *testing.T) {
	repo := &queryEventRepo{}
	repo.add("u1", event.TypeAppLaunch, day(0))
	repo.add("u1", event.TypeSessionStart, day(0))
	repo.add("u1", event.TypeVTPRStart, day(1))
	repo.add("u2", event.TypeAppLaunch, day(1))

	store := &fakeProgressStore{records: map[shared.UserID][]*progress.Record{
		"u1": {
			seedRecord("u1", "greetings", "hello", 4, 3, progress.StatusCompleted),
			seedRecord("u1", "travel-basics", "ticket", 4, 2, progress.StatusUnlocked),
		},
	}}
	cache := newFakeReportCache()
	h := newUserStatsHandler(repo, store, cache)

	q := GetUserStatsQuery{UserID: "u1", From: day(0), To: day(7)}

	res, err := h.Handle(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, res.FromCache)

	stats := res.Stats
	assert.Equal(t, shared.UserID("u1"), stats.UserID)
	assert.Equal(t, 3, stats.TotalEvents)
	assert.Equal(t, 2, stats.ActiveDays)
	assert.Equal(t, 8, stats.Attempts)
	assert.Equal(t, 5, stats.CorrectAttempts)
	assert.InDelta(t, 0.625, stats.Accuracy, 1e-9)
	assert.Equal(t, 2, stats.MasteredItems)
	assert.Equal(t, 1, stats.CompletedGroups)

	again, err := h.Handle(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, again.FromCache)
	assert.Equal(t, stats.TotalEvents, again.Stats.TotalEvents)
}

func TestGetUserStats_UnknownUser(t *testing.T) {
	h := newUserStatsHandler(&queryEventRepo{}, &fakeProgressStore{}, nil)

	_, err := h.Handle(context.Background(), GetUserStatsQuery{UserID: "ghost"})

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrUserNotFound)
	assert.True(t, shared.IsNotFound(err))
}

func TestGetUserStats_InvalidID(t *testing.T) {
	h := newUserStatsHandler(&queryEventRepo{}, &fakeProgressStore{}, nil)

	_, err := h.Handle(context.Background(), GetUserStatsQuery{UserID: "has space"})

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidUserID)
}

func TestGetUserStats_DirectoryFailure(t *testing.T) {
	dir := &fakeDirectory{err: shared.ErrServiceUnavailable}
	h := NewGetUserStatsHandler(&queryEventRepo{}, &fakeProgressStore{}, dir, nil, testLogger())

	_, err := h.Handle(context.Background(), GetUserStatsQuery{UserID: "u1"})

	require.Error(t, err)
	assert.True(t, shared.IsExternalService(err))
}

func TestGetUserStats_CacheWriteFailureSwallowed(t *testing.T) {
	repo := &queryEventRepo{}
	repo.add("u1", event.TypeAppLaunch, day(0))
	cache := newFakeReportCache()
	cache.writeErr = shared.ErrPersistence
	h := newUserStatsHandler(repo, &fakeProgressStore{}, cache)

	res, err := h.Handle(context.Background(), GetUserStatsQuery{UserID: "u1", From: day(0), To: day(7)})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.TotalEvents)
}
