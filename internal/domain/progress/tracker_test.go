package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
)

// ─────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────

// fakeRepo applies deltas in memory and keeps keys in last-touched order
// so ListByGroup returns most-recent-first deterministically.
type fakeRepo struct {
	records map[string]*Record
	touched []string
	err     error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string]*Record)}
}

func (f *fakeRepo) touch(key string) {
	for i, k := range f.touched {
		if k == key {
			f.touched = append(f.touched[:i], f.touched[i+1:]...)
			break
		}
	}
	f.touched = append([]string{key}, f.touched...)
}

func (f *fakeRepo) Upsert(_ context.Context, key Key, d Delta) (*Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.records[key.String()]
	if !ok {
		r = NewRecord(key, d.LastAttemptAt)
		f.records[key.String()] = r
	}
	r.Attempts += d.AttemptsDelta
	r.CorrectAttempts += d.CorrectDelta
	if r.Status.Before(d.Status) {
		r.Status = d.Status
	}
	at := d.LastAttemptAt
	r.LastAttemptAt = &at
	r.UpdatedAt = at
	f.touch(key.String())
	return r.Clone(), nil
}

func (f *fakeRepo) Get(_ context.Context, key Key) (*Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.records[key.String()]
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	return r.Clone(), nil
}

func (f *fakeRepo) ListByGroup(_ context.Context, userID shared.UserID, groupID UnitGroupID) ([]*Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*Record
	for _, key := range f.touched {
		r := f.records[key]
		if r.UserID == userID && r.UnitGroupID == groupID {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (f *fakeRepo) ListByUser(_ context.Context, userID shared.UserID) ([]*Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*Record
	for _, key := range f.touched {
		r := f.records[key]
		if r.UserID == userID {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

type fakeDirectory struct {
	known map[shared.UserID]bool
	err   error
}

func (f *fakeDirectory) Exists(_ context.Context, id shared.UserID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.known[id], nil
}

func (f *fakeDirectory) CountCreatedWithin(_ context.Context, _, _ time.Time) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return len(f.known), nil
}

type fakeCatalog struct {
	counts map[UnitGroupID]int
	err    error
}

func (f *fakeCatalog) ItemCount(_ context.Context, groupID UnitGroupID) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[groupID], nil
}

func newTestTracker(known ...shared.UserID) (*Tracker, *fakeRepo, *fakeCatalog) {
	repo := newFakeRepo()
	dir := &fakeDirectory{known: make(map[shared.UserID]bool)}
	for _, id := range known {
		dir.known[id] = true
	}
	catalog := &fakeCatalog{counts: map[UnitGroupID]int{"travel-basics": 3}}
	return NewTracker(repo, dir, catalog), repo, catalog
}

// ─────────────────────────────────────────────
// RecordAttempt
// ─────────────────────────────────────────────

func TestTracker_RecordAttempt_UnknownUser(t *testing.T) {
	tracker, _, _ := newTestTracker("user-1")

	_, err := tracker.RecordAttempt(context.Background(), "ghost", "travel-basics", "airport", true)

	require.ErrorIs(t, err, shared.ErrUserNotFound)
	assert.True(t, shared.IsNotFound(err))
}

func TestTracker_RecordAttempt_InvalidIDs(t *testing.T) {
	tracker, _, _ := newTestTracker("user-1")
	ctx := context.Background()

	_, err := tracker.RecordAttempt(ctx, "", "travel-basics", "airport", true)
	assert.ErrorIs(t, err, shared.ErrInvalidUserID)

	_, err = tracker.RecordAttempt(ctx, "user-1", "bad group", "airport", true)
	assert.ErrorIs(t, err, shared.ErrInvalidUnitGroupID)

	_, err = tracker.RecordAttempt(ctx, "user-1", "travel-basics", "a/b", true)
	assert.ErrorIs(t, err, shared.ErrInvalidItemID)
}

func TestTracker_RecordAttempt_IncorrectCreatesLocked(t *testing.T) {
	tracker, _, _ := newTestTracker("user-1")

	rec, err := tracker.RecordAttempt(context.Background(), "user-1", "travel-basics", "airport", false)

	require.NoError(t, err)
	assert.Equal(t, 1, rec.Attempts)
	assert.Equal(t, 0, rec.CorrectAttempts)
	assert.Equal(t, StatusLocked, rec.Status)
}

func TestTracker_RecordAttempt_FirstCorrectUnlocks(t *testing.T) {
	tracker, _, _ := newTestTracker("user-1")
	ctx := context.Background()

	_, err := tracker.RecordAttempt(ctx, "user-1", "travel-basics", "airport", false)
	require.NoError(t, err)
	rec, err := tracker.RecordAttempt(ctx, "user-1", "travel-basics", "airport", true)

	require.NoError(t, err)
	assert.Equal(t, 2, rec.Attempts)
	assert.Equal(t, 1, rec.CorrectAttempts)
	assert.Equal(t, StatusUnlocked, rec.Status)
}

func TestTracker_RecordAttempt_LastItemCompletesGroup(t *testing.T) {
	tracker, _, _ := newTestTracker("user-1")
	ctx := context.Background()

	// Group requires 3 items; master two, then the third.
	for _, item := range []ItemID{"airport", "ticket"} {
		rec, err := tracker.RecordAttempt(ctx, "user-1", "travel-basics", item, true)
		require.NoError(t, err)
		assert.Equal(t, StatusUnlocked, rec.Status)
	}

	rec, err := tracker.RecordAttempt(ctx, "user-1", "travel-basics", "luggage", true)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, rec.Status)
}

func TestTracker_RecordAttempt_RepeatOnMasteredStaysPut(t *testing.T) {
	tracker, _, _ := newTestTracker("user-1")
	ctx := context.Background()

	for _, item := range []ItemID{"airport", "ticket", "luggage"} {
		_, err := tracker.RecordAttempt(ctx, "user-1", "travel-basics", item, true)
		require.NoError(t, err)
	}

	// Re-answering the completing item: completed is terminal, and the
	// completion must not fire again.
	rec, err := tracker.RecordAttempt(ctx, "user-1", "travel-basics", "luggage", true)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, 2, rec.Attempts)

	// An incorrect answer on it does not regress either.
	rec, err = tracker.RecordAttempt(ctx, "user-1", "travel-basics", "luggage", false)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, rec.Status)
}

func TestTracker_RecordAttempt_UnknownGroupNeverCompletes(t *testing.T) {
	tracker, _, _ := newTestTracker("user-1")
	ctx := context.Background()

	// Catalog has no count for this group (0 items): mastery can never
	// reach a total of zero, so the status stays unlocked.
	rec, err := tracker.RecordAttempt(ctx, "user-1", "mystery-group", "item", true)
	require.NoError(t, err)
	assert.Equal(t, StatusUnlocked, rec.Status)
}

func TestTracker_RecordAttempt_DirectoryFailure(t *testing.T) {
	repo := newFakeRepo()
	dir := &fakeDirectory{err: errors.New("directory down")}
	catalog := &fakeCatalog{counts: map[UnitGroupID]int{}}
	tracker := NewTracker(repo, dir, catalog)

	_, err := tracker.RecordAttempt(context.Background(), "user-1", "g", "i", true)

	require.Error(t, err)
	assert.True(t, shared.IsExternalService(err))
	assert.Empty(t, repo.records, "attempt must not be recorded when the lookup fails")
}

func TestTracker_RecordAttempt_CatalogFailure(t *testing.T) {
	repo := newFakeRepo()
	dir := &fakeDirectory{known: map[shared.UserID]bool{"user-1": true}}
	catalog := &fakeCatalog{err: errors.New("catalog down")}
	tracker := NewTracker(repo, dir, catalog)

	_, err := tracker.RecordAttempt(context.Background(), "user-1", "g", "i", true)

	require.Error(t, err)
	assert.True(t, shared.IsExternalService(err))
	assert.Empty(t, repo.records)
}

// ─────────────────────────────────────────────
// Snapshot & Streak
// ─────────────────────────────────────────────

func TestTracker_Snapshot(t *testing.T) {
	tracker, _, _ := newTestTracker("user-1")
	ctx := context.Background()

	_, err := tracker.RecordAttempt(ctx, "user-1", "travel-basics", "airport", true)
	require.NoError(t, err)
	_, err = tracker.RecordAttempt(ctx, "user-1", "travel-basics", "ticket", false)
	require.NoError(t, err)

	snap, err := tracker.Snapshot(ctx, "user-1", "travel-basics")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.MasteredCount)
	assert.Equal(t, 3, snap.TotalCount)
	assert.False(t, snap.AllMastered())
}

func TestTracker_Snapshot_AllMastered(t *testing.T) {
	tracker, _, _ := newTestTracker("user-1")
	ctx := context.Background()

	for _, item := range []ItemID{"airport", "ticket", "luggage"} {
		_, err := tracker.RecordAttempt(ctx, "user-1", "travel-basics", item, true)
		require.NoError(t, err)
	}

	snap, err := tracker.Snapshot(ctx, "user-1", "travel-basics")
	require.NoError(t, err)
	assert.Equal(t, 3, snap.MasteredCount)
	assert.True(t, snap.AllMastered())
}

func TestTracker_Streak(t *testing.T) {
	tracker, _, _ := newTestTracker("user-1")
	ctx := context.Background()

	// airport: clean. ticket: below the bar. luggage: clean, most recent.
	_, err := tracker.RecordAttempt(ctx, "user-1", "travel-basics", "airport", true)
	require.NoError(t, err)
	_, err = tracker.RecordAttempt(ctx, "user-1", "travel-basics", "ticket", false)
	require.NoError(t, err)
	_, err = tracker.RecordAttempt(ctx, "user-1", "travel-basics", "luggage", true)
	require.NoError(t, err)

	streak, err := tracker.Streak(ctx, "user-1", "travel-basics")
	require.NoError(t, err)
	assert.Equal(t, 1, streak, "the miss on ticket cuts the streak")
}

func TestTracker_Accuracy_NilRecord(t *testing.T) {
	tracker, _, _ := newTestTracker()
	assert.Equal(t, 0.0, tracker.Accuracy(nil))
}
