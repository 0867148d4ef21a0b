package query

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/analytics"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/event"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/progress"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
	"github.com/lexio-app/lexio-insight-hub/pkg/logger"
)

// ─────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Output: io.Discard, Level: logger.LevelFatal})
}

// queryEventRepo is a read-side fake honoring the full Filter contract.
type queryEventRepo struct {
	mu     sync.Mutex
	stored []*event.Event
	err    error
}

func (r *queryEventRepo) add(userID string, t event.Type, ts time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stored = append(r.stored, &event.Event{
		ID:        shared.EventID(fmt.Sprintf("%026d", len(r.stored)+1)),
		UserID:    shared.UserID(userID),
		Type:      t,
		Payload:   map[string]interface{}{},
		Timestamp: ts.UTC(),
	})
}

func (r *queryEventRepo) Append(_ context.Context, e *event.Event) (shared.EventID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := shared.EventID(fmt.Sprintf("%026d", len(r.stored)+1))
	clone := e.Clone()
	clone.ID = id
	r.stored = append(r.stored, clone)
	return id, nil
}

func (r *queryEventRepo) Query(_ context.Context, f event.Filter) ([]*event.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	types := make(map[event.Type]struct{}, len(f.Types))
	for _, t := range f.Types {
		types[t] = struct{}{}
	}
	var out []*event.Event
	for _, e := range r.stored {
		if !f.UserID.IsEmpty() && e.UserID != f.UserID {
			continue
		}
		if len(types) > 0 {
			if _, ok := types[e.Type]; !ok {
				continue
			}
		}
		if f.Window.IsValid() && !e.InWindow(f.Window) {
			continue
		}
		out = append(out, e.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (r *queryEventRepo) CountInWindow(_ context.Context, w shared.TimeRange) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.stored {
		if e.InWindow(w) {
			n++
		}
	}
	return n, nil
}

// fakeReportCache keys entries the way the Redis implementation does and
// returns ErrReportNotFound on misses.
type fakeReportCache struct {
	mu          sync.Mutex
	funnels     map[string][]analytics.FunnelStep
	engagements map[string]*analytics.EngagementReport
	stats       map[string]*analytics.UserStats
	readErr     error
	writeErr    error
	gets        int
	sets        int
}

func newFakeReportCache() *fakeReportCache {
	return &fakeReportCache{
		funnels:     make(map[string][]analytics.FunnelStep),
		engagements: make(map[string]*analytics.EngagementReport),
		stats:       make(map[string]*analytics.UserStats),
	}
}

func windowKey(w shared.TimeRange) string {
	return fmt.Sprintf("%d:%d", w.From.Unix(), w.To.Unix())
}

func funnelKey(steps []event.Type, w shared.TimeRange) string {
	return fmt.Sprintf("%v|%s", steps, windowKey(w))
}

func (c *fakeReportCache) GetEngagement(_ context.Context, w shared.TimeRange) (*analytics.EngagementReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.readErr != nil {
		return nil, c.readErr
	}
	if r, ok := c.engagements[windowKey(w)]; ok {
		return r, nil
	}
	return nil, shared.ErrReportNotFound
}

func (c *fakeReportCache) SetEngagement(_ context.Context, report *analytics.EngagementReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.sets++
	c.engagements[windowKey(report.Window)] = report
	return nil
}

func (c *fakeReportCache) GetFunnel(_ context.Context, steps []event.Type, w shared.TimeRange) ([]analytics.FunnelStep, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.readErr != nil {
		return nil, c.readErr
	}
	if f, ok := c.funnels[funnelKey(steps, w)]; ok {
		return f, nil
	}
	return nil, shared.ErrReportNotFound
}

func (c *fakeReportCache) SetFunnel(_ context.Context, steps []event.Type, w shared.TimeRange, result []analytics.FunnelStep) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.sets++
	c.funnels[funnelKey(steps, w)] = result
	return nil
}

func (c *fakeReportCache) GetUserStats(_ context.Context, userID shared.UserID, w shared.TimeRange) (*analytics.UserStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.readErr != nil {
		return nil, c.readErr
	}
	if s, ok := c.stats[userID.String()+"|"+windowKey(w)]; ok {
		return s, nil
	}
	return nil, shared.ErrReportNotFound
}

func (c *fakeReportCache) SetUserStats(_ context.Context, stats *analytics.UserStats) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.sets++
	c.stats[stats.UserID.String()+"|"+windowKey(stats.Window)] = stats
	return nil
}

func (c *fakeReportCache) InvalidateUser(_ context.Context, userID shared.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.stats {
		if len(k) > len(userID) && k[:len(userID)] == userID.String() {
			delete(c.stats, k)
		}
	}
	return nil
}

type fakeDirectory struct {
	known    map[shared.UserID]bool
	newUsers int
	err      error
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
	return f.newUsers, nil
}

// fakeProgressStore serves ListByUser; the read side never writes.
type fakeProgressStore struct {
	records map[shared.UserID][]*progress.Record
}

func (f *fakeProgressStore) Upsert(_ context.Context, key progress.Key, _ progress.Delta) (*progress.Record, error) {
	return nil, shared.ErrPersistence
}

func (f *fakeProgressStore) Get(_ context.Context, key progress.Key) (*progress.Record, error) {
	return nil, shared.ErrProgressNotFound
}

func (f *fakeProgressStore) ListByGroup(_ context.Context, userID shared.UserID, groupID progress.UnitGroupID) ([]*progress.Record, error) {
	var out []*progress.Record
	for _, r := range f.records[userID] {
		if r.UnitGroupID == groupID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeProgressStore) ListByUser(_ context.Context, userID shared.UserID) ([]*progress.Record, error) {
	return f.records[userID], nil
}

// ─────────────────────────────────────────────
// GetFunnel
// ─────────────────────────────────────────────

func day(n int) time.Time {
	return time.Date(2026, 3, 1+n, 0, 0, 0, 0, time.UTC)
}

func TestGetFunnel_ComputesOverStore(t *testing.T) {
	repo := &queryEventRepo{}
	repo.add("u1", event.TypeAppLaunch, day(0))
	repo.add("u2", event.TypeAppLaunch, day(0))
	repo.add("u3", event.TypeAppLaunch, day(1))
	repo.add("u1", event.TypeOnboardingComplete, day(1))
	repo.add("u2", event.TypeOnboardingComplete, day(1))
	cache := newFakeReportCache()
	h := NewGetFunnelHandler(repo, cache, testLogger())

	q := GetFunnelQuery{
		Steps: []string{"app_launch", "onboarding_complete"},
		From:  day(0),
		To:    day(3),
	}

	res, err := h.Handle(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, res.Steps, 2)
	assert.False(t, res.FromCache)
	assert.Equal(t, 3, res.Steps[0].UserCount)
	assert.Equal(t, 1.0, res.Steps[0].ConversionRate)
	assert.Equal(t, 2, res.Steps[1].UserCount)
	assert.InDelta(t, 2.0/3.0, res.Steps[1].ConversionRate, 1e-9)

	// Second read is served from the cache with identical numbers.
	again, err := h.Handle(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, again.FromCache)
	assert.Equal(t, res.Steps, again.Steps)
}

func TestGetFunnel_DefaultSteps(t *testing.T) {
	repo := &queryEventRepo{}
	repo.add("u1", event.TypeAppLaunch, time.Now().UTC().Add(-time.Hour))
	h := NewGetFunnelHandler(repo, nil, testLogger())

	res, err := h.Handle(context.Background(), GetFunnelQuery{})

	require.NoError(t, err)
	require.Len(t, res.Steps, len(analytics.DefaultFunnelSteps()))
	assert.Equal(t, "app_launch", res.Steps[0].StepName)
	assert.Equal(t, 1, res.Steps[0].UserCount)
}

func TestGetFunnel_UnknownStepRejected(t *testing.T) {
	h := NewGetFunnelHandler(&queryEventRepo{}, nil, testLogger())

	_, err := h.Handle(context.Background(), GetFunnelQuery{
		Steps: []string{"app_launch", "jazz_hands"},
	})

	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestGetFunnel_TooManySteps(t *testing.T) {
	h := NewGetFunnelHandler(&queryEventRepo{}, nil, testLogger())

	steps := make([]string, MaxFunnelSteps+1)
	for i := range steps {
		steps[i] = "app_launch"
	}

	_, err := h.Handle(context.Background(), GetFunnelQuery{Steps: steps})

	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestGetFunnel_InvalidWindow(t *testing.T) {
	h := NewGetFunnelHandler(&queryEventRepo{}, nil, testLogger())

	_, err := h.Handle(context.Background(), GetFunnelQuery{
		Steps: []string{"app_launch"},
		From:  day(2),
		To:    day(1),
	})

	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestGetFunnel_SkipCacheRecomputesAndRewarms(t *testing.T) {
	repo := &queryEventRepo{}
	repo.add("u1", event.TypeAppLaunch, day(0))
	cache := newFakeReportCache()
	h := NewGetFunnelHandler(repo, cache, testLogger())

	res, err := h.Handle(context.Background(), GetFunnelQuery{
		Steps: []string{"app_launch"}, From: day(0), To: day(1), SkipCache: true,
	})

	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, 0, cache.gets)
	assert.Equal(t, 1, cache.sets)
}

func TestGetFunnel_CacheFailureDegradesToCompute(t *testing.T) {
	repo := &queryEventRepo{}
	repo.add("u1", event.TypeAppLaunch, day(0))
	cache := newFakeReportCache()
	cache.readErr = shared.ErrPersistence
	cache.writeErr = shared.ErrPersistence
	h := NewGetFunnelHandler(repo, cache, testLogger())

	res, err := h.Handle(context.Background(), GetFunnelQuery{
		Steps: []string{"app_launch"}, From: day(0), To: day(1),
	})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Steps[0].UserCount)
}
