package progress

import (
	"context"
	"time"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRACKER (domain service)
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot is the group-level view the milestone detector diffs: how many
// items are mastered, how many the catalog requires, and the current
// trailing streak.
type Snapshot struct {
	MasteredCount int
	TotalCount    int
	Streak        int
}

// AllMastered reports whether every required item is mastered.
func (s Snapshot) AllMastered() bool {
	return s.TotalCount > 0 && s.MasteredCount >= s.TotalCount
}

// Tracker records attempts and derives accuracy, streak, and group
// snapshots. It is constructed once at process start and injected into
// its consumers.
//
// Tracker does not serialize writes itself: callers must hold the
// per-(user, group) lock around RecordAttempt and the surrounding
// snapshot reads, since the flow reads then writes.
type Tracker struct {
	repo    Repository
	users   shared.UserDirectory
	catalog ItemCatalog
}

// NewTracker creates a Tracker with its collaborators.
func NewTracker(repo Repository, users shared.UserDirectory, catalog ItemCatalog) *Tracker {
	return &Tracker{
		repo:    repo,
		users:   users,
		catalog: catalog,
	}
}

// RecordAttempt applies one answer for (userID, groupID, itemID).
//
// Unknown users are rejected with a NotFound error; every other input is
// accepted unconditionally - counters only grow. On a correct answer the
// record advances to unlocked, or to completed when this answer masters
// the group's final required item.
func (t *Tracker) RecordAttempt(ctx context.Context, userID shared.UserID, groupID UnitGroupID, itemID ItemID, isCorrect bool) (*Record, error) {
	key := Key{UserID: userID, UnitGroupID: groupID, ItemID: itemID}
	if !key.UserID.IsValid() {
		return nil, shared.ErrInvalidUserID
	}
	if !key.UnitGroupID.IsValid() {
		return nil, shared.ErrInvalidUnitGroupID
	}
	if !key.ItemID.IsValid() {
		return nil, shared.ErrInvalidItemID
	}

	known, err := t.users.Exists(ctx, userID)
	if err != nil {
		return nil, shared.WrapError("progress", "RecordAttempt", shared.ErrExternalService, "user directory lookup failed", err)
	}
	if !known {
		return nil, shared.ErrUserNotFound
	}

	delta := Delta{
		AttemptsDelta: 1,
		Status:        StatusLocked,
		LastAttemptAt: time.Now().UTC(),
	}

	if isCorrect {
		delta.CorrectDelta = 1
		status, err := t.statusAfterCorrect(ctx, key)
		if err != nil {
			return nil, err
		}
		delta.Status = status
	}

	rec, err := t.repo.Upsert(ctx, key, delta)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// statusAfterCorrect decides the target status for a correct answer:
// unlocked normally, completed when this answer masters the last
// required item of the group.
func (t *Tracker) statusAfterCorrect(ctx context.Context, key Key) (Status, error) {
	records, err := t.repo.ListByGroup(ctx, key.UserID, key.UnitGroupID)
	if err != nil {
		return "", err
	}

	alreadyMastered := false
	mastered := 0
	for _, r := range records {
		if !r.IsMastered() {
			continue
		}
		mastered++
		if r.ItemID == key.ItemID {
			alreadyMastered = true
		}
	}
	if alreadyMastered {
		// Re-answering a mastered item never re-triggers completion.
		return StatusUnlocked, nil
	}

	total, err := t.catalog.ItemCount(ctx, key.UnitGroupID)
	if err != nil {
		return "", shared.WrapError("progress", "RecordAttempt", shared.ErrExternalService, "item catalog lookup failed", err)
	}
	if total > 0 && mastered+1 >= total {
		return StatusCompleted, nil
	}
	return StatusUnlocked, nil
}

// Accuracy returns the record's accuracy (0 for nil records).
func (t *Tracker) Accuracy(r *Record) float64 {
	if r == nil {
		return 0
	}
	return r.Accuracy()
}

// Streak returns the user's trailing streak in the group: consecutive
// most-recent records with accuracy at or above the threshold.
func (t *Tracker) Streak(ctx context.Context, userID shared.UserID, groupID UnitGroupID) (int, error) {
	records, err := t.repo.ListByGroup(ctx, userID, groupID)
	if err != nil {
		return 0, err
	}
	return Streak(records), nil
}

// Snapshot builds the group-level view used for milestone detection.
func (t *Tracker) Snapshot(ctx context.Context, userID shared.UserID, groupID UnitGroupID) (Snapshot, error) {
	records, err := t.repo.ListByGroup(ctx, userID, groupID)
	if err != nil {
		return Snapshot{}, err
	}

	total, err := t.catalog.ItemCount(ctx, groupID)
	if err != nil {
		return Snapshot{}, shared.WrapError("progress", "Snapshot", shared.ErrExternalService, "item catalog lookup failed", err)
	}

	return Snapshot{
		MasteredCount: MasteredCount(records),
		TotalCount:    total,
		Streak:        Streak(records),
	}, nil
}
