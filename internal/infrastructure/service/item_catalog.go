package service

import (
	"context"
	"sync"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/progress"
)

// DefaultGroupItemCount is used for groups the catalog has no entry for.
// Lexio lesson groups ship with ten items unless content authoring says
// otherwise.
const DefaultGroupItemCount = 10

// StaticItemCatalog implements progress.ItemCatalog from an in-memory
// table. It stands in for the content service's catalog endpoint; group
// sizes can be seeded at startup and adjusted at runtime.
type StaticItemCatalog struct {
	mu           sync.RWMutex
	counts       map[progress.UnitGroupID]int
	defaultCount int
}

// NewStaticItemCatalog creates a catalog with the given per-group sizes.
// A nil or partial map is fine; unknown groups get DefaultGroupItemCount.
func NewStaticItemCatalog(counts map[progress.UnitGroupID]int) *StaticItemCatalog {
	c := &StaticItemCatalog{
		counts:       make(map[progress.UnitGroupID]int, len(counts)),
		defaultCount: DefaultGroupItemCount,
	}
	for id, n := range counts {
		if n > 0 {
			c.counts[id] = n
		}
	}
	return c
}

var _ progress.ItemCatalog = (*StaticItemCatalog)(nil)

// ItemCount returns the number of required items in the group.
func (c *StaticItemCatalog) ItemCount(ctx context.Context, groupID progress.UnitGroupID) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if n, ok := c.counts[groupID]; ok {
		return n, nil
	}
	return c.defaultCount, nil
}

// SetItemCount overrides the size of a single group. Non-positive counts
// remove the override.
func (c *StaticItemCatalog) SetItemCount(groupID progress.UnitGroupID, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if count <= 0 {
		delete(c.counts, groupID)
		return
	}
	c.counts[groupID] = count
}
