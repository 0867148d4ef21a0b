package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/notify"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/progress"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
)

func TestStaticItemCatalog_DefaultCount(t *testing.T) {
	catalog := NewStaticItemCatalog(nil)

	n, err := catalog.ItemCount(context.Background(), progress.UnitGroupID("g1"))
	require.NoError(t, err)
	assert.Equal(t, DefaultGroupItemCount, n)
}

func TestStaticItemCatalog_Overrides(t *testing.T) {
	catalog := NewStaticItemCatalog(map[progress.UnitGroupID]int{
		"intro": 5,
	})

	n, err := catalog.ItemCount(context.Background(), progress.UnitGroupID("intro"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	catalog.SetItemCount("intro", 8)
	n, _ = catalog.ItemCount(context.Background(), progress.UnitGroupID("intro"))
	assert.Equal(t, 8, n)

	// A non-positive count removes the override.
	catalog.SetItemCount("intro", 0)
	n, _ = catalog.ItemCount(context.Background(), progress.UnitGroupID("intro"))
	assert.Equal(t, DefaultGroupItemCount, n)
}

func TestPushGatewayStub_CountsDeliveries(t *testing.T) {
	gw := NewPushGatewayStub(nil)

	push := notify.Push{
		UserID:   shared.UserID("u1"),
		Kind:     notify.KindMilestone,
		Priority: notify.PriorityNormal,
		Title:    "Nice streak!",
	}
	require.NoError(t, gw.Send(context.Background(), push))
	require.NoError(t, gw.Send(context.Background(), push))

	assert.Equal(t, int64(2), gw.Sent())
}

func TestStageGateStub_TracksUnlocks(t *testing.T) {
	gate := NewStageGateStub(nil)

	assert.False(t, gate.IsUnlocked(shared.UserID("u1"), "stage-2"))

	require.NoError(t, gate.UnlockNextStage(context.Background(), shared.UserID("u1"), "stage-2"))
	assert.True(t, gate.IsUnlocked(shared.UserID("u1"), "stage-2"))

	// Unlocking again is idempotent.
	require.NoError(t, gate.UnlockNextStage(context.Background(), shared.UserID("u1"), "stage-2"))
	assert.True(t, gate.IsUnlocked(shared.UserID("u1"), "stage-2"))

	assert.False(t, gate.IsUnlocked(shared.UserID("u2"), "stage-2"))
}

func TestIDGenerator_ProducesUniqueIDs(t *testing.T) {
	gen := NewIDGenerator()

	a := gen.GenerateID()
	b := gen.GenerateID()

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
