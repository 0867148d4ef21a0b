package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlags_Defaults(t *testing.T) {
	ff := LoadFeatureFlags()

	ctx := &FeatureContext{UserID: "user-1"}

	assert.True(t, ff.IsEnabled(FeatureFocusMode, ctx))
	assert.True(t, ff.IsEnabled(FeatureNotifyMilestone, ctx))
	assert.False(t, ff.IsEnabled(FeatureExperimentalRetentionModel, ctx))
	assert.False(t, ff.IsEnabled("does.not.exist", ctx))
}

func TestFeatureFlags_EnvOverride(t *testing.T) {
	t.Setenv("FEATURE_FOCUS_MODE", "false")
	t.Setenv("FEATURE_PROGRESS_SPEED_BONUS", "100")

	ff := LoadFeatureFlags()
	ctx := &FeatureContext{UserID: "user-1"}

	assert.False(t, ff.IsEnabled(FeatureFocusMode, ctx))
	assert.True(t, ff.IsEnabled(FeatureProgressSpeedBonus, ctx))
}

func TestFeatureFlags_RolloutIsDeterministic(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureProgressSpeedBonus, 50))

	ctx := &FeatureContext{UserID: "sticky-user"}
	first := ff.IsEnabled(FeatureProgressSpeedBonus, ctx)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, ff.IsEnabled(FeatureProgressSpeedBonus, ctx))
	}
}

func TestFeatureFlags_RolloutBoundaries(t *testing.T) {
	ff := LoadFeatureFlags()

	require.NoError(t, ff.SetRolloutPercent(FeatureProgressSpeedBonus, 0))
	assert.False(t, ff.IsEnabled(FeatureProgressSpeedBonus, &FeatureContext{UserID: "u"}))

	require.NoError(t, ff.SetRolloutPercent(FeatureProgressSpeedBonus, 100))
	assert.True(t, ff.IsEnabled(FeatureProgressSpeedBonus, &FeatureContext{UserID: "u"}))

	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureProgressSpeedBonus, 150), ErrInvalidRolloutPercent)
	assert.ErrorIs(t, ff.SetRolloutPercent("does.not.exist", 10), ErrFeatureNotFound)
}

func TestFeatureFlags_UserOverrideWins(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.DisableFeature(FeatureFocusMode))

	ff.SetUserOverride("qa-user", FeatureFocusMode, true)

	assert.True(t, ff.IsEnabled(FeatureFocusMode, &FeatureContext{UserID: "qa-user"}))
	assert.False(t, ff.IsEnabled(FeatureFocusMode, &FeatureContext{UserID: "other"}))

	ff.ClearUserOverrides("qa-user")
	assert.False(t, ff.IsEnabled(FeatureFocusMode, &FeatureContext{UserID: "qa-user"}))
}

func TestFeatureFlags_AdminBypassesRollout(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureNotifyStageUnlock, 0))

	// Admins see every known feature regardless of rollout state.
	assert.True(t, ff.IsEnabled(FeatureNotifyStageUnlock, &FeatureContext{UserID: "a", IsAdmin: true}))
	assert.False(t, ff.IsEnabled(FeatureNotifyStageUnlock, &FeatureContext{UserID: "a"}))
}

func TestFeatureFlags_GetVariant(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.EnableFeature(FeatureExperimentalFocusThresholds))

	ctx := &FeatureContext{UserID: "user-42"}
	v := ff.GetVariant(FeatureExperimentalFocusThresholds, ctx)
	assert.Contains(t, []string{"control", "eager", "patient"}, v)

	// Assignment is sticky for a given user.
	assert.Equal(t, v, ff.GetVariant(FeatureExperimentalFocusThresholds, ctx))

	// Features without variants report none.
	assert.Empty(t, ff.GetVariant(FeatureFocusMode, ctx))
}

func TestFeatureFlags_GetAllFeaturesReturnsCopies(t *testing.T) {
	ff := LoadFeatureFlags()

	all := ff.GetAllFeatures()
	require.Contains(t, all, FeatureFocusMode)

	all[FeatureFocusMode].Enabled = false
	assert.True(t, ff.IsEnabled(FeatureFocusMode, &FeatureContext{UserID: "u"}))
}
