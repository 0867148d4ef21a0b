package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles and A/B testing.
// Supports gradual rollout, user targeting, and cohort-based experiments.
//
// Learning features are tuned for retention, not engagement-at-any-cost:
// difficulty adaptation kicks in before frustration, and pushes celebrate
// real progress instead of nagging.
type FeatureFlags struct {
	mu sync.RWMutex

	// Core features
	features map[string]*Feature

	// Override rules (for testing/debugging)
	userOverrides map[string]map[string]bool // userID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Users are assigned based on hash of their ID
	RolloutPercent int

	// Cohort targeting (e.g., "2026-q1", "2026-q2")
	// Empty means all cohorts
	TargetCohorts []string

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time

	// A/B test variant (for experiments)
	Variants []string
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	UserID string // App user ID

	Cohort  string // Signup cohort (e.g., "2026-q1")
	IsAdmin bool   // Is internal/admin user
}

// Predefined feature flag names.
const (
	// === Focus Mode (adaptive difficulty) ===
	FeatureFocusMode          = "focus.mode"           // Narrow drills after repeated misses
	FeatureFocusRecoveryProbe = "focus.recovery_probe" // Probe exits with a known-good item

	// === Progression Features ===
	FeatureProgressSpeedBonus = "progress.speed_bonus" // Extra credit for fast correct answers
	FeatureProgressStageGate  = "progress.stage_gate"  // Auto-unlock the next stage on completion

	// === Notification Features ===
	FeatureNotifyMilestone   = "notify.milestone"    // Streak / completion milestone pushes
	FeatureNotifyMagicMoment = "notify.magic_moment" // First-session breakthrough push
	FeatureNotifyStageUnlock = "notify.stage_unlock" // "New stage available"

	// === Analytics Features ===
	FeatureAnalyticsReportCache = "analytics.report_cache" // Serve reports from Redis
	FeatureAnalyticsUserStats   = "analytics.user_stats"   // Per-user stats endpoint

	// === Experimental Features ===
	FeatureExperimentalFocusThresholds = "experimental.focus_thresholds" // Alternative entry thresholds
	FeatureExperimentalRetentionModel  = "experimental.retention_model"  // Cohort retention curves
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[string]map[string]bool),
	}

	// Initialize all features with defaults
	ff.initializeDefaults()

	// Load overrides from environment
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	// Focus Mode - core to the product, enabled by default
	ff.features[FeatureFocusMode] = &Feature{
		Name:           FeatureFocusMode,
		Description:    "Adaptive narrowing after repeated misses",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureFocusRecoveryProbe] = &Feature{
		Name:           FeatureFocusRecoveryProbe,
		Description:    "Exit focus mode through a recovery probe item",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Progression features
	ff.features[FeatureProgressSpeedBonus] = &Feature{
		Name:           FeatureProgressSpeedBonus,
		Description:    "Extra credit for fast correct answers",
		Enabled:        true,
		RolloutPercent: 50, // Gradual rollout
	}

	ff.features[FeatureProgressStageGate] = &Feature{
		Name:           FeatureProgressStageGate,
		Description:    "Unlock the next stage on group completion",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Notification features - carefully tuned to avoid spam
	ff.features[FeatureNotifyMilestone] = &Feature{
		Name:           FeatureNotifyMilestone,
		Description:    "Push on streak and completion milestones",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureNotifyMagicMoment] = &Feature{
		Name:           FeatureNotifyMagicMoment,
		Description:    "Push on the first-session breakthrough",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureNotifyStageUnlock] = &Feature{
		Name:           FeatureNotifyStageUnlock,
		Description:    "Push when a new stage becomes available",
		Enabled:        true,
		RolloutPercent: 50, // A/B test
	}

	// Analytics features
	ff.features[FeatureAnalyticsReportCache] = &Feature{
		Name:           FeatureAnalyticsReportCache,
		Description:    "Serve funnel and engagement reports from cache",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAnalyticsUserStats] = &Feature{
		Name:           FeatureAnalyticsUserStats,
		Description:    "Per-user stats endpoint",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Experimental features - disabled by default
	ff.features[FeatureExperimentalFocusThresholds] = &Feature{
		Name:           FeatureExperimentalFocusThresholds,
		Description:    "Alternative focus-mode entry thresholds",
		Enabled:        false,
		RolloutPercent: 0,
		Variants:       []string{"control", "eager", "patient"},
	}

	ff.features[FeatureExperimentalRetentionModel] = &Feature{
		Name:           FeatureExperimentalRetentionModel,
		Description:    "Cohort-based retention curves",
		Enabled:        false,
		RolloutPercent: 0,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_FOCUS_MODE=true
// Example: FEATURE_PROGRESS_SPEED_BONUS=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			// Try parsing as boolean
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			// Try parsing as percentage
			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "focus.mode" -> "FEATURE_FOCUS_MODE"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Check user overrides first
	if ctx != nil && ctx.UserID != "" {
		if userOverrides, ok := ff.userOverrides[ctx.UserID]; ok {
			if enabled, ok := userOverrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	// Admin users get all features
	if ctx != nil && ctx.IsAdmin {
		return true
	}

	// Check if feature is enabled at all
	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check cohort targeting
	if len(feature.TargetCohorts) > 0 && ctx != nil && ctx.Cohort != "" {
		cohortMatch := false
		for _, c := range feature.TargetCohorts {
			if c == ctx.Cohort {
				cohortMatch = true
				break
			}
		}
		if !cohortMatch {
			return false
		}
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.UserID != "" {
		return ff.isInRollout(ctx.UserID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a user is in the rollout percentage.
// Uses consistent hashing so users stay in their bucket.
func (ff *FeatureFlags) isInRollout(userID, featureName string, percent int) bool {
	// Create a consistent hash for this user+feature combination
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(userID))
	hash := h.Sum32()

	// Map to 0-99 range
	bucket := int(hash % 100)

	return bucket < percent
}

// GetVariant returns the A/B test variant for a user.
// Returns empty string if no variants defined or feature disabled.
func (ff *FeatureFlags) GetVariant(featureName string, ctx *FeatureContext) string {
	ff.mu.RLock()
	feature, ok := ff.features[featureName]
	ff.mu.RUnlock()

	if !ok || !ff.IsEnabled(featureName, ctx) {
		return ""
	}

	if len(feature.Variants) == 0 || ctx == nil {
		return ""
	}

	// Use consistent hashing to assign variant
	h := fnv.New32a()
	h.Write([]byte(featureName + "_variant"))
	h.Write([]byte(ctx.UserID))
	hash := h.Sum32()

	variantIndex := int(hash % uint32(len(feature.Variants)))
	return feature.Variants[variantIndex]
}

// SetUserOverride sets a feature override for a specific user.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetUserOverride(userID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.userOverrides[userID]; !ok {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][featureName] = enabled
}

// ClearUserOverrides removes all overrides for a user.
func (ff *FeatureFlags) ClearUserOverrides(userID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.userOverrides, userID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		// Return a copy
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Convenience methods for common checks ---

// FocusModeEnabled checks if adaptive difficulty is active for a user.
func (ff *FeatureFlags) FocusModeEnabled(ctx *FeatureContext) bool {
	return ff.IsEnabled(FeatureFocusMode, ctx)
}

// NotificationsEnabled checks if any push notifications are enabled.
func (ff *FeatureFlags) NotificationsEnabled(ctx *FeatureContext) bool {
	return ff.IsEnabled(FeatureNotifyMilestone, ctx) ||
		ff.IsEnabled(FeatureNotifyMagicMoment, ctx) ||
		ff.IsEnabled(FeatureNotifyStageUnlock, ctx)
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
