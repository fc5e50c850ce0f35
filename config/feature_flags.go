package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles and gradual rollouts. Buckets are
// assigned by a consistent hash of the username, so a user stays on the same
// side of a rollout across requests.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// Override rules (for testing/debugging)
	userOverrides map[string]map[string]bool // username -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	Username string
	IsAdmin  bool
}

// Predefined feature flag names.
const (
	// === Leaderboard Features ===
	FeatureLeaderboardViewerRank = "leaderboard.viewer_rank" // Append viewer's own rank

	// === Gamification Features ===
	FeatureGamificationStreaks = "gamification.streaks" // Daily streaks
	FeatureGamificationBadges  = "gamification.badges"  // Badge grants
	FeatureGamificationGems    = "gamification.gems"    // Gem bonuses for badges

	// === Content Features ===
	FeatureContentQuizzes    = "content.quizzes"    // Quiz submissions
	FeatureContentChallenges = "content.challenges" // Eco challenges

	// === Experimental Features ===
	FeatureExperimentalWeeklyRanks = "experimental.weekly_ranks" // Weekly leaderboard slices
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[string]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureLeaderboardViewerRank] = &Feature{
		Name:           FeatureLeaderboardViewerRank,
		Description:    "Show the viewer's own rank below the top list",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureGamificationStreaks] = &Feature{
		Name:           FeatureGamificationStreaks,
		Description:    "Track daily activity streaks",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureGamificationBadges] = &Feature{
		Name:           FeatureGamificationBadges,
		Description:    "Grant badges on XP and level milestones",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureGamificationGems] = &Feature{
		Name:           FeatureGamificationGems,
		Description:    "Award gem bonuses with badge grants",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureContentQuizzes] = &Feature{
		Name:           FeatureContentQuizzes,
		Description:    "Accept quiz submissions",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureContentChallenges] = &Feature{
		Name:           FeatureContentChallenges,
		Description:    "Accept eco challenge submissions",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureExperimentalWeeklyRanks] = &Feature{
		Name:           FeatureExperimentalWeeklyRanks,
		Description:    "Weekly leaderboard slices",
		Enabled:        false,
		RolloutPercent: 0,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_CONTENT_CHALLENGES=true
// Example: FEATURE_EXPERIMENTAL_WEEKLY_RANKS=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "content.challenges" -> "FEATURE_CONTENT_CHALLENGES"
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
	if ctx != nil && ctx.Username != "" {
		if userOverrides, ok := ff.userOverrides[ctx.Username]; ok {
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

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.Username != "" {
		return ff.isInRollout(ctx.Username, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a user is in the rollout percentage.
// Uses consistent hashing so users stay in their bucket.
func (ff *FeatureFlags) isInRollout(username, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(username))
	hash := h.Sum32()

	bucket := int(hash % 100)

	return bucket < percent
}

// SetUserOverride sets a feature override for a specific user.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetUserOverride(username, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.userOverrides[username]; !ok {
		ff.userOverrides[username] = make(map[string]bool)
	}
	ff.userOverrides[username][featureName] = enabled
}

// ClearUserOverrides removes all overrides for a user.
func (ff *FeatureFlags) ClearUserOverrides(username string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.userOverrides, username)
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
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
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
