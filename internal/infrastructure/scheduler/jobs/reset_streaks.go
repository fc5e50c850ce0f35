package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/user"
	"github.com/ecolearn-hub/ecolearn-backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESET STREAKS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ResetStreaksJob zeroes the streak of users who missed a day. The award path
// already restarts a broken streak on the next activity, so this job exists
// for the read side: without it a profile would keep showing a stale streak
// until the user earns XP again. Runs shortly after the UTC day boundary.
type ResetStreaksJob struct {
	userRepo user.Repository
	logger   *slog.Logger

	config ResetStreaksConfig

	lastStats atomic.Value // *ResetStreaksStats
}

// ResetStreaksConfig contains configuration for the reset job.
type ResetStreaksConfig struct {
	// Timeout is the maximum duration for the job.
	Timeout time.Duration
}

// DefaultResetStreaksConfig returns sensible defaults.
func DefaultResetStreaksConfig() ResetStreaksConfig {
	return ResetStreaksConfig{
		Timeout: time.Minute,
	}
}

// ResetStreaksStats contains statistics from a reset run.
type ResetStreaksStats struct {
	StartedAt    time.Time
	CompletedAt  time.Time
	Duration     time.Duration
	StreaksReset int64
}

// NewResetStreaksJob creates a new reset streaks job.
func NewResetStreaksJob(userRepo user.Repository, logger *slog.Logger, config ResetStreaksConfig) *ResetStreaksJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &ResetStreaksJob{
		userRepo: userRepo,
		logger:   logger,
		config:   config,
	}
}

// Name returns the job name.
func (j *ResetStreaksJob) Name() string {
	return "reset_streaks"
}

// Description returns a human-readable description.
func (j *ResetStreaksJob) Description() string {
	return "Zeroes streaks of users who missed a full day of activity"
}

// Run executes the reset.
func (j *ResetStreaksJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &ResetStreaksStats{StartedAt: startedAt}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	// Users active yesterday can still extend their streak today, so the
	// cutoff is the start of yesterday.
	cutoff := timeutil.StartOfDay(timeutil.Now().AddDate(0, 0, -1))

	reset, err := j.userRepo.ResetStaleStreaks(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to reset stale streaks: %w", err)
	}

	stats.StreaksReset = reset
	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastStats.Store(stats)

	j.logger.Info("reset_streaks job completed",
		"duration", stats.Duration.String(),
		"streaks_reset", reset,
		"cutoff", timeutil.FormatDateStr(cutoff),
	)

	return nil
}

// LastStats returns statistics from the last completed run.
func (j *ResetStreaksJob) LastStats() *ResetStreaksStats {
	stats := j.lastStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*ResetStreaksStats)
}
