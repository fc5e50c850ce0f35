// Package jobs contains implementations of scheduled jobs for EcoLearn.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/leaderboard"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE RANK INDEX JOB
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileRankIndexJob walks the user ledger and repairs the Redis rank index
// wherever the two disagree. PostgreSQL is the source of truth; a propagation
// failure after an award, a flushed Redis instance, or a restore from backup
// all leave the index stale, and this job converges it back. Safe to run
// concurrently with awards: a reconcile write and an award write carry the
// same ledger value or a newer one.
type ReconcileRankIndexJob struct {
	userRepo  user.Repository
	rankIndex leaderboard.RankIndex
	logger    *slog.Logger

	config ReconcileConfig

	lastStats atomic.Value // *ReconcileStats
}

// ReconcileConfig contains configuration for the reconcile job.
type ReconcileConfig struct {
	// PageSize is how many users to load from the ledger per page.
	PageSize int

	// Concurrency is the number of parallel index comparisons per page.
	Concurrency int

	// Timeout is the maximum duration for a full reconcile pass.
	Timeout time.Duration
}

// DefaultReconcileConfig returns sensible defaults.
func DefaultReconcileConfig() ReconcileConfig {
	return ReconcileConfig{
		PageSize:    500,
		Concurrency: 8,
		Timeout:     5 * time.Minute,
	}
}

// ReconcileStats contains statistics from a reconcile run.
type ReconcileStats struct {
	StartedAt    time.Time
	CompletedAt  time.Time
	Duration     time.Duration
	UsersChecked int64
	Repaired     int64
	Missing      int64
	Failures     int64
}

// NewReconcileRankIndexJob creates a new reconcile job.
func NewReconcileRankIndexJob(
	userRepo user.Repository,
	rankIndex leaderboard.RankIndex,
	logger *slog.Logger,
	config ReconcileConfig,
) *ReconcileRankIndexJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.PageSize <= 0 {
		config.PageSize = 500
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 8
	}

	return &ReconcileRankIndexJob{
		userRepo:  userRepo,
		rankIndex: rankIndex,
		logger:    logger,
		config:    config,
	}
}

// Name returns the job name.
func (j *ReconcileRankIndexJob) Name() string {
	return "reconcile_rank_index"
}

// Description returns a human-readable description.
func (j *ReconcileRankIndexJob) Description() string {
	return "Reconciles the Redis rank index against the user XP ledger"
}

// Run executes a full reconcile pass.
func (j *ReconcileRankIndexJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &ReconcileStats{StartedAt: startedAt}

	j.logger.Info("starting reconcile_rank_index job")

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	offset := 0
	for {
		users, err := j.userRepo.List(ctx, offset, j.config.PageSize)
		if err != nil {
			return fmt.Errorf("failed to list users at offset %d: %w", offset, err)
		}
		if len(users) == 0 {
			break
		}

		if err := j.reconcilePage(ctx, users, stats); err != nil {
			return err
		}

		if len(users) < j.config.PageSize {
			break
		}
		offset += j.config.PageSize
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastStats.Store(stats)

	j.logger.Info("reconcile_rank_index job completed",
		"duration", stats.Duration.String(),
		"users_checked", stats.UsersChecked,
		"repaired", stats.Repaired,
		"missing", stats.Missing,
		"failures", stats.Failures,
	)

	if stats.Failures > 0 {
		return fmt.Errorf("reconcile completed with %d failures", stats.Failures)
	}

	return nil
}

// reconcilePage compares one page of ledger rows against the index.
func (j *ReconcileRankIndexJob) reconcilePage(ctx context.Context, users []*user.User, stats *ReconcileStats) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Concurrency)

	for _, u := range users {
		u := u
		g.Go(func() error {
			atomic.AddInt64(&stats.UsersChecked, 1)

			score, err := j.rankIndex.ScoreOf(ctx, u.Username.String())
			switch {
			case errors.Is(err, leaderboard.ErrNotRanked):
				atomic.AddInt64(&stats.Missing, 1)
			case err != nil:
				atomic.AddInt64(&stats.Failures, 1)
				j.logger.Warn("failed to read index score",
					"username", u.Username.String(),
					"error", err,
				)
				return nil
			case score == int64(u.XP):
				return nil
			}

			if err := j.rankIndex.Upsert(ctx, u.Username.String(), int64(u.XP)); err != nil {
				atomic.AddInt64(&stats.Failures, 1)
				j.logger.Warn("failed to repair index entry",
					"username", u.Username.String(),
					"error", err,
				)
				return nil
			}

			atomic.AddInt64(&stats.Repaired, 1)
			j.logger.Debug("repaired index entry",
				"username", u.Username.String(),
				"ledger_xp", int64(u.XP),
			)
			return nil
		})
	}

	return g.Wait()
}

// LastStats returns statistics from the last completed run.
func (j *ReconcileRankIndexJob) LastStats() *ReconcileStats {
	stats := j.lastStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*ReconcileStats)
}
