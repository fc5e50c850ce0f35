// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/badge"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/leaderboard"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/shared"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/user"
	"github.com/ecolearn-hub/ecolearn-backend/pkg/logger"
	"github.com/ecolearn-hub/ecolearn-backend/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD XP COMMAND
// The single entry point for granting XP. Updates the ledger atomically,
// re-derives level, evaluates badge rules and propagates the new score to the
// rank index. The ledger write is the transaction boundary; the rank index is
// best-effort and converges via the reconciler if propagation fails.
// ══════════════════════════════════════════════════════════════════════════════

// AwardSource identifies what triggered an award. Informational only.
type AwardSource string

const (
	SourceLesson    AwardSource = "lesson"
	SourceQuiz      AwardSource = "quiz"
	SourceChallenge AwardSource = "challenge"
	SourceManual    AwardSource = "manual"
)

// AwardXPCommand contains the data to award XP to a user.
type AwardXPCommand struct {
	// Username identifies the user receiving the award.
	Username string

	// Amount is the XP to add. Zero is valid and still runs the full
	// pipeline (badge evaluation, rank upsert). Negative is rejected.
	Amount int64

	// Source describes what triggered the award.
	Source AwardSource

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c AwardXPCommand) Validate() error {
	if c.Username == "" {
		return errors.New("award_xp: username is required")
	}
	if c.Amount < 0 {
		return fmt.Errorf("award_xp: %w", user.ErrNegativeAward)
	}
	return nil
}

// AwardXPResult contains the outcome of an award.
type AwardXPResult struct {
	Username string

	OldXP int64
	NewXP int64

	OldLevel int
	NewLevel int

	// LeveledUp is true when the award crossed at least one level boundary.
	LeveledUp bool

	// BadgesGranted lists badges newly earned by this award, in rule order.
	BadgesGranted []badge.Badge

	// GemsEarned is the total gem bonus from newly granted badges.
	GemsEarned int

	// Streak is the user's daily streak after the award.
	Streak int

	// RankSynced is false when rank index propagation failed after retries.
	// The award itself still succeeded; the reconciler will converge.
	RankSynced bool

	// Events contains domain events generated by the award.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// AwardXPHandler handles the AwardXPCommand.
type AwardXPHandler struct {
	userRepo       user.Repository
	badgeRepo      badge.Repository
	rankIndex      leaderboard.RankIndex
	eventPublisher shared.EventPublisher
	badges         *badge.Registry
	log            *logger.Logger

	// awardRetrier retries the read-modify-write cycle on optimistic
	// conflicts with a concurrent award for the same user.
	awardRetrier *retry.Retrier

	// rankRetrier retries rank index upserts on transient failures.
	rankRetrier *retry.Retrier
}

// NewAwardXPHandler creates a new AwardXPHandler.
func NewAwardXPHandler(
	userRepo user.Repository,
	badgeRepo badge.Repository,
	rankIndex leaderboard.RankIndex,
	eventPublisher shared.EventPublisher,
	badges *badge.Registry,
	log *logger.Logger,
) *AwardXPHandler {
	if badges == nil {
		badges = badge.DefaultRegistry()
	}
	if log == nil {
		log = logger.Default()
	}

	return &AwardXPHandler{
		userRepo:       userRepo,
		badgeRepo:      badgeRepo,
		rankIndex:      rankIndex,
		eventPublisher: eventPublisher,
		badges:         badges,
		log:            log.With(logger.Component("award_xp")),
		awardRetrier:   retry.DatabaseRetrier(),
		rankRetrier:    retry.RankIndexRetrier(),
	}
}

// Handle executes the award. The sequence is:
//
//  1. Load user, apply award in memory, persist with an optimistic XP check.
//     A concurrent award makes the check fail and the cycle is retried from
//     a fresh read, so no award is ever lost or double-counted.
//  2. Evaluate badge rules against the new state and grant what is missing.
//     Grants are idempotent at the storage level.
//  3. Upsert the new total into the rank index with bounded retries.
//     Failure does not fail the award.
func (h *AwardXPHandler) Handle(ctx context.Context, cmd AwardXPCommand) (*AwardXPResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	username, err := user.NewUsername(cmd.Username)
	if err != nil {
		return nil, fmt.Errorf("award_xp: %w", err)
	}

	var (
		u       *user.User
		applied user.AwardApplied
	)

	err = h.awardRetrier.Do(ctx, func(ctx context.Context) error {
		var opErr error
		u, opErr = h.userRepo.GetByUsername(ctx, username.String())
		if opErr != nil {
			if errors.Is(opErr, user.ErrUserNotFound) {
				return retry.Permanent(opErr)
			}
			return retry.Retryable(opErr)
		}

		expected := u.XP
		applied, opErr = u.ApplyAward(user.XP(cmd.Amount), time.Now().UTC())
		if opErr != nil {
			return retry.Permanent(opErr)
		}

		if opErr = h.userRepo.SaveProgress(ctx, u, expected); opErr != nil {
			if errors.Is(opErr, user.ErrConcurrentUpdate) {
				// Someone else won the race; re-read and re-apply.
				return retry.Retryable(opErr)
			}
			return retry.Permanent(opErr)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("award_xp: failed to persist award: %w", err)
	}

	result := &AwardXPResult{
		Username:  username.String(),
		OldXP:     int64(applied.OldXP),
		NewXP:     int64(applied.NewXP),
		OldLevel:  int(applied.OldLevel),
		NewLevel:  int(applied.NewLevel),
		LeveledUp: applied.LeveledUp(),
		Streak:    u.Streak,
		Events:    make([]shared.Event, 0, 4),
	}

	xpEvent := shared.NewXPAwardedEvent(username.String(), cmd.Amount, result.NewXP, string(cmd.Source))
	if cmd.CorrelationID != "" {
		xpEvent.BaseEvent = xpEvent.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	result.Events = append(result.Events, xpEvent)

	if applied.LeveledUp() {
		result.Events = append(result.Events,
			shared.NewLevelUpEvent(username.String(), result.OldLevel, result.NewLevel))
	}

	// Badge evaluation. A storage failure here is logged, not fatal: badge
	// rules are monotone in XP, so the next award re-evaluates them.
	if granted, gems, gerr := h.grantBadges(ctx, u, applied, result); gerr != nil {
		h.log.Error("badge grant failed",
			logger.Username(username.String()), logger.Err(gerr))
	} else {
		result.BadgesGranted = granted
		result.GemsEarned = gems
	}

	result.RankSynced = h.propagateRank(ctx, username.String(), result.NewXP, result)

	for _, event := range result.Events {
		_ = h.eventPublisher.Publish(event)
	}

	return result, nil
}

// grantBadges evaluates the rule registry against the post-award state and
// grants anything the user is newly entitled to. Gem bonuses are credited
// through the same optimistic cycle as the award itself, before each
// membership insert, and compensated when the insert does not land.
func (h *AwardXPHandler) grantBadges(
	ctx context.Context,
	u *user.User,
	applied user.AwardApplied,
	result *AwardXPResult,
) ([]badge.Badge, int, error) {
	held, err := h.badgeRepo.CodesForUser(ctx, u.Username.String())
	if err != nil {
		return nil, 0, fmt.Errorf("load held badges: %w", err)
	}

	ruleCtx := badge.RuleContext{
		Username: u.Username.String(),
		OldXP:    int64(applied.OldXP),
		NewXP:    int64(applied.NewXP),
		NewLevel: int(applied.NewLevel),
		Streak:   u.Streak,
	}

	candidates := h.badges.Evaluate(ruleCtx, held)
	if len(candidates) == 0 {
		return nil, 0, nil
	}

	granted := make([]badge.Badge, 0, len(candidates))
	var gems int

	for _, b := range candidates {
		if err := h.badgeRepo.Ensure(ctx, b); err != nil {
			return granted, gems, fmt.Errorf("ensure badge %s: %w", b.Code, err)
		}

		// Gems are credited before the membership insert. The insert is the
		// arbiter: when it does not land, the credit is taken back. With the
		// reverse order a failed credit would be unrecoverable, because the
		// next award already sees the badge as held.
		bonus := b.Tier.GemBonus()
		if bonus > 0 {
			if err := h.adjustGems(ctx, u.Username, bonus); err != nil {
				return granted, gems, fmt.Errorf("credit gem bonus for %s: %w", b.Code, err)
			}
		}

		fresh, err := h.badgeRepo.Grant(ctx, u.Username.String(), b.Code)
		if err != nil || !fresh {
			if bonus > 0 {
				if cerr := h.adjustGems(ctx, u.Username, -bonus); cerr != nil {
					h.log.Error("gem compensation failed",
						logger.Username(u.Username.String()),
						logger.BadgeCode(b.Code), logger.Err(cerr))
				}
			}
			if err != nil {
				return granted, gems, fmt.Errorf("grant badge %s: %w", b.Code, err)
			}
			// Lost a race with a concurrent award, badge already held.
			continue
		}

		granted = append(granted, b)
		gems += bonus
		result.Events = append(result.Events,
			shared.NewBadgeGrantedEvent(u.Username.String(), b.Code, string(b.Tier)))

		h.log.Info("badge granted",
			logger.Username(u.Username.String()), logger.BadgeCode(b.Code))
	}

	return granted, gems, nil
}

// adjustGems applies a gem delta through the optimistic write cycle.
// A negative delta compensates a credit whose badge grant did not land.
func (h *AwardXPHandler) adjustGems(ctx context.Context, username user.Username, delta int) error {
	return h.awardRetrier.Do(ctx, func(ctx context.Context) error {
		u, err := h.userRepo.GetByUsername(ctx, username.String())
		if err != nil {
			return retry.Permanent(err)
		}
		if delta < 0 {
			u.SpendGems(-delta)
		} else {
			u.AddGems(delta)
		}
		if err := h.userRepo.SaveProgress(ctx, u, u.XP); err != nil {
			if errors.Is(err, user.ErrConcurrentUpdate) {
				return retry.Retryable(err)
			}
			return retry.Permanent(err)
		}
		return nil
	})
}

// propagateRank pushes the committed total into the rank index. On final
// failure it emits RankSyncFailed so the event handler and the reconciler
// job can converge the index later.
func (h *AwardXPHandler) propagateRank(
	ctx context.Context,
	username string,
	xp int64,
	result *AwardXPResult,
) bool {
	err := h.rankRetrier.Do(ctx, func(ctx context.Context) error {
		return retry.Retryable(h.rankIndex.Upsert(ctx, username, xp))
	})
	if err == nil {
		return true
	}

	h.log.Warn("rank index propagation failed, reconciler will converge",
		logger.Username(username), logger.XPAmount(xp), logger.Err(err))
	result.Events = append(result.Events,
		shared.NewRankSyncFailedEvent(username, xp, err.Error()))
	return false
}
