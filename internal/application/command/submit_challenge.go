package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/challenge"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/shared"
	"github.com/ecolearn-hub/ecolearn-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT CHALLENGE COMMAND
// Accepts one submission per (user, challenge) and awards the challenge's XP.
// The submission insert is the idempotency gate, same pattern as lesson
// completions.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitChallengeCommand contains a challenge submission.
type SubmitChallengeCommand struct {
	// Username identifies the participant.
	Username string

	// ChallengeID identifies the challenge.
	ChallengeID int64

	// ImagePath is the stored proof image location.
	ImagePath string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c SubmitChallengeCommand) Validate() error {
	if c.Username == "" {
		return errors.New("submit_challenge: username is required")
	}
	if c.ChallengeID <= 0 {
		return errors.New("submit_challenge: challenge_id is required")
	}
	return nil
}

// SubmitChallengeResult contains the submission outcome.
type SubmitChallengeResult struct {
	Username    string
	ChallengeID int64

	// XPAwarded is the challenge's reward.
	XPAwarded int64

	// Award describes the XP award pipeline outcome.
	Award *AwardXPResult
}

// SubmitChallengeHandler handles the SubmitChallengeCommand.
type SubmitChallengeHandler struct {
	challengeRepo  challenge.Repository
	awardHandler   *AwardXPHandler
	eventPublisher shared.EventPublisher
	log            *logger.Logger
}

// NewSubmitChallengeHandler creates a new SubmitChallengeHandler.
func NewSubmitChallengeHandler(
	challengeRepo challenge.Repository,
	awardHandler *AwardXPHandler,
	eventPublisher shared.EventPublisher,
	log *logger.Logger,
) *SubmitChallengeHandler {
	if log == nil {
		log = logger.Default()
	}
	return &SubmitChallengeHandler{
		challengeRepo:  challengeRepo,
		awardHandler:   awardHandler,
		eventPublisher: eventPublisher,
		log:            log.With(logger.Component("submit_challenge")),
	}
}

// Handle records the submission and awards the challenge XP. A repeated
// submission for the same challenge returns ErrAlreadySubmitted.
func (h *SubmitChallengeHandler) Handle(ctx context.Context, cmd SubmitChallengeCommand) (*SubmitChallengeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	ch, err := h.challengeRepo.GetChallenge(ctx, cmd.ChallengeID)
	if err != nil {
		return nil, fmt.Errorf("submit_challenge: %w", err)
	}

	created, err := h.challengeRepo.CreateSubmission(ctx, challenge.Submission{
		Username:    cmd.Username,
		ChallengeID: cmd.ChallengeID,
		ImagePath:   cmd.ImagePath,
		SubmittedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("submit_challenge: failed to record submission: %w", err)
	}
	if !created {
		return nil, challenge.ErrAlreadySubmitted
	}

	award, err := h.awardHandler.Handle(ctx, AwardXPCommand{
		Username:      cmd.Username,
		Amount:        ch.XPReward,
		Source:        SourceChallenge,
		CorrelationID: cmd.CorrelationID,
	})
	if err != nil {
		if derr := h.challengeRepo.DeleteSubmission(ctx, cmd.Username, cmd.ChallengeID); derr != nil {
			h.log.Error("failed to compensate challenge submission",
				logger.Username(cmd.Username), logger.Err(derr))
		}
		return nil, fmt.Errorf("submit_challenge: award failed: %w", err)
	}

	event := shared.NewChallengeSubmittedEvent(cmd.Username, cmd.ChallengeID, ch.XPReward)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return &SubmitChallengeResult{
		Username:    cmd.Username,
		ChallengeID: cmd.ChallengeID,
		XPAwarded:   ch.XPReward,
		Award:       award,
	}, nil
}
