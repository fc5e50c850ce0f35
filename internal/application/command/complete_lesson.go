package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/lesson"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/shared"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/user"
	"github.com/ecolearn-hub/ecolearn-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE LESSON COMMAND
// Records a lesson completion exactly once per (user, lesson) and awards the
// lesson's XP through the gamification engine. The completion insert is the
// idempotency gate: a duplicate request sees the existing record and neither
// re-awards XP nor fails.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteLessonCommand contains the data to complete a lesson.
type CompleteLessonCommand struct {
	// Username identifies the learner.
	Username string

	// LessonID identifies the lesson being completed.
	LessonID int64

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CompleteLessonCommand) Validate() error {
	if c.Username == "" {
		return errors.New("complete_lesson: username is required")
	}
	if c.LessonID <= 0 {
		return errors.New("complete_lesson: lesson_id is required")
	}
	return nil
}

// CompleteLessonResult contains the outcome of the completion.
type CompleteLessonResult struct {
	Username string
	LessonID int64

	// AlreadyCompleted is true when a prior completion existed. The request
	// still succeeds but no XP moves.
	AlreadyCompleted bool

	// XPAwarded is the lesson's reward, zero for a duplicate completion.
	XPAwarded int64

	// Award describes the XP award pipeline outcome, nil for duplicates.
	Award *AwardXPResult
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CompleteLessonHandler handles the CompleteLessonCommand.
type CompleteLessonHandler struct {
	lessonRepo     lesson.Repository
	userRepo       user.Repository
	awardHandler   *AwardXPHandler
	eventPublisher shared.EventPublisher
	log            *logger.Logger
}

// NewCompleteLessonHandler creates a new CompleteLessonHandler.
func NewCompleteLessonHandler(
	lessonRepo lesson.Repository,
	userRepo user.Repository,
	awardHandler *AwardXPHandler,
	eventPublisher shared.EventPublisher,
	log *logger.Logger,
) *CompleteLessonHandler {
	if log == nil {
		log = logger.Default()
	}
	return &CompleteLessonHandler{
		lessonRepo:     lessonRepo,
		userRepo:       userRepo,
		awardHandler:   awardHandler,
		eventPublisher: eventPublisher,
		log:            log.With(logger.Component("complete_lesson")),
	}
}

// Handle executes the completion. The completion record is inserted before
// the award so that two concurrent requests race on the insert: exactly one
// wins and awards XP, the other observes a duplicate. If the award fails
// after the insert, the record is removed so the user can retry.
func (h *CompleteLessonHandler) Handle(ctx context.Context, cmd CompleteLessonCommand) (*CompleteLessonResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	lsn, err := h.lessonRepo.GetLesson(ctx, cmd.LessonID)
	if err != nil {
		return nil, fmt.Errorf("complete_lesson: %w", err)
	}

	if _, err := h.userRepo.GetByUsername(ctx, cmd.Username); err != nil {
		return nil, fmt.Errorf("complete_lesson: %w", err)
	}

	completion := lesson.NewCompletion(cmd.Username, cmd.LessonID, time.Now().UTC())

	created, err := h.lessonRepo.CreateCompletion(ctx, completion)
	if err != nil {
		return nil, fmt.Errorf("complete_lesson: failed to record completion: %w", err)
	}

	result := &CompleteLessonResult{
		Username: cmd.Username,
		LessonID: cmd.LessonID,
	}

	if !created {
		result.AlreadyCompleted = true
		return result, nil
	}

	award, err := h.awardHandler.Handle(ctx, AwardXPCommand{
		Username:      cmd.Username,
		Amount:        lsn.XPReward,
		Source:        SourceLesson,
		CorrelationID: cmd.CorrelationID,
	})
	if err != nil {
		// Compensate: remove the completion so a retry can start clean.
		if derr := h.lessonRepo.DeleteCompletion(ctx, cmd.Username, cmd.LessonID); derr != nil {
			h.log.Error("failed to compensate lesson completion",
				logger.Username(cmd.Username), logger.LessonID(cmd.LessonID), logger.Err(derr))
		}
		return nil, fmt.Errorf("complete_lesson: award failed: %w", err)
	}

	result.XPAwarded = lsn.XPReward
	result.Award = award

	event := shared.NewLessonCompletedEvent(cmd.Username, cmd.LessonID, lsn.XPReward)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return result, nil
}
