package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/lesson"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/shared"
	"github.com/ecolearn-hub/ecolearn-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT QUIZ COMMAND
// Grades a quiz attempt and awards XP for correct answers. Answers are
// compared case-insensitively. Quiz attempts are repeatable: each submission
// is graded and rewarded independently.
// ══════════════════════════════════════════════════════════════════════════════

// XPPerCorrectAnswer is the reward for each correctly answered question.
const XPPerCorrectAnswer = 10

// SubmitQuizCommand contains a quiz attempt.
type SubmitQuizCommand struct {
	// Username identifies the learner.
	Username string

	// QuizID identifies the quiz.
	QuizID int64

	// Answers maps question id to the selected option.
	Answers map[int64]string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c SubmitQuizCommand) Validate() error {
	if c.Username == "" {
		return errors.New("submit_quiz: username is required")
	}
	if c.QuizID <= 0 {
		return errors.New("submit_quiz: quiz_id is required")
	}
	return nil
}

// SubmitQuizResult contains the grading outcome.
type SubmitQuizResult struct {
	Username string
	QuizID   int64

	Correct int
	Total   int

	// XPAwarded is Correct * XPPerCorrectAnswer.
	XPAwarded int64

	// Award describes the XP award pipeline outcome.
	Award *AwardXPResult
}

// SubmitQuizHandler handles the SubmitQuizCommand.
type SubmitQuizHandler struct {
	lessonRepo     lesson.Repository
	awardHandler   *AwardXPHandler
	eventPublisher shared.EventPublisher
	log            *logger.Logger
}

// NewSubmitQuizHandler creates a new SubmitQuizHandler.
func NewSubmitQuizHandler(
	lessonRepo lesson.Repository,
	awardHandler *AwardXPHandler,
	eventPublisher shared.EventPublisher,
	log *logger.Logger,
) *SubmitQuizHandler {
	if log == nil {
		log = logger.Default()
	}
	return &SubmitQuizHandler{
		lessonRepo:     lessonRepo,
		awardHandler:   awardHandler,
		eventPublisher: eventPublisher,
		log:            log.With(logger.Component("submit_quiz")),
	}
}

// Handle grades the attempt and awards the earned XP.
func (h *SubmitQuizHandler) Handle(ctx context.Context, cmd SubmitQuizCommand) (*SubmitQuizResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	quiz, err := h.lessonRepo.GetQuiz(ctx, cmd.QuizID)
	if err != nil {
		return nil, fmt.Errorf("submit_quiz: %w", err)
	}

	correct, total := quiz.Grade(cmd.Answers)
	earned := int64(correct) * XPPerCorrectAnswer

	result := &SubmitQuizResult{
		Username:  cmd.Username,
		QuizID:    cmd.QuizID,
		Correct:   correct,
		Total:     total,
		XPAwarded: earned,
	}

	award, err := h.awardHandler.Handle(ctx, AwardXPCommand{
		Username:      cmd.Username,
		Amount:        earned,
		Source:        SourceQuiz,
		CorrelationID: cmd.CorrelationID,
	})
	if err != nil {
		return nil, fmt.Errorf("submit_quiz: award failed: %w", err)
	}
	result.Award = award

	event := shared.NewQuizSubmittedEvent(cmd.Username, cmd.QuizID, correct, total, earned)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return result, nil
}
