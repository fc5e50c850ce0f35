// Package lesson contains the lesson catalog and the per-user progression
// model: completion records and the sequential lock/unlock derivation.
package lesson

import (
	"errors"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrLessonNotFound is returned when a lesson id is unknown.
	ErrLessonNotFound = errors.New("lesson: not found")

	// ErrModuleNotFound is returned when a learning module id is unknown.
	ErrModuleNotFound = errors.New("lesson: module not found")

	// ErrQuizNotFound is returned when a lesson has no quiz or the quiz id
	// is unknown.
	ErrQuizNotFound = errors.New("lesson: quiz not found")
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Module is a learning module grouping an ordered list of lessons.
type Module struct {
	ID          int64
	Title       string
	Description string
}

// Lesson is a single unit of learning content. Read-only input for the
// progression tracker: only OrderIndex and XPReward matter to the core.
type Lesson struct {
	ID          int64
	ModuleID    int64
	Title       string
	Description string
	Content     string
	OrderIndex  int
	XPReward    int64
	Published   bool
}

// Completion records that a user finished a lesson. At most one record
// exists per (username, lesson) pair.
type Completion struct {
	Username    string
	LessonID    int64
	Completed   bool
	CompletedAt time.Time
}

// NewCompletion creates a completion record for the given pair.
func NewCompletion(username string, lessonID int64, at time.Time) Completion {
	return Completion{
		Username:    username,
		LessonID:    lessonID,
		Completed:   true,
		CompletedAt: at.UTC(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// QUIZ
// ══════════════════════════════════════════════════════════════════════════════

// Quiz is an optional set of questions attached to a lesson.
type Quiz struct {
	ID        int64
	LessonID  int64
	Title     string
	Questions []QuizQuestion
}

// QuizQuestion is a single multiple-choice question.
type QuizQuestion struct {
	ID            int64
	QuizID        int64
	Question      string
	Options       []string
	CorrectOption string
}

// Grade scores the supplied answers against the quiz questions.
// Comparison is case-insensitive, matching the original grading behavior.
func (q Quiz) Grade(answers map[int64]string) (correct, total int) {
	total = len(q.Questions)
	for _, question := range q.Questions {
		answer, ok := answers[question.ID]
		if ok && strings.EqualFold(answer, question.CorrectOption) {
			correct++
		}
	}
	return correct, total
}
