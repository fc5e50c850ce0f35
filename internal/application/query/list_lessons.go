package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/lesson"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST LESSONS QUERY
// Возвращает уроки модуля с состоянием прохождения для пользователя:
// завершён, доступен или заблокирован. Блокировка выводится из порядка
// уроков и записей о завершении, в хранилище она не материализуется.
// ══════════════════════════════════════════════════════════════════════════════

// ListLessonsQuery содержит параметры запроса уроков модуля.
type ListLessonsQuery struct {
	// Username - пользователь, для которого выводится состояние.
	Username string

	// ModuleID - идентификатор учебного модуля.
	ModuleID int64
}

// Validate проверяет корректность параметров запроса.
func (q ListLessonsQuery) Validate() error {
	if q.Username == "" {
		return errors.New("username is required")
	}
	if q.ModuleID <= 0 {
		return errors.New("module_id is required")
	}
	return nil
}

// LessonStateDTO - DTO для урока с состоянием прохождения.
type LessonStateDTO struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	OrderIndex  int    `json:"order_index"`
	XPReward    int64  `json:"xp_reward"`

	// Completed - пользователь завершил урок.
	Completed bool `json:"completed"`

	// Locked - урок заблокирован, пока не завершён предыдущий по порядку.
	Locked bool `json:"locked"`
}

// ListLessonsResult содержит уроки модуля в порядке прохождения.
type ListLessonsResult struct {
	ModuleID int64            `json:"module_id"`
	Lessons  []LessonStateDTO `json:"lessons"`
}

// ListLessonsHandler обрабатывает запрос уроков модуля.
type ListLessonsHandler struct {
	lessonRepo lesson.Repository
}

// NewListLessonsHandler создаёт новый ListLessonsHandler.
func NewListLessonsHandler(lessonRepo lesson.Repository) *ListLessonsHandler {
	return &ListLessonsHandler{lessonRepo: lessonRepo}
}

// Handle выполняет запрос.
func (h *ListLessonsHandler) Handle(ctx context.Context, q ListLessonsQuery) (*ListLessonsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("list_lessons: %w", err)
	}

	exists, err := h.lessonRepo.ModuleExists(ctx, q.ModuleID)
	if err != nil {
		return nil, fmt.Errorf("list_lessons: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("list_lessons: %w", lesson.ErrModuleNotFound)
	}

	lessons, err := h.lessonRepo.ListByModule(ctx, q.ModuleID)
	if err != nil {
		return nil, fmt.Errorf("list_lessons: failed to list lessons: %w", err)
	}

	completed, err := h.lessonRepo.CompletedLessonIDs(ctx, q.Username, q.ModuleID)
	if err != nil {
		return nil, fmt.Errorf("list_lessons: failed to load completions: %w", err)
	}

	states := lesson.DeriveStates(lessons, completed)

	dtos := make([]LessonStateDTO, 0, len(states))
	for _, s := range states {
		dtos = append(dtos, LessonStateDTO{
			ID:          s.Lesson.ID,
			Title:       s.Lesson.Title,
			Description: s.Lesson.Description,
			OrderIndex:  s.Lesson.OrderIndex,
			XPReward:    s.Lesson.XPReward,
			Completed:   s.Completed,
			Locked:      s.Locked,
		})
	}

	return &ListLessonsResult{
		ModuleID: q.ModuleID,
		Lessons:  dtos,
	}, nil
}
