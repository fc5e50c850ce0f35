package query

import (
	"context"
	"fmt"

	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/lesson"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST MODULES QUERY
// Возвращает каталог учебных модулей.
// ══════════════════════════════════════════════════════════════════════════════

// ModuleDTO - DTO учебного модуля.
type ModuleDTO struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ListModulesResult содержит все модули.
type ListModulesResult struct {
	Modules []ModuleDTO `json:"modules"`
}

// ListModulesHandler обрабатывает запрос каталога модулей.
type ListModulesHandler struct {
	lessonRepo lesson.Repository
}

// NewListModulesHandler создаёт новый ListModulesHandler.
func NewListModulesHandler(lessonRepo lesson.Repository) *ListModulesHandler {
	return &ListModulesHandler{lessonRepo: lessonRepo}
}

// Handle выполняет запрос.
func (h *ListModulesHandler) Handle(ctx context.Context) (*ListModulesResult, error) {
	modules, err := h.lessonRepo.ListModules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list_modules: %w", err)
	}

	dtos := make([]ModuleDTO, 0, len(modules))
	for _, m := range modules {
		dtos = append(dtos, ModuleDTO{
			ID:          m.ID,
			Title:       m.Title,
			Description: m.Description,
		})
	}

	return &ListModulesResult{Modules: dtos}, nil
}
