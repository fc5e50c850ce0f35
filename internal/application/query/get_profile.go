package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/badge"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/leaderboard"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROFILE QUERY
// Возвращает профиль пользователя: состояние геймификации из леджера,
// заработанные значки и текущую позицию в рейтинге.
// ══════════════════════════════════════════════════════════════════════════════

// GetProfileQuery содержит параметры запроса профиля.
type GetProfileQuery struct {
	// Username - имя пользователя.
	Username string
}

// Validate проверяет корректность параметров запроса.
func (q GetProfileQuery) Validate() error {
	if q.Username == "" {
		return errors.New("username is required")
	}
	return nil
}

// BadgeDTO - DTO для значка.
type BadgeDTO struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Tier        string `json:"tier"`
}

// GetProfileResult содержит профиль пользователя.
type GetProfileResult struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`

	XP            int64 `json:"xp"`
	Level         int   `json:"level"`
	XPToNextLevel int64 `json:"xp_to_next_level"`
	Streak        int   `json:"streak"`
	Gems          int   `json:"gems"`

	// Rank - позиция в рейтинге (0, если пользователь не индексирован).
	Rank int64 `json:"rank,omitempty"`

	Badges []BadgeDTO `json:"badges"`
}

// GetProfileHandler обрабатывает запрос профиля.
type GetProfileHandler struct {
	userRepo  user.Repository
	badgeRepo badge.Repository
	rankIndex leaderboard.RankIndex
}

// NewGetProfileHandler создаёт новый GetProfileHandler.
func NewGetProfileHandler(
	userRepo user.Repository,
	badgeRepo badge.Repository,
	rankIndex leaderboard.RankIndex,
) *GetProfileHandler {
	return &GetProfileHandler{
		userRepo:  userRepo,
		badgeRepo: badgeRepo,
		rankIndex: rankIndex,
	}
}

// Handle выполняет запрос.
func (h *GetProfileHandler) Handle(ctx context.Context, q GetProfileQuery) (*GetProfileResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_profile: %w", err)
	}

	u, err := h.userRepo.GetByUsername(ctx, q.Username)
	if err != nil {
		return nil, fmt.Errorf("get_profile: %w", err)
	}

	badges, err := h.badgeRepo.ListForUser(ctx, q.Username)
	if err != nil {
		return nil, fmt.Errorf("get_profile: failed to load badges: %w", err)
	}

	result := &GetProfileResult{
		Username:      u.Username.String(),
		DisplayName:   u.DisplayName,
		Avatar:        u.Avatar,
		XP:            int64(u.XP),
		Level:         int(u.Level),
		XPToNextLevel: int64(u.XPToNextLevel()),
		Streak:        u.Streak,
		Gems:          u.Gems,
		Badges:        make([]BadgeDTO, 0, len(badges)),
	}

	for _, b := range badges {
		result.Badges = append(result.Badges, BadgeDTO{
			Code:        b.Code,
			Name:        b.Name,
			Description: b.Description,
			Tier:        string(b.Tier),
		})
	}

	// Позиция в рейтинге необязательна: пользователь без начислений
	// может ещё отсутствовать в индексе.
	if rank, rerr := h.rankIndex.RankOf(ctx, q.Username); rerr == nil {
		result.Rank = rank
	} else if !errors.Is(rerr, leaderboard.ErrNotRanked) {
		return nil, fmt.Errorf("get_profile: failed to resolve rank: %w", rerr)
	}

	return result, nil
}
