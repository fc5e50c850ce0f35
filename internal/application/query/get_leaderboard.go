// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/leaderboard"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Получает топ-N пользователей из индекса рангов и обогащает записи данными
// из леджера (уровень, отображаемое имя). Источник порядка - rank index,
// источник атрибутов - PostgreSQL.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery содержит параметры запроса лидерборда.
type GetLeaderboardQuery struct {
	// Limit - количество записей (по умолчанию 20, максимум 100).
	Limit int

	// Viewer - имя пользователя, запрашивающего лидерборд.
	// Если задано, результат включает его собственную позицию.
	Viewer string
}

// Validate проверяет корректность параметров запроса.
func (q *GetLeaderboardQuery) Validate() error {
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	return nil
}

// LeaderboardEntryDTO - DTO для записи лидерборда.
type LeaderboardEntryDTO struct {
	// Rank - позиция в рейтинге (начиная с 1).
	Rank int64 `json:"rank"`

	// Username - имя пользователя.
	Username string `json:"username"`

	// DisplayName - отображаемое имя.
	DisplayName string `json:"display_name"`

	// XP - очки опыта по версии индекса рангов.
	XP int64 `json:"xp"`

	// Level - уровень пользователя.
	Level int `json:"level"`

	// Avatar - идентификатор аватара.
	Avatar string `json:"avatar"`
}

// ViewerRankDTO - позиция запрашивающего пользователя.
type ViewerRankDTO struct {
	Rank     int64  `json:"rank"`
	Username string `json:"username"`
	XP       int64  `json:"xp"`
}

// GetLeaderboardResult содержит результат запроса лидерборда.
type GetLeaderboardResult struct {
	// Entries - записи лидерборда по убыванию XP.
	Entries []LeaderboardEntryDTO `json:"entries"`

	// Viewer - позиция запрашивающего (nil, если не запрошена
	// или пользователь ещё не индексирован).
	Viewer *ViewerRankDTO `json:"viewer,omitempty"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetLeaderboardHandler обрабатывает запрос лидерборда.
type GetLeaderboardHandler struct {
	rankIndex leaderboard.RankIndex
	userRepo  user.Repository
}

// NewGetLeaderboardHandler создаёт новый GetLeaderboardHandler.
func NewGetLeaderboardHandler(rankIndex leaderboard.RankIndex, userRepo user.Repository) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{
		rankIndex: rankIndex,
		userRepo:  userRepo,
	}
}

// Handle выполняет запрос.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	top, err := h.rankIndex.TopN(ctx, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: failed to read rank index: %w", err)
	}

	entries := make([]LeaderboardEntryDTO, 0, len(top))
	for _, e := range top {
		dto := LeaderboardEntryDTO{
			Rank:     e.Rank,
			Username: e.Username,
			XP:       e.XP,
		}

		// Обогащение из леджера. Отсутствие записи не фатально:
		// индекс мог опередить реконсиляцию после удаления.
		if u, uerr := h.userRepo.GetByUsername(ctx, e.Username); uerr == nil {
			dto.DisplayName = u.DisplayName
			dto.Level = int(u.Level)
			dto.Avatar = u.Avatar
		}

		entries = append(entries, dto)
	}

	result := &GetLeaderboardResult{
		Entries:     entries,
		GeneratedAt: time.Now().UTC(),
	}

	if q.Viewer != "" {
		viewer, err := h.viewerRank(ctx, q.Viewer)
		if err != nil {
			return nil, err
		}
		result.Viewer = viewer
	}

	return result, nil
}

// viewerRank возвращает позицию пользователя или nil, если он не индексирован.
func (h *GetLeaderboardHandler) viewerRank(ctx context.Context, username string) (*ViewerRankDTO, error) {
	rank, err := h.rankIndex.RankOf(ctx, username)
	if err != nil {
		if errors.Is(err, leaderboard.ErrNotRanked) {
			return nil, nil
		}
		return nil, fmt.Errorf("get_leaderboard: failed to resolve viewer rank: %w", err)
	}

	score, err := h.rankIndex.ScoreOf(ctx, username)
	if err != nil {
		if errors.Is(err, leaderboard.ErrNotRanked) {
			return nil, nil
		}
		return nil, fmt.Errorf("get_leaderboard: failed to resolve viewer score: %w", err)
	}

	return &ViewerRankDTO{
		Rank:     rank,
		Username: username,
		XP:       score,
	}, nil
}
