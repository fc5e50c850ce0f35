// Package eventhandler содержит обработчики доменных событий.
// Обработчики - "реактивная" часть системы: они реагируют на изменения
// и запускают побочные эффекты вроде доведения индекса рангов до
// согласованного состояния.
package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/leaderboard"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/shared"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/user"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON RANK SYNC FAILED HANDLER
// Обрабатывает событие неудачной записи в индекс рангов после успешного
// начисления XP. Делает ещё одну попытку с актуальным значением из леджера.
// Если и она не удаётся, индекс доводит периодическая reconciler-джоба.
// ═══════════════════════════════════════════════════════════════════════════

// OnRankSyncFailedHandler повторяет неудавшуюся запись в индекс рангов.
type OnRankSyncFailedHandler struct {
	userRepo  user.Repository
	rankIndex leaderboard.RankIndex
	logger    *slog.Logger

	// timeout ограничивает одну попытку синхронизации.
	timeout time.Duration
}

// NewOnRankSyncFailedHandler создаёт новый обработчик.
func NewOnRankSyncFailedHandler(
	userRepo user.Repository,
	rankIndex leaderboard.RankIndex,
	logger *slog.Logger,
) *OnRankSyncFailedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnRankSyncFailedHandler{
		userRepo:  userRepo,
		rankIndex: rankIndex,
		logger:    logger,
		timeout:   5 * time.Second,
	}
}

// EventTypes возвращает типы событий, на которые подписан обработчик.
func (h *OnRankSyncFailedHandler) EventTypes() []shared.EventType {
	return []shared.EventType{shared.EventRankSyncFailed}
}

// Handle обрабатывает событие. Значение XP берётся из леджера, а не из
// события: пока событие ждало обработки, могли пройти новые начисления.
// Сопоставление идёт по типу события, а не по конкретному типу Go:
// событие, пришедшее через Redis, доставляется в обезличенной форме,
// и имя пользователя у него лежит в AggregateID и payload.
func (h *OnRankSyncFailedHandler) Handle(event shared.Event) error {
	if event.EventType() != shared.EventRankSyncFailed {
		return nil
	}

	username := usernameFromEvent(event)
	if username == "" {
		h.logger.Warn("rank resync: event without username, skipping")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	u, err := h.userRepo.GetByUsername(ctx, username)
	if err != nil {
		h.logger.Warn("rank resync: failed to load user",
			slog.String("username", username),
			slog.String("error", err.Error()))
		return err
	}

	if err := h.rankIndex.Upsert(ctx, u.Username.String(), int64(u.XP)); err != nil {
		h.logger.Warn("rank resync failed, leaving to reconciler",
			slog.String("username", username),
			slog.String("error", err.Error()))
		return err
	}

	h.logger.Info("rank index resynced",
		slog.String("username", username),
		slog.Int64("xp", int64(u.XP)))
	return nil
}

// usernameFromEvent достаёт имя пользователя из события любой формы:
// у типизированных и транспортных событий оно лежит в AggregateID,
// payload остаётся запасным источником.
func usernameFromEvent(event shared.Event) string {
	if id := event.AggregateID(); id != "" {
		return id
	}
	if v, ok := event.Payload()["username"].(string); ok {
		return v
	}
	return ""
}
