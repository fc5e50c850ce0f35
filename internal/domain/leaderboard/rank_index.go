// Package leaderboard содержит доменную модель рейтинга EcoLearn.
package leaderboard

import (
	"context"
	"errors"
)

// ErrNotRanked возвращается, когда пользователь отсутствует в индексе рангов.
var ErrNotRanked = errors.New("leaderboard: user not ranked")

// ══════════════════════════════════════════════════════════════════════════════
// ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Entry - одна строка лидерборда: пользователь, его XP и позиция (с 1).
type Entry struct {
	Username string
	XP       int64
	Rank     int64
}

// ══════════════════════════════════════════════════════════════════════════════
// RANK INDEX PORT
// ══════════════════════════════════════════════════════════════════════════════

// RankIndex определяет контракт для индекса рангов.
// Реализация находится в infrastructure слое (Redis sorted set).
//
// Индекс - это производная проекция XP-леджера: источник истины всегда
// PostgreSQL. При расхождении индекс пересобирается reconciler-джобой.
//
// Tie-break: при равном XP порядок детерминированный, лексикографический
// по имени пользователя (семантика sorted set).
type RankIndex interface {
	// Upsert записывает или обновляет счёт пользователя в индексе.
	Upsert(ctx context.Context, username string, xp int64) error

	// TopN возвращает первые n записей по убыванию XP.
	// Rank заполняется последовательно, начиная с 1.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// RankOf возвращает позицию пользователя (с 1).
	// Возвращает ErrNotRanked, если пользователь не индексирован.
	RankOf(ctx context.Context, username string) (int64, error)

	// ScoreOf возвращает XP пользователя по версии индекса.
	// Возвращает ErrNotRanked, если пользователь не индексирован.
	// Используется reconciler-джобой для поиска расхождений.
	ScoreOf(ctx context.Context, username string) (int64, error)

	// Remove удаляет пользователя из индекса.
	Remove(ctx context.Context, username string) error
}
