package user

import (
	"context"
	"time"
)

// Repository определяет контракт хранилища записей опыта (XP Ledger).
// Реализация - internal/infrastructure/persistence/postgres.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// CRUD
	// ─────────────────────────────────────────────────────────────────────────

	// Create создаёт нового пользователя.
	// Возвращает ErrUserAlreadyExists при конфликте имени.
	Create(ctx context.Context, u *User) error

	// GetByUsername возвращает пользователя по имени.
	// Возвращает ErrUserNotFound, если запись отсутствует.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// ExistsByUsername проверяет существование пользователя.
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Gamification state
	// ─────────────────────────────────────────────────────────────────────────

	// SaveProgress сохраняет xp/level/streak/gems с оптимистичной проверкой:
	// запись обновляется только если текущий xp в хранилище равен expectedXP.
	// Возвращает ErrConcurrentUpdate при несовпадении и ErrUserNotFound,
	// если пользователь исчез.
	SaveProgress(ctx context.Context, u *User, expectedXP XP) error

	// ResetStaleStreaks обнуляет серии пользователей, которые не были
	// активны строго раньше указанной даты. Возвращает число затронутых
	// записей.
	ResetStaleStreaks(ctx context.Context, activeBefore time.Time) (int64, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Listing (для сверки rank index)
	// ─────────────────────────────────────────────────────────────────────────

	// List возвращает страницу пользователей, отсортированных по имени.
	List(ctx context.Context, offset, limit int) ([]*User, error)

	// Count возвращает общее число пользователей.
	Count(ctx context.Context) (int, error)
}
