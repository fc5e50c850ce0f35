package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository implements user.Repository for PostgreSQL.
type UserRepository struct {
	conn *Connection
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create creates a new user.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (
			id, username, password_hash, display_name, xp, level, streak,
			gems, avatar, role, last_active_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	var lastActive *time.Time
	if !u.LastActiveDate.IsZero() {
		lastActive = &u.LastActiveDate
	}

	_, err := r.conn.Exec(ctx, query,
		u.ID,
		u.Username.String(),
		u.PasswordHash,
		u.DisplayName,
		int64(u.XP),
		int(u.Level),
		u.Streak,
		u.Gems,
		u.Avatar,
		string(u.Role),
		lastActive,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return user.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByUsername returns a user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	query := `
		SELECT id, username, password_hash, display_name, xp, level, streak,
			   gems, avatar, role, last_active_date, created_at, updated_at
		FROM users
		WHERE username = $1
	`

	row := r.conn.QueryRow(ctx, query, username)
	return r.scanUser(row)
}

// ExistsByUsername checks if a user exists.
func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)",
		username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Gamification state
// ─────────────────────────────────────────────────────────────────────────────

// SaveProgress persists the gamification state with an optimistic check on xp.
// The row is only updated when the stored xp still equals expectedXP, so two
// concurrent awards for the same user cannot overwrite each other: the loser
// sees zero affected rows and gets ErrConcurrentUpdate.
func (r *UserRepository) SaveProgress(ctx context.Context, u *user.User, expectedXP user.XP) error {
	query := `
		UPDATE users SET
			xp = $1,
			level = $2,
			streak = $3,
			gems = $4,
			last_active_date = $5,
			updated_at = $6
		WHERE username = $7 AND xp = $8
	`

	var lastActive *time.Time
	if !u.LastActiveDate.IsZero() {
		lastActive = &u.LastActiveDate
	}

	result, err := r.conn.Exec(ctx, query,
		int64(u.XP),
		int(u.Level),
		u.Streak,
		u.Gems,
		lastActive,
		time.Now().UTC(),
		u.Username.String(),
		int64(expectedXP),
	)
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Either the row is gone or another writer changed xp first.
		exists, eerr := r.ExistsByUsername(ctx, u.Username.String())
		if eerr != nil {
			return fmt.Errorf("failed to save progress: %w", eerr)
		}
		if !exists {
			return user.ErrUserNotFound
		}
		return user.ErrConcurrentUpdate
	}

	return nil
}

// ResetStaleStreaks zeroes the streak of every user whose last activity was
// strictly before the given date. Runs as a single statement, so it does not
// race the optimistic award cycle: an award that lands after the reset simply
// starts a new streak at 1.
func (r *UserRepository) ResetStaleStreaks(ctx context.Context, activeBefore time.Time) (int64, error) {
	query := `
		UPDATE users SET
			streak = 0,
			updated_at = $1
		WHERE streak > 0
		  AND (last_active_date IS NULL OR last_active_date < $2)
	`

	result, err := r.conn.Exec(ctx, query, time.Now().UTC(), activeBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to reset stale streaks: %w", err)
	}

	return result.RowsAffected(), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Listing
// ─────────────────────────────────────────────────────────────────────────────

// List returns a page of users sorted by username. Used by the rank index
// reconciler to walk the whole ledger in stable order.
func (r *UserRepository) List(ctx context.Context, offset, limit int) ([]*user.User, error) {
	query := `
		SELECT id, username, password_hash, display_name, xp, level, streak,
			   gems, avatar, role, last_active_date, created_at, updated_at
		FROM users
		ORDER BY username ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.conn.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	return r.scanUsers(rows)
}

// Count returns the total number of users.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER METHODS
// ══════════════════════════════════════════════════════════════════════════════

// scanUser scans a single user from a row.
func (r *UserRepository) scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	var username, role string
	var xp int64
	var level int
	var lastActive *time.Time

	err := row.Scan(
		&u.ID,
		&username,
		&u.PasswordHash,
		&u.DisplayName,
		&xp,
		&level,
		&u.Streak,
		&u.Gems,
		&u.Avatar,
		&role,
		&lastActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if IsNoRows(err) {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	u.Username = user.Username(username)
	u.XP = user.XP(xp)
	u.Level = user.Level(level)
	u.Role = user.Role(role)
	if lastActive != nil {
		u.LastActiveDate = *lastActive
	}

	return &u, nil
}

// scanUsers scans multiple users from rows.
func (r *UserRepository) scanUsers(rows pgx.Rows) ([]*user.User, error) {
	var users []*user.User

	for rows.Next() {
		var u user.User
		var username, role string
		var xp int64
		var level int
		var lastActive *time.Time

		err := rows.Scan(
			&u.ID,
			&username,
			&u.PasswordHash,
			&u.DisplayName,
			&xp,
			&level,
			&u.Streak,
			&u.Gems,
			&u.Avatar,
			&role,
			&lastActive,
			&u.CreatedAt,
			&u.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}

		u.Username = user.Username(username)
		u.XP = user.XP(xp)
		u.Level = user.Level(level)
		u.Role = user.Role(role)
		if lastActive != nil {
			u.LastActiveDate = *lastActive
		}

		users = append(users, &u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return users, nil
}
