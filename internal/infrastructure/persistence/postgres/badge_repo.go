package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/badge"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// BadgeRepository implements badge.Repository for PostgreSQL.
type BadgeRepository struct {
	conn *Connection
}

// NewBadgeRepository creates a new BadgeRepository.
func NewBadgeRepository(conn *Connection) *BadgeRepository {
	return &BadgeRepository{conn: conn}
}

// Ensure creates the badge definition if it does not exist. Definitions are
// immutable once written, a conflicting insert is a no-op.
func (r *BadgeRepository) Ensure(ctx context.Context, b badge.Badge) error {
	if err := b.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO badges (code, name, description, tier)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (code) DO NOTHING
	`

	_, err := r.conn.Exec(ctx, query, b.Code, b.Name, b.Description, string(b.Tier))
	if err != nil {
		return fmt.Errorf("failed to ensure badge: %w", err)
	}

	return nil
}

// Grant adds the badge to the user's set. The primary key on
// (username, badge_code) makes grants idempotent: a repeated grant affects
// zero rows and is reported as granted=false.
func (r *BadgeRepository) Grant(ctx context.Context, username, code string) (bool, error) {
	query := `
		INSERT INTO user_badges (username, badge_code, granted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (username, badge_code) DO NOTHING
	`

	result, err := r.conn.Exec(ctx, query, username, code, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to grant badge: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// CodesForUser returns the set of badge codes held by the user.
func (r *BadgeRepository) CodesForUser(ctx context.Context, username string) (map[string]bool, error) {
	rows, err := r.conn.Query(ctx,
		"SELECT badge_code FROM user_badges WHERE username = $1",
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query user badges: %w", err)
	}
	defer rows.Close()

	held := make(map[string]bool)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan badge code: %w", err)
		}
		held[code] = true
	}

	return held, rows.Err()
}

// ListForUser returns the full badges held by the user, newest first.
func (r *BadgeRepository) ListForUser(ctx context.Context, username string) ([]badge.Badge, error) {
	query := `
		SELECT b.code, b.name, b.description, b.tier
		FROM user_badges ub
		JOIN badges b ON b.code = ub.badge_code
		WHERE ub.username = $1
		ORDER BY ub.granted_at DESC
	`

	rows, err := r.conn.Query(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list user badges: %w", err)
	}
	defer rows.Close()

	var badges []badge.Badge
	for rows.Next() {
		var b badge.Badge
		var tier string

		if err := rows.Scan(&b.Code, &b.Name, &b.Description, &tier); err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}

		b.Tier = badge.Tier(tier)
		badges = append(badges, b)
	}

	return badges, rows.Err()
}
