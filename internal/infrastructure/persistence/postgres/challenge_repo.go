package postgres

import (
	"context"
	"fmt"

	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/challenge"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ChallengeRepository implements challenge.Repository for PostgreSQL.
type ChallengeRepository struct {
	conn *Connection
}

// NewChallengeRepository creates a new ChallengeRepository.
func NewChallengeRepository(conn *Connection) *ChallengeRepository {
	return &ChallengeRepository{conn: conn}
}

// GetChallenge returns a challenge by id.
func (r *ChallengeRepository) GetChallenge(ctx context.Context, id int64) (*challenge.Challenge, error) {
	query := `
		SELECT id, title, description, difficulty, xp_reward
		FROM challenges
		WHERE id = $1
	`

	var c challenge.Challenge
	var difficulty string
	err := r.conn.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.Title,
		&c.Description,
		&difficulty,
		&c.XPReward,
	)
	if IsNoRows(err) {
		return nil, challenge.ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	c.Difficulty = challenge.Difficulty(difficulty)
	return &c, nil
}

// ListChallenges returns all challenges.
func (r *ChallengeRepository) ListChallenges(ctx context.Context) ([]challenge.Challenge, error) {
	query := `
		SELECT id, title, description, difficulty, xp_reward
		FROM challenges
		ORDER BY id ASC
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer rows.Close()

	var challenges []challenge.Challenge
	for rows.Next() {
		var c challenge.Challenge
		var difficulty string

		err := rows.Scan(&c.ID, &c.Title, &c.Description, &difficulty, &c.XPReward)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}

		c.Difficulty = challenge.Difficulty(difficulty)
		challenges = append(challenges, c)
	}

	return challenges, rows.Err()
}

// CreateSubmission inserts a submission. The primary key on
// (username, challenge_id) enforces the one-submission rule: a conflicting
// insert affects zero rows and is reported as created=false.
func (r *ChallengeRepository) CreateSubmission(ctx context.Context, s challenge.Submission) (bool, error) {
	query := `
		INSERT INTO challenge_submissions (username, challenge_id, image_path, submitted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username, challenge_id) DO NOTHING
	`

	result, err := r.conn.Exec(ctx, query,
		s.Username,
		s.ChallengeID,
		s.ImagePath,
		s.SubmittedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create submission: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// DeleteSubmission removes a submission.
func (r *ChallengeRepository) DeleteSubmission(ctx context.Context, username string, challengeID int64) error {
	_, err := r.conn.Exec(ctx,
		"DELETE FROM challenge_submissions WHERE username = $1 AND challenge_id = $2",
		username, challengeID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete submission: %w", err)
	}
	return nil
}
