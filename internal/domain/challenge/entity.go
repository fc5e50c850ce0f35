// Package challenge contains environmental challenges and per-user
// submissions. A challenge is completed at most once per user; the accepted
// submission awards the challenge's XP through the gamification engine.
package challenge

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrChallengeNotFound is returned when a challenge id is unknown.
	ErrChallengeNotFound = errors.New("challenge: not found")

	// ErrAlreadySubmitted is returned when the user already submitted
	// this challenge.
	ErrAlreadySubmitted = errors.New("challenge: already submitted")
)

// Difficulty of a challenge.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// Challenge is a real-world environmental task with an XP reward.
type Challenge struct {
	ID          int64
	Title       string
	Description string
	Difficulty  Difficulty
	XPReward    int64
}

// Submission is a user's proof of completing a challenge. The stored path
// points at externally managed file storage; the core only keeps the string.
type Submission struct {
	Username    string
	ChallengeID int64
	ImagePath   string
	SubmittedAt time.Time
}

// Repository defines the persistence contract for challenges.
type Repository interface {
	// GetChallenge returns a challenge by id.
	// Returns ErrChallengeNotFound if absent.
	GetChallenge(ctx context.Context, id int64) (*Challenge, error)

	// ListChallenges returns all challenges.
	ListChallenges(ctx context.Context) ([]Challenge, error)

	// CreateSubmission inserts a submission unless one already exists for
	// the (username, challenge) pair. Returns created=false on conflict.
	CreateSubmission(ctx context.Context, s Submission) (created bool, err error)

	// DeleteSubmission removes a submission. Used only to compensate a
	// failed XP award.
	DeleteSubmission(ctx context.Context, username string, challengeID int64) error
}
