package badge

import "context"

// Repository defines the persistence contract for the badge catalog and
// user badge membership. Implemented by the postgres package.
type Repository interface {
	// Ensure creates the badge if no badge with the same code exists.
	// Existing badges are left untouched (badges are immutable).
	Ensure(ctx context.Context, b Badge) error

	// Grant adds the badge to the user's set. Returns false when the user
	// already held the badge (set semantics, never an error).
	Grant(ctx context.Context, username, code string) (granted bool, err error)

	// CodesForUser returns the set of badge codes held by the user.
	CodesForUser(ctx context.Context, username string) (map[string]bool, error)

	// ListForUser returns the full badges held by the user.
	ListForUser(ctx context.Context, username string) ([]Badge, error)
}
