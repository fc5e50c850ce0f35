// Package badge contains the badge catalog and the rule set that decides
// when a badge is granted. Badges are immutable once created and membership
// has set semantics: granting a badge that is already held is a no-op.
package badge

import "errors"

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrBadgeNotFound is returned when a badge code is unknown.
	ErrBadgeNotFound = errors.New("badge: not found")

	// ErrInvalidTier is returned when a badge carries an unknown tier.
	ErrInvalidTier = errors.New("badge: invalid tier")

	// ErrEmptyCode is returned when a badge has no code.
	ErrEmptyCode = errors.New("badge: code cannot be empty")
)

// ══════════════════════════════════════════════════════════════════════════════
// TIER
// ══════════════════════════════════════════════════════════════════════════════

// Tier is the rarity tier of a badge.
type Tier string

const (
	TierBronze  Tier = "BRONZE"
	TierSilver  Tier = "SILVER"
	TierGold    Tier = "GOLD"
	TierDiamond Tier = "DIAMOND"
)

// IsValid checks that the tier is one of the known values.
func (t Tier) IsValid() bool {
	switch t {
	case TierBronze, TierSilver, TierGold, TierDiamond:
		return true
	}
	return false
}

// GemBonus returns the gem reward granted together with a badge of this tier.
func (t Tier) GemBonus() int {
	switch t {
	case TierBronze:
		return 10
	case TierSilver:
		return 25
	case TierGold:
		return 50
	case TierDiamond:
		return 100
	}
	return 0
}

// ══════════════════════════════════════════════════════════════════════════════
// BADGE
// ══════════════════════════════════════════════════════════════════════════════

// Badge is a named achievement marker. Created lazily on first grant of a
// given code if absent; never modified afterwards.
type Badge struct {
	// Code is the unique string identifier, e.g. "ECO_WARRIOR".
	Code string

	// Name is the display name of the badge.
	Name string

	// Description explains how the badge is earned.
	Description string

	// Tier is the rarity tier.
	Tier Tier
}

// Validate checks badge invariants.
func (b Badge) Validate() error {
	if b.Code == "" {
		return ErrEmptyCode
	}
	if !b.Tier.IsValid() {
		return ErrInvalidTier
	}
	return nil
}
