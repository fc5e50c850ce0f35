package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateLevel(t *testing.T) {
	tests := []struct {
		xp       XP
		expected Level
	}{
		{0, 1},
		{50, 1},
		{99, 1},
		{100, 2},
		{250, 2},
		{399, 2},
		{400, 3},
		{899, 3},
		{900, 4},
		{10000, 11},
		{-5, 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, CalculateLevel(tt.xp), "xp=%d", tt.xp)
	}
}

func TestLevelThreshold(t *testing.T) {
	assert.Equal(t, XP(0), LevelThreshold(1))
	assert.Equal(t, XP(100), LevelThreshold(2))
	assert.Equal(t, XP(400), LevelThreshold(3))
	assert.Equal(t, XP(900), LevelThreshold(4))
	assert.Equal(t, XP(0), LevelThreshold(0))
}

func TestLevelThresholdMatchesCalculateLevel(t *testing.T) {
	// Уровень L начинается ровно на своём пороге.
	for l := Level(1); l <= 20; l++ {
		threshold := LevelThreshold(l)
		assert.Equal(t, l, CalculateLevel(threshold), "level=%d", l)
		if threshold > 0 {
			assert.Equal(t, l-1, CalculateLevel(threshold-1), "level=%d", l)
		}
	}
}

func TestUsernameValidation(t *testing.T) {
	assert.True(t, Username("eco_fan").IsValid())
	assert.True(t, Username("ab").IsValid())
	assert.False(t, Username("a").IsValid())
	assert.False(t, Username("").IsValid())
	assert.False(t, Username("has space").IsValid())
	assert.False(t, Username("tab\tchar").IsValid())

	_, err := NewUsername("ok_name")
	assert.NoError(t, err)

	_, err = NewUsername("x")
	assert.ErrorIs(t, err, ErrInvalidUsername)
}

func TestNewUser(t *testing.T) {
	u, err := NewUser(NewUserParams{
		ID:           "id-1",
		Username:     "greta",
		PasswordHash: "$2a$10$hash",
	})
	require.NoError(t, err)

	assert.Equal(t, XP(0), u.XP)
	assert.Equal(t, Level(1), u.Level)
	assert.Equal(t, 0, u.Streak)
	assert.Equal(t, 0, u.Gems)
	assert.Equal(t, RoleUser, u.Role)
	// DisplayName по умолчанию равен username.
	assert.Equal(t, "greta", u.DisplayName)

	_, err = NewUser(NewUserParams{ID: "id-2", Username: "a"})
	assert.ErrorIs(t, err, ErrInvalidUsername)
}

func TestApplyAward(t *testing.T) {
	u, err := NewUser(NewUserParams{ID: "id-1", Username: "greta"})
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	applied, err := u.ApplyAward(150, now)
	require.NoError(t, err)

	assert.Equal(t, XP(0), applied.OldXP)
	assert.Equal(t, XP(150), applied.NewXP)
	assert.Equal(t, Level(1), applied.OldLevel)
	assert.Equal(t, Level(2), applied.NewLevel)
	assert.True(t, applied.LeveledUp())
	assert.Equal(t, 1, u.Streak)
}

func TestApplyAwardZero(t *testing.T) {
	u, err := NewUser(NewUserParams{ID: "id-1", Username: "greta"})
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	applied, err := u.ApplyAward(0, now)
	require.NoError(t, err)

	assert.Equal(t, XP(0), u.XP)
	assert.False(t, applied.LeveledUp())
	// Нулевое начисление всё равно считается активностью дня.
	assert.Equal(t, 1, u.Streak)
}

func TestApplyAwardNegative(t *testing.T) {
	u, err := NewUser(NewUserParams{ID: "id-1", Username: "greta"})
	require.NoError(t, err)

	_, err = u.ApplyAward(-10, time.Now())
	assert.ErrorIs(t, err, ErrNegativeAward)
	assert.Equal(t, XP(0), u.XP)
}

func TestStreakSameDay(t *testing.T) {
	u, err := NewUser(NewUserParams{ID: "id-1", Username: "greta"})
	require.NoError(t, err)

	morning := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC)

	_, err = u.ApplyAward(10, morning)
	require.NoError(t, err)
	_, err = u.ApplyAward(10, evening)
	require.NoError(t, err)

	assert.Equal(t, 1, u.Streak)
}

func TestStreakConsecutiveDays(t *testing.T) {
	u, err := NewUser(NewUserParams{ID: "id-1", Username: "greta"})
	require.NoError(t, err)

	day1 := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 11, 23, 30, 0, 0, time.UTC)
	day3 := time.Date(2026, 3, 12, 0, 10, 0, 0, time.UTC)

	_, err = u.ApplyAward(10, day1)
	require.NoError(t, err)
	_, err = u.ApplyAward(10, day2)
	require.NoError(t, err)
	_, err = u.ApplyAward(10, day3)
	require.NoError(t, err)

	assert.Equal(t, 3, u.Streak)
}

func TestStreakBrokenByGap(t *testing.T) {
	u, err := NewUser(NewUserParams{ID: "id-1", Username: "greta"})
	require.NoError(t, err)

	day1 := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	day4 := time.Date(2026, 3, 13, 9, 0, 0, 0, time.UTC)

	_, err = u.ApplyAward(10, day1)
	require.NoError(t, err)
	_, err = u.ApplyAward(10, day4)
	require.NoError(t, err)

	// После пропуска серия начинается заново, а не обнуляется.
	assert.Equal(t, 1, u.Streak)
}

func TestAddGems(t *testing.T) {
	u, err := NewUser(NewUserParams{ID: "id-1", Username: "greta"})
	require.NoError(t, err)

	u.AddGems(25)
	assert.Equal(t, 25, u.Gems)

	u.AddGems(0)
	u.AddGems(-10)
	assert.Equal(t, 25, u.Gems)
}

func TestSpendGems(t *testing.T) {
	u, err := NewUser(NewUserParams{ID: "id-1", Username: "greta"})
	require.NoError(t, err)
	u.AddGems(25)

	u.SpendGems(10)
	assert.Equal(t, 15, u.Gems)

	u.SpendGems(0)
	u.SpendGems(-5)
	assert.Equal(t, 15, u.Gems)

	// Баланс не уходит в минус.
	u.SpendGems(100)
	assert.Equal(t, 0, u.Gems)
}

func TestXPToNextLevel(t *testing.T) {
	u, err := NewUser(NewUserParams{ID: "id-1", Username: "greta"})
	require.NoError(t, err)

	// Уровень 1, следующий порог 100.
	assert.Equal(t, XP(100), u.XPToNextLevel())

	_, err = u.ApplyAward(150, time.Now().UTC())
	require.NoError(t, err)

	// 150 XP, уровень 2, до уровня 3 не хватает 250.
	assert.Equal(t, XP(250), u.XPToNextLevel())
}

func TestClone(t *testing.T) {
	u, err := NewUser(NewUserParams{ID: "id-1", Username: "greta"})
	require.NoError(t, err)

	clone := u.Clone()
	clone.XP = 500

	assert.Equal(t, XP(0), u.XP)
	assert.Equal(t, XP(500), clone.XP)
}
