package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/shared"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/user"
)

func newTestUser(t *testing.T, username string) *user.User {
	t.Helper()
	u, err := user.NewUser(user.NewUserParams{
		ID:           "id-" + username,
		Username:     username,
		PasswordHash: "$2a$10$hash",
	})
	require.NoError(t, err)
	return u
}

func newAwardHandler(users *fakeUserRepo, badges *fakeBadgeRepo, rank *fakeRankIndex, bus *fakeEventBus) *AwardXPHandler {
	return NewAwardXPHandler(users, badges, rank, bus, nil, nil)
}

func TestAwardXPUpdatesLedgerAndRankIndex(t *testing.T) {
	users := newFakeUserRepo()
	badges := newFakeBadgeRepo()
	rank := newFakeRankIndex()
	bus := &fakeEventBus{}

	users.put(newTestUser(t, "greta"))

	handler := newAwardHandler(users, badges, rank, bus)
	result, err := handler.Handle(context.Background(), AwardXPCommand{
		Username: "greta",
		Amount:   30,
		Source:   SourceLesson,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(0), result.OldXP)
	assert.Equal(t, int64(30), result.NewXP)
	assert.False(t, result.LeveledUp)
	assert.True(t, result.RankSynced)
	assert.Equal(t, 1, result.Streak)

	stored := users.get("greta")
	assert.Equal(t, user.XP(30), stored.XP)

	score, err := rank.ScoreOf(context.Background(), "greta")
	require.NoError(t, err)
	assert.Equal(t, int64(30), score)

	assert.True(t, bus.hasEventType(shared.EventXPAwarded))
}

func TestAwardXPLevelUp(t *testing.T) {
	users := newFakeUserRepo()
	users.put(newTestUser(t, "greta"))
	bus := &fakeEventBus{}

	handler := newAwardHandler(users, newFakeBadgeRepo(), newFakeRankIndex(), bus)
	result, err := handler.Handle(context.Background(), AwardXPCommand{
		Username: "greta",
		Amount:   150,
		Source:   SourceQuiz,
	})
	require.NoError(t, err)

	assert.True(t, result.LeveledUp)
	assert.Equal(t, 1, result.OldLevel)
	assert.Equal(t, 2, result.NewLevel)
	assert.True(t, bus.hasEventType(shared.EventLevelUp))
}

func TestAwardXPRejectsNegativeAmount(t *testing.T) {
	users := newFakeUserRepo()
	users.put(newTestUser(t, "greta"))

	handler := newAwardHandler(users, newFakeBadgeRepo(), newFakeRankIndex(), &fakeEventBus{})
	_, err := handler.Handle(context.Background(), AwardXPCommand{
		Username: "greta",
		Amount:   -5,
	})
	assert.ErrorIs(t, err, user.ErrNegativeAward)
}

func TestAwardXPUnknownUser(t *testing.T) {
	handler := newAwardHandler(newFakeUserRepo(), newFakeBadgeRepo(), newFakeRankIndex(), &fakeEventBus{})

	_, err := handler.Handle(context.Background(), AwardXPCommand{
		Username: "nobody",
		Amount:   10,
	})
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}

func TestAwardXPRetriesOnConcurrentUpdate(t *testing.T) {
	users := newFakeUserRepo()
	users.put(newTestUser(t, "greta"))

	// Первая запись проигрывает гонку: конкурирующее начисление добавило
	// 5 XP между чтением и записью.
	users.conflictsLeft = 1
	users.conflictBump = 5

	handler := newAwardHandler(users, newFakeBadgeRepo(), newFakeRankIndex(), &fakeEventBus{})
	result, err := handler.Handle(context.Background(), AwardXPCommand{
		Username: "greta",
		Amount:   30,
	})
	require.NoError(t, err)

	// Начисление не потеряно и не задвоено: 5 (конкурент) + 30 (наше).
	assert.Equal(t, int64(35), result.NewXP)
	assert.Equal(t, user.XP(35), users.get("greta").XP)
	assert.GreaterOrEqual(t, users.saveCalls, 2)
}

func TestAwardXPGrantsBadgesOnce(t *testing.T) {
	users := newFakeUserRepo()
	users.put(newTestUser(t, "greta"))
	badges := newFakeBadgeRepo()
	bus := &fakeEventBus{}

	handler := newAwardHandler(users, badges, newFakeRankIndex(), bus)

	// Первое начисление пересекает порог 100 XP.
	result, err := handler.Handle(context.Background(), AwardXPCommand{
		Username: "greta",
		Amount:   120,
	})
	require.NoError(t, err)

	require.Len(t, result.BadgesGranted, 1)
	assert.Equal(t, "GREEN_SPROUT", result.BadgesGranted[0].Code)
	assert.Equal(t, 10, result.GemsEarned)
	assert.True(t, bus.hasEventType(shared.EventBadgeGranted))

	// Гемы за значок сохранены в леджере.
	assert.Equal(t, 10, users.get("greta").Gems)

	// Повторное начисление не выдаёт значок второй раз.
	result, err = handler.Handle(context.Background(), AwardXPCommand{
		Username: "greta",
		Amount:   50,
	})
	require.NoError(t, err)
	assert.Empty(t, result.BadgesGranted)
	assert.Zero(t, result.GemsEarned)
}

func TestAwardXPSucceedsWhenRankIndexDown(t *testing.T) {
	users := newFakeUserRepo()
	users.put(newTestUser(t, "greta"))
	rank := newFakeRankIndex()
	rank.failUpserts = 100
	bus := &fakeEventBus{}

	handler := newAwardHandler(users, newFakeBadgeRepo(), rank, bus)
	result, err := handler.Handle(context.Background(), AwardXPCommand{
		Username: "greta",
		Amount:   30,
	})
	require.NoError(t, err)

	// Начисление прошло, но индекс не синхронизирован.
	assert.False(t, result.RankSynced)
	assert.Equal(t, user.XP(30), users.get("greta").XP)
	assert.True(t, bus.hasEventType(shared.EventRankSyncFailed))
}

func TestAwardXPCompensatesGemsOnFailedGrant(t *testing.T) {
	users := newFakeUserRepo()
	users.put(newTestUser(t, "greta"))
	badges := newFakeBadgeRepo()
	badges.grantErr = errors.New("badge store down")

	handler := newAwardHandler(users, badges, newFakeRankIndex(), &fakeEventBus{})
	result, err := handler.Handle(context.Background(), AwardXPCommand{
		Username: "greta",
		Amount:   120,
	})
	require.NoError(t, err)

	// Начисление XP прошло, значок не выдан, а кредит гемов откатился:
	// следующее начисление снова увидит значок как невыданный и повторит
	// и выдачу, и бонус.
	assert.Empty(t, result.BadgesGranted)
	assert.Zero(t, result.GemsEarned)
	assert.Equal(t, 0, users.get("greta").Gems)
	assert.Equal(t, user.XP(120), users.get("greta").XP)

	badges.grantErr = nil
	result, err = handler.Handle(context.Background(), AwardXPCommand{
		Username: "greta",
		Amount:   10,
	})
	require.NoError(t, err)

	require.Len(t, result.BadgesGranted, 1)
	assert.Equal(t, "GREEN_SPROUT", result.BadgesGranted[0].Code)
	assert.Equal(t, 10, users.get("greta").Gems)
}

func TestAwardXPOverwritesRankScore(t *testing.T) {
	users := newFakeUserRepo()
	users.put(newTestUser(t, "greta"))
	users.put(newTestUser(t, "arne"))
	rank := newFakeRankIndex()

	handler := newAwardHandler(users, newFakeBadgeRepo(), rank, &fakeEventBus{})

	for _, award := range []struct {
		username string
		amount   int64
	}{
		{"arne", 200},
		{"greta", 1000},
		{"greta", 500},
	} {
		_, err := handler.Handle(context.Background(), AwardXPCommand{
			Username: award.username,
			Amount:   award.amount,
		})
		require.NoError(t, err)
	}

	// Повторный Upsert заменяет счёт, а не добавляет вторую запись.
	top, err := rank.TopN(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "greta", top[0].Username)
	assert.Equal(t, int64(1500), top[0].XP)
	assert.Equal(t, int64(1), top[0].Rank)

	all, err := rank.TopN(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "arne", all[1].Username)
}

func TestAwardXPZeroAmountStillRunsPipeline(t *testing.T) {
	users := newFakeUserRepo()
	users.put(newTestUser(t, "greta"))
	rank := newFakeRankIndex()

	handler := newAwardHandler(users, newFakeBadgeRepo(), rank, &fakeEventBus{})
	result, err := handler.Handle(context.Background(), AwardXPCommand{
		Username: "greta",
		Amount:   0,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(0), result.NewXP)
	assert.Equal(t, 1, result.Streak)
	assert.True(t, result.RankSynced)
	assert.Equal(t, 1, rank.upsertCalls)
}
