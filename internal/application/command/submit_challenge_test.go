package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/challenge"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/shared"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/user"
)

func newChallengeFixture(t *testing.T) (*fakeChallengeRepo, *fakeUserRepo, *SubmitChallengeHandler, *fakeEventBus) {
	t.Helper()

	challenges := newFakeChallengeRepo()
	challenges.challenges[1] = challenge.Challenge{
		ID:         1,
		Title:      "Посади дерево",
		Difficulty: challenge.DifficultyMedium,
		XPReward:   50,
	}

	users := newFakeUserRepo()
	users.put(newTestUser(t, "greta"))

	bus := &fakeEventBus{}
	award := newAwardHandler(users, newFakeBadgeRepo(), newFakeRankIndex(), bus)
	handler := NewSubmitChallengeHandler(challenges, award, bus, nil)
	return challenges, users, handler, bus
}

func TestSubmitChallengeAwardsReward(t *testing.T) {
	_, users, handler, bus := newChallengeFixture(t)

	result, err := handler.Handle(context.Background(), SubmitChallengeCommand{
		Username:    "greta",
		ChallengeID: 1,
		ImagePath:   "uploads/greta/tree.jpg",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(50), result.XPAwarded)
	require.NotNil(t, result.Award)
	assert.Equal(t, int64(50), result.Award.NewXP)
	assert.Equal(t, user.XP(50), users.get("greta").XP)
	assert.True(t, bus.hasEventType(shared.EventChallengeSubmitted))
}

func TestSubmitChallengeRejectsSecondSubmission(t *testing.T) {
	_, users, handler, _ := newChallengeFixture(t)

	_, err := handler.Handle(context.Background(), SubmitChallengeCommand{
		Username:    "greta",
		ChallengeID: 1,
		ImagePath:   "uploads/greta/tree.jpg",
	})
	require.NoError(t, err)

	// Один челлендж засчитывается ровно один раз.
	_, err = handler.Handle(context.Background(), SubmitChallengeCommand{
		Username:    "greta",
		ChallengeID: 1,
		ImagePath:   "uploads/greta/tree-again.jpg",
	})
	assert.ErrorIs(t, err, challenge.ErrAlreadySubmitted)
	assert.Equal(t, user.XP(50), users.get("greta").XP)
}

func TestSubmitChallengeUnknownChallenge(t *testing.T) {
	_, _, handler, _ := newChallengeFixture(t)

	_, err := handler.Handle(context.Background(), SubmitChallengeCommand{
		Username:    "greta",
		ChallengeID: 404,
	})
	assert.ErrorIs(t, err, challenge.ErrChallengeNotFound)
}

func TestSubmitChallengeCompensatesFailedAward(t *testing.T) {
	challenges, users, handler, _ := newChallengeFixture(t)

	// Начисление XP исчерпает все ретраи и завершится ошибкой.
	users.conflictsLeft = 100
	users.conflictBump = 1

	_, err := handler.Handle(context.Background(), SubmitChallengeCommand{
		Username:    "greta",
		ChallengeID: 1,
	})
	require.Error(t, err)

	// Запись о сдаче откатывается, пользователь может попробовать снова.
	assert.Equal(t, 1, challenges.deleteCalls)
	assert.False(t, challenges.submissions["greta"][1])
}
