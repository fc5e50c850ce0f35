package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/lesson"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/shared"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/user"
)

func newCompleteLessonFixture(t *testing.T) (*CompleteLessonHandler, *fakeUserRepo, *fakeLessonRepo, *fakeEventBus) {
	t.Helper()

	users := newFakeUserRepo()
	users.put(newTestUser(t, "greta"))

	lessons := newFakeLessonRepo()
	lessons.lessons[10] = lesson.Lesson{ID: 10, ModuleID: 1, Title: "Intro", OrderIndex: 1, XPReward: 20}

	bus := &fakeEventBus{}
	award := newAwardHandler(users, newFakeBadgeRepo(), newFakeRankIndex(), bus)
	handler := NewCompleteLessonHandler(lessons, users, award, bus, nil)

	return handler, users, lessons, bus
}

func TestCompleteLessonAwardsXP(t *testing.T) {
	handler, users, _, bus := newCompleteLessonFixture(t)

	result, err := handler.Handle(context.Background(), CompleteLessonCommand{
		Username: "greta",
		LessonID: 10,
	})
	require.NoError(t, err)

	assert.False(t, result.AlreadyCompleted)
	assert.Equal(t, int64(20), result.XPAwarded)
	require.NotNil(t, result.Award)
	assert.Equal(t, int64(20), result.Award.NewXP)

	assert.Equal(t, user.XP(20), users.get("greta").XP)
	assert.True(t, bus.hasEventType(shared.EventLessonCompleted))
}

func TestCompleteLessonDuplicateIsIdempotent(t *testing.T) {
	handler, users, _, _ := newCompleteLessonFixture(t)

	_, err := handler.Handle(context.Background(), CompleteLessonCommand{
		Username: "greta",
		LessonID: 10,
	})
	require.NoError(t, err)

	result, err := handler.Handle(context.Background(), CompleteLessonCommand{
		Username: "greta",
		LessonID: 10,
	})
	require.NoError(t, err)

	// Повторное прохождение успешно, но XP не двигается.
	assert.True(t, result.AlreadyCompleted)
	assert.Zero(t, result.XPAwarded)
	assert.Nil(t, result.Award)
	assert.Equal(t, user.XP(20), users.get("greta").XP)
}

func TestCompleteLessonUnknownLesson(t *testing.T) {
	handler, _, _, _ := newCompleteLessonFixture(t)

	_, err := handler.Handle(context.Background(), CompleteLessonCommand{
		Username: "greta",
		LessonID: 999,
	})
	assert.ErrorIs(t, err, lesson.ErrLessonNotFound)
}

func TestCompleteLessonUnknownUser(t *testing.T) {
	handler, _, _, _ := newCompleteLessonFixture(t)

	_, err := handler.Handle(context.Background(), CompleteLessonCommand{
		Username: "nobody",
		LessonID: 10,
	})
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}

func TestCompleteLessonCompensatesFailedAward(t *testing.T) {
	users := newFakeUserRepo()
	users.put(newTestUser(t, "greta"))

	lessons := newFakeLessonRepo()
	lessons.lessons[10] = lesson.Lesson{ID: 10, ModuleID: 1, XPReward: 20}

	bus := &fakeEventBus{}
	award := newAwardHandler(users, newFakeBadgeRepo(), newFakeRankIndex(), bus)
	handler := NewCompleteLessonHandler(lessons, users, award, bus, nil)

	// Начисление падает: все записи в леджер конфликтуют.
	users.conflictsLeft = 100

	_, err := handler.Handle(context.Background(), CompleteLessonCommand{
		Username: "greta",
		LessonID: 10,
	})
	require.Error(t, err)

	// Запись о прохождении откатилась, пользователь может повторить.
	completed, cerr := lessons.HasCompletion(context.Background(), "greta", 10)
	require.NoError(t, cerr)
	assert.False(t, completed)
	assert.Equal(t, 1, lessons.deleteCalls)
}
