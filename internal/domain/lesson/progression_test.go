package lesson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func moduleLessons() []Lesson {
	return []Lesson{
		{ID: 10, ModuleID: 1, Title: "Intro", OrderIndex: 1, XPReward: 20},
		{ID: 11, ModuleID: 1, Title: "Recycling", OrderIndex: 2, XPReward: 20},
		{ID: 12, ModuleID: 1, Title: "Composting", OrderIndex: 3, XPReward: 30},
	}
}

func TestDeriveStatesNothingCompleted(t *testing.T) {
	states := DeriveStates(moduleLessons(), map[int64]bool{})
	require.Len(t, states, 3)

	assert.False(t, states[0].Locked)
	assert.False(t, states[0].Completed)
	assert.True(t, states[1].Locked)
	assert.True(t, states[2].Locked)
}

func TestDeriveStatesUnlocksNext(t *testing.T) {
	states := DeriveStates(moduleLessons(), map[int64]bool{10: true})
	require.Len(t, states, 3)

	assert.True(t, states[0].Completed)
	assert.False(t, states[1].Locked)
	assert.True(t, states[2].Locked)
}

func TestDeriveStatesAllCompleted(t *testing.T) {
	states := DeriveStates(moduleLessons(), map[int64]bool{10: true, 11: true, 12: true})

	for _, s := range states {
		assert.True(t, s.Completed)
		assert.False(t, s.Locked)
	}
}

func TestDeriveStatesSortsByOrderIndex(t *testing.T) {
	shuffled := []Lesson{
		{ID: 12, ModuleID: 1, OrderIndex: 3},
		{ID: 10, ModuleID: 1, OrderIndex: 1},
		{ID: 11, ModuleID: 1, OrderIndex: 2},
	}

	states := DeriveStates(shuffled, map[int64]bool{})
	require.Len(t, states, 3)

	assert.Equal(t, int64(10), states[0].Lesson.ID)
	assert.Equal(t, int64(11), states[1].Lesson.ID)
	assert.Equal(t, int64(12), states[2].Lesson.ID)
}

func TestDeriveStatesGapInSequence(t *testing.T) {
	// Индекса 2 нет: урок с индексом 3 не блокируется отсутствующим
	// предшественником.
	lessons := []Lesson{
		{ID: 10, ModuleID: 1, OrderIndex: 1},
		{ID: 12, ModuleID: 1, OrderIndex: 3},
	}

	states := DeriveStates(lessons, map[int64]bool{})
	require.Len(t, states, 2)

	assert.False(t, states[0].Locked)
	assert.False(t, states[1].Locked)
}

func TestDeriveStatesCompletedLessonNeverLocked(t *testing.T) {
	// Завершённый урок остаётся завершённым, даже если предыдущий не пройден.
	states := DeriveStates(moduleLessons(), map[int64]bool{11: true})
	require.Len(t, states, 3)

	assert.True(t, states[1].Completed)
	assert.True(t, states[1].Locked)
	// Третий урок разблокирован: его предшественник (индекс 2) пройден.
	assert.False(t, states[2].Locked)
}

func TestDeriveStatesEmpty(t *testing.T) {
	states := DeriveStates(nil, nil)
	assert.Empty(t, states)
}
