package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetStreaksReportsCount(t *testing.T) {
	users := newMemoryUserRepo()
	users.resetCount = 7

	job := NewResetStreaksJob(users, nil, DefaultResetStreaksConfig())
	require.NoError(t, job.Run(context.Background()))

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, int64(7), stats.StreaksReset)
}

func TestResetStreaksPropagatesError(t *testing.T) {
	users := newMemoryUserRepo()
	users.resetErr = errors.New("connection refused")

	job := NewResetStreaksJob(users, nil, DefaultResetStreaksConfig())
	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, job.LastStats())
}
