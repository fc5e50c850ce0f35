package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int64
	err  error
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "test job" }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestSchedulerRegister(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	job := &countingJob{name: "probe"}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))
	assert.ErrorIs(t, s.Register(job, NewIntervalSchedule(time.Hour)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Hour)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "other"}, nil), ErrNilSchedule)

	infos := s.ListJobs()
	require.Len(t, infos, 1)
	assert.Equal(t, "probe", infos[0].Name)
}

func TestSchedulerRunNow(t *testing.T) {
	s := NewScheduler(SchedulerConfig{EnableMetrics: true})
	job := &countingJob{name: "probe"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "probe")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(1), job.runs.Load())

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestSchedulerRunNowReportsJobError(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	jobErr := errors.New("ledger unavailable")
	job := &countingJob{name: "probe", err: jobErr}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "probe")
	assert.ErrorIs(t, err, jobErr)
	require.NotNil(t, result)
	assert.False(t, result.Success)

	history := s.GetHistory(10)
	require.Len(t, history, 1)
	assert.False(t, history[0].Success)
}

func TestSchedulerLifecycle(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	require.NoError(t, s.Register(&countingJob{name: "probe"}, NewIntervalSchedule(time.Hour)))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestSchedulerDisableJob(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	require.NoError(t, s.Register(&countingJob{name: "probe"}, NewIntervalSchedule(time.Hour)))

	require.NoError(t, s.DisableJob("probe"))
	info, err := s.GetJobInfo("probe")
	require.NoError(t, err)
	assert.False(t, info.Enabled)

	require.NoError(t, s.EnableJob("probe"))
	info, err = s.GetJobInfo("probe")
	require.NoError(t, err)
	assert.True(t, info.Enabled)

	assert.ErrorIs(t, s.DisableJob("missing"), ErrJobNotFound)
}
