package scheduler

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
	runs int
	err  error
}

func (j *stubJob) Run() error {
	j.runs++
	return j.err
}

func (j *stubJob) Name() string { return j.name }

func TestAddJobAndRunByName(t *testing.T) {
	s := New(zerolog.Nop())
	job := &stubJob{name: "cleanup"}

	require.NoError(t, s.AddJob("@daily", job))

	require.NoError(t, s.RunByName("cleanup"))
	assert.Equal(t, 1, job.runs)
}

func TestRunByNameUnknownJob(t *testing.T) {
	s := New(zerolog.Nop())
	assert.Error(t, s.RunByName("nope"))
}

func TestRunByNamePropagatesJobError(t *testing.T) {
	s := New(zerolog.Nop())
	job := &stubJob{name: "backup", err: errors.New("bucket unreachable")}

	require.NoError(t, s.AddJob("@daily", job))
	assert.Error(t, s.RunByName("backup"))
}

func TestAddJobRejectsInvalidSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	assert.Error(t, s.AddJob("not-a-schedule", &stubJob{name: "x"}))
}

func TestJobNamesSorted(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.AddJob("@daily", &stubJob{name: "zeta"}))
	require.NoError(t, s.AddJob("@daily", &stubJob{name: "alpha"}))

	assert.Equal(t, []string{"alpha", "zeta"}, s.JobNames())
}
