package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testClock = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func queuedJob() *Job {
	j := NewJob("app1", "smoke", "echo hello", ResourceQuantity{CPU: 2, MemMB: 512})
	j.ID = 1
	return j
}

func TestJobApply_HappyPath(t *testing.T) {
	j := queuedJob()

	require.NoError(t, j.Apply(Starting("task-1", "http://agent/sandbox", testClock)))
	assert.Equal(t, JobStarting, j.State)
	assert.Equal(t, "task-1", j.TaskID)
	assert.Equal(t, "http://agent/sandbox", j.URL)
	assert.Equal(t, "2024-06-01T12:00:00Z", j.Started)
	require.NoError(t, j.Validate())

	require.NoError(t, j.Apply(Started(testClock.Add(time.Second))))
	assert.Equal(t, JobStarted, j.State)

	require.NoError(t, j.Apply(Finished(testClock.Add(time.Minute), 0)))
	assert.Equal(t, JobFinished, j.State)
	assert.Equal(t, 0, j.Result)
	assert.Equal(t, "2024-06-01T12:01:00Z", j.Finished)
	require.NoError(t, j.Validate())
}

func TestJobApply_IllegalTransitions(t *testing.T) {
	tests := []struct {
		name       string
		from       JobState
		transition Transition
	}{
		{"started before starting", JobQueued, Started(testClock)},
		{"finished from queued", JobQueued, Finished(testClock, 0)},
		{"starting twice", JobStarting, Starting("t2", "", testClock)},
		{"starting after started", JobStarted, Starting("t2", "", testClock)},
		{"late started after finished", JobFinished, Started(testClock)},
		{"finished after killed", JobKilled, Finished(testClock, 0)},
		{"kill a killed job", JobKilled, Killed(testClock, "again")},
		{"retry a running job", JobStarted, Retry()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := queuedJob()
			j.State = tt.from
			if tt.from != JobQueued {
				j.TaskID = "task-1"
			}
			before := *j

			err := j.Apply(tt.transition)

			var illegal *IllegalTransition
			require.ErrorAs(t, err, &illegal)
			assert.Equal(t, tt.from, illegal.From)
			// A rejected transition must leave the job untouched.
			assert.Equal(t, before, *j)
		})
	}
}

func TestJobApply_KillFromEveryNonTerminalState(t *testing.T) {
	for _, from := range []JobState{JobQueued, JobStarting, JobStarted} {
		t.Run(string(from), func(t *testing.T) {
			j := queuedJob()
			j.State = from
			if from != JobQueued {
				j.TaskID = "task-1"
			}

			require.NoError(t, j.Apply(Killed(testClock, "user requested")))
			assert.Equal(t, JobKilled, j.State)
			assert.Equal(t, "user requested", j.Reason)
			assert.NotEmpty(t, j.Finished)
		})
	}
}

func TestJobApply_RetryClearsTaskState(t *testing.T) {
	j := queuedJob()
	require.NoError(t, j.Apply(Starting("task-1", "url", testClock)))
	require.NoError(t, j.Apply(Started(testClock)))
	require.NoError(t, j.Apply(Finished(testClock, 137)))

	require.NoError(t, j.Apply(Retry()))

	assert.Equal(t, JobQueued, j.State)
	assert.Equal(t, 1, j.Retried)
	assert.Empty(t, j.TaskID)
	assert.Empty(t, j.URL)
	assert.Empty(t, j.Started)
	assert.Empty(t, j.Finished)
	assert.Zero(t, j.Result)
	require.NoError(t, j.Validate())
}

func TestJobValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Job)
		wantErr bool
	}{
		{"queued without task id", func(_ *Job) {}, false},
		{"queued with task id", func(j *Job) { j.TaskID = "t" }, true},
		{"starting without task id", func(j *Job) { j.State = JobStarting }, true},
		{"bogus state", func(j *Job) { j.State = "RUNNING" }, true},
		{"missing appid", func(j *Job) { j.Appid = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := queuedJob()
			tt.mutate(j)
			err := j.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestJobHasTag(t *testing.T) {
	j := queuedJob()
	j.Tags = []string{"nightly", "gpu"}

	assert.True(t, j.HasTag("gpu"))
	assert.False(t, j.HasTag("daily"))
}

func TestResourceQuantityFits(t *testing.T) {
	avail := ResourceQuantity{CPU: 4, MemMB: 1024}

	assert.True(t, ResourceQuantity{CPU: 4, MemMB: 1024}.Fits(avail))
	assert.False(t, ResourceQuantity{CPU: 5, MemMB: 1}.Fits(avail))
	assert.False(t, ResourceQuantity{CPU: 1, MemMB: 2048}.Fits(avail))

	used := ResourceQuantity{}
	used.Add(ResourceQuantity{CPU: 2, MemMB: 512, GPU: 1})
	used.Add(ResourceQuantity{CPU: 1, MemMB: 256})
	assert.Equal(t, ResourceQuantity{CPU: 3, MemMB: 768, GPU: 1}, used)
}
