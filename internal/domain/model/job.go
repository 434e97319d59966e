// Package model defines the persistent entities of the retz scheduler and the
// job lifecycle state machine that governs every mutation of a Job.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// JobState is the lifecycle state of a job.
type JobState string

const (
	// JobQueued means the job is waiting for resources.
	JobQueued JobState = "QUEUED"
	// JobStarting means a task has been launched but not yet acknowledged.
	JobStarting JobState = "STARTING"
	// JobStarted means the task is running on an agent.
	JobStarted JobState = "STARTED"
	// JobFinished means the task ran to completion.
	JobFinished JobState = "FINISHED"
	// JobKilled means the job was cancelled or the task was lost.
	JobKilled JobState = "KILLED"
)

// Valid returns true if the state is one of the five lifecycle states.
func (s JobState) Valid() bool {
	switch s {
	case JobQueued, JobStarting, JobStarted, JobFinished, JobKilled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions except retry are possible.
func (s JobState) Terminal() bool {
	return s == JobFinished || s == JobKilled
}

// Running reports whether the job occupies cluster resources.
func (s JobState) Running() bool {
	return s == JobStarting || s == JobStarted
}

// Timestamp renders t in the canonical format used for the finished column
// and all JSON timestamps. RFC 3339 in UTC sorts lexicographically, which the
// retention GC and finishedJobs range queries rely on.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Job is a single execution request: one command run inside an application.
// All state changes go through Apply; nothing else may touch State, TaskID,
// or the lifecycle timestamps.
type Job struct {
	ID        int              `json:"id"`
	Appid     string           `json:"appid"`
	Name      string           `json:"name,omitempty"`
	Cmd       string           `json:"cmd"`
	Priority  int              `json:"priority"`
	Tags      []string         `json:"tags,omitempty"`
	TaskID    string           `json:"taskId,omitempty"`
	State     JobState         `json:"state"`
	Resources ResourceQuantity `json:"resources"`
	URL       string           `json:"url,omitempty"`
	Scheduled string           `json:"scheduled,omitempty"`
	Started   string           `json:"started,omitempty"`
	Finished  string           `json:"finished,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Result    int              `json:"result"`
	Retried   int              `json:"retry"`

	extra map[string]json.RawMessage
}

// NewJob constructs a queued job. The id is assigned by the store at enqueue.
func NewJob(appid, name, cmd string, res ResourceQuantity) *Job {
	return &Job{
		Appid:     appid,
		Name:      name,
		Cmd:       cmd,
		State:     JobQueued,
		Resources: res,
		Scheduled: Timestamp(time.Now()),
	}
}

// HasTag reports whether the job carries the given tag.
func (j *Job) HasTag(tag string) bool {
	return slices.Contains(j.Tags, tag)
}

// Validate checks the representation invariants that must hold for any
// persisted job: a valid state, and a task id exactly when one has been
// assigned by the broker.
func (j *Job) Validate() error {
	if strings.TrimSpace(j.Appid) == "" {
		return errors.New("job appid is required")
	}
	if !j.State.Valid() {
		return fmt.Errorf("invalid job state: %q", j.State)
	}
	if (j.State == JobQueued) != (j.TaskID == "") {
		return fmt.Errorf("job %d: state %s with taskId %q", j.ID, j.State, j.TaskID)
	}
	return nil
}

// IllegalTransition is returned by Apply when the requested transition is not
// an edge of the lifecycle graph. The job is left unchanged.
type IllegalTransition struct {
	JobID int
	From  JobState
	To    JobState
}

func (e *IllegalTransition) Error() string {
	return fmt.Sprintf("job %d: illegal transition %s -> %s", e.JobID, e.From, e.To)
}

// TransitionKind names a lifecycle transition.
type TransitionKind string

const (
	// TransitionStarting assigns a task and moves QUEUED -> STARTING.
	TransitionStarting TransitionKind = "starting"
	// TransitionStarted moves STARTING -> STARTED.
	TransitionStarted TransitionKind = "started"
	// TransitionFinished moves STARTING|STARTED -> FINISHED.
	TransitionFinished TransitionKind = "finished"
	// TransitionKilled moves any non-terminal state -> KILLED.
	TransitionKilled TransitionKind = "killed"
	// TransitionRetry re-queues a terminal job.
	TransitionRetry TransitionKind = "retry"
)

// Transition is a typed lifecycle event. Transitions are plain values so they
// can be applied inside a store transaction without smuggling closures across
// the transaction boundary.
type Transition struct {
	Kind     TransitionKind
	TaskID   string
	URL      string
	Reason   string
	ExitCode int
	At       time.Time
}

// Starting builds the transition that assigns a broker task to a queued job.
func Starting(taskID, url string, at time.Time) Transition {
	return Transition{Kind: TransitionStarting, TaskID: taskID, URL: url, At: at}
}

// Started builds the transition acknowledging that the task is running.
func Started(at time.Time) Transition {
	return Transition{Kind: TransitionStarted, At: at}
}

// Finished builds the terminal transition for a task that ran to completion.
func Finished(at time.Time, exitCode int) Transition {
	return Transition{Kind: TransitionFinished, ExitCode: exitCode, At: at}
}

// Killed builds the terminal transition for a cancelled or lost task.
func Killed(at time.Time, reason string) Transition {
	return Transition{Kind: TransitionKilled, Reason: reason, At: at}
}

// Retry builds the transition that re-queues a terminal job.
func Retry() Transition {
	return Transition{Kind: TransitionRetry}
}

// target returns the destination state of a transition kind, for error
// reporting only.
func (t Transition) target() JobState {
	switch t.Kind {
	case TransitionStarting:
		return JobStarting
	case TransitionStarted:
		return JobStarted
	case TransitionFinished:
		return JobFinished
	case TransitionKilled:
		return JobKilled
	case TransitionRetry:
		return JobQueued
	}
	return ""
}

// Apply performs a lifecycle transition in place. It returns
// *IllegalTransition and leaves the job untouched if the edge does not exist:
//
//	QUEUED -> STARTING -> STARTED -> FINISHED
//	   |          |           |
//	   +----------+-----------+--> KILLED
//	FINISHED|KILLED -> QUEUED (retry)
func (j *Job) Apply(t Transition) error {
	illegal := func() error {
		return &IllegalTransition{JobID: j.ID, From: j.State, To: t.target()}
	}

	switch t.Kind {
	case TransitionStarting:
		if j.State != JobQueued {
			return illegal()
		}
		j.State = JobStarting
		j.TaskID = t.TaskID
		j.URL = t.URL
		j.Started = Timestamp(t.At)

	case TransitionStarted:
		if j.State != JobStarting {
			return illegal()
		}
		j.State = JobStarted

	case TransitionFinished:
		if !j.State.Running() {
			return illegal()
		}
		j.State = JobFinished
		j.Result = t.ExitCode
		j.Finished = Timestamp(t.At)

	case TransitionKilled:
		if j.State.Terminal() {
			return illegal()
		}
		j.State = JobKilled
		j.Reason = t.Reason
		j.Finished = Timestamp(t.At)

	case TransitionRetry:
		if !j.State.Terminal() {
			return illegal()
		}
		j.State = JobQueued
		j.Retried++
		j.TaskID = ""
		j.URL = ""
		j.Started = ""
		j.Finished = ""
		j.Reason = ""
		j.Result = 0

	default:
		return fmt.Errorf("unknown transition kind: %q", t.Kind)
	}
	return nil
}

type jobAlias Job

// UnmarshalJSON decodes a job, keeping unrecognised keys for round-trip.
func (j *Job) UnmarshalJSON(data []byte) error {
	var a jobAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	known, err := json.Marshal(a)
	if err != nil {
		return err
	}
	extra, err := splitUnknown(data, known)
	if err != nil {
		return err
	}
	*j = Job(a)
	j.extra = extra
	return nil
}

// MarshalJSON encodes a job, merging back any preserved unknown keys.
func (j Job) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(jobAlias(j))
	if err != nil {
		return nil, err
	}
	return mergeUnknown(body, j.extra)
}
