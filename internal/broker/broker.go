// Package broker defines the surface the dispatcher consumes from a resource
// broker (Mesos-style two-level scheduling). The scheduler never talks to a
// cluster directly; everything goes through this interface so tests can run
// against a stub.
package broker

import (
	"context"

	"github.com/retzproject/retz/internal/domain/model"
)

// TaskState is the broker's view of a launched task.
type TaskState string

const (
	// TaskRunning means the agent acknowledged the task and it is executing.
	TaskRunning TaskState = "TASK_RUNNING"
	// TaskFinished means the task exited with status zero.
	TaskFinished TaskState = "TASK_FINISHED"
	// TaskFailed means the task exited non-zero.
	TaskFailed TaskState = "TASK_FAILED"
	// TaskKilled means the task was killed on request.
	TaskKilled TaskState = "TASK_KILLED"
	// TaskLost means the broker lost track of the task, usually because the
	// agent died.
	TaskLost TaskState = "TASK_LOST"
)

// TaskStatus is a status update event for one task.
type TaskStatus struct {
	TaskID   string
	State    TaskState
	Reason   string
	ExitCode int
	// SandboxURL points at the task's working directory on the agent, when
	// the broker exposes one.
	SandboxURL string
}

// LaunchRequest asks the broker to start one task on the resources of one
// offer.
type LaunchRequest struct {
	OfferID   string
	TaskID    string
	Command   string
	Resources model.ResourceQuantity
	// Environment is merged into the task's environment on the agent, in
	// KEY=VALUE form.
	Environment []string
}

// ResourceBroker is the dispatcher's outbound port.
type ResourceBroker interface {
	// Launch starts a task against an offer. The offer is consumed whether
	// or not the launch succeeds.
	Launch(ctx context.Context, req LaunchRequest) error
	// Decline releases an unused offer back to the cluster.
	Decline(ctx context.Context, offerID string) error
	// Kill requests termination of a running task. The result arrives
	// asynchronously as a TaskStatus.
	Kill(ctx context.Context, taskID string) error
	// Reconcile asks the broker to re-send the current status of the given
	// tasks. An empty slice means all known tasks.
	Reconcile(ctx context.Context, taskIDs []string) error
}
