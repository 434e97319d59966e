package testutil

import (
	"github.com/retzproject/retz/internal/domain/model"
)

// ApplicationBuilder builds Application fixtures with sensible defaults.
type ApplicationBuilder struct {
	app *model.Application
}

// NewApplication creates a builder for an application owned by "tester".
func NewApplication(appid string) *ApplicationBuilder {
	return &ApplicationBuilder{
		app: &model.Application{
			Appid: appid,
			Owner: "tester",
		},
	}
}

// WithOwner sets the owning user key id.
func (b *ApplicationBuilder) WithOwner(owner string) *ApplicationBuilder {
	b.app.Owner = owner
	return b
}

// WithContainer sets the container image.
func (b *ApplicationBuilder) WithContainer(image string) *ApplicationBuilder {
	b.app.Container = image
	return b
}

// WithEnv appends a KEY=VALUE pair to the application environment.
func (b *ApplicationBuilder) WithEnv(kv string) *ApplicationBuilder {
	b.app.Env = append(b.app.Env, kv)
	return b
}

// WithFiles sets the fetchable file URIs.
func (b *ApplicationBuilder) WithFiles(files ...string) *ApplicationBuilder {
	b.app.Files = files
	return b
}

// Build returns the constructed application.
func (b *ApplicationBuilder) Build() *model.Application {
	return b.app
}

// JobBuilder builds queued Job fixtures.
type JobBuilder struct {
	job *model.Job
}

// NewQueuedJob creates a builder for a queued job with a 1 cpu, 32 MB shape.
func NewQueuedJob(appid string) *JobBuilder {
	return &JobBuilder{
		job: &model.Job{
			Appid:     appid,
			Cmd:       "echo ok",
			State:     model.JobQueued,
			Resources: model.ResourceQuantity{CPU: 1, MemMB: 32},
			Scheduled: model.Timestamp(TestTime()),
		},
	}
}

// WithID sets an explicit job id, bypassing store-side assignment.
func (b *JobBuilder) WithID(id int) *JobBuilder {
	b.job.ID = id
	return b
}

// WithName sets the job name.
func (b *JobBuilder) WithName(name string) *JobBuilder {
	b.job.Name = name
	return b
}

// WithCmd sets the command line.
func (b *JobBuilder) WithCmd(cmd string) *JobBuilder {
	b.job.Cmd = cmd
	return b
}

// WithPriority sets the scheduling priority (lower runs first).
func (b *JobBuilder) WithPriority(priority int) *JobBuilder {
	b.job.Priority = priority
	return b
}

// WithResources sets the requested resource shape.
func (b *JobBuilder) WithResources(cpu, memMB int) *JobBuilder {
	b.job.Resources = model.ResourceQuantity{CPU: cpu, MemMB: memMB}
	return b
}

// WithTags sets the job tags.
func (b *JobBuilder) WithTags(tags ...string) *JobBuilder {
	b.job.Tags = tags
	return b
}

// Build returns the constructed job.
func (b *JobBuilder) Build() *model.Job {
	return b.job
}
