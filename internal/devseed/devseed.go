// Package devseed populates a development database with a known user, a
// couple of applications and a short queue, so the dispatcher and the status
// endpoint have something to chew on right after startup.
package devseed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/retzproject/retz/internal/data"
	"github.com/retzproject/retz/internal/domain/model"
)

// Fixed development credentials. Never enable IsDev against a shared
// database.
const (
	DevKeyID  = "deadbeefdeadbeefdeadbeefdeadbeef"
	devSecret = "cafebabecafebabecafebabecafebabe"
)

// Run seeds the development fixtures. Each step is idempotent; re-running
// against an already seeded database changes nothing.
func Run(ctx context.Context, store *data.Store, logger *slog.Logger) error {
	if err := seedUser(ctx, store, logger); err != nil {
		return err
	}
	if err := seedApplications(ctx, store, logger); err != nil {
		return err
	}
	return seedJobs(ctx, store, logger)
}

func seedUser(ctx context.Context, store *data.Store, logger *slog.Logger) error {
	existing, err := store.GetUser(ctx, DevKeyID)
	if err != nil {
		return fmt.Errorf("devseed: lookup user: %w", err)
	}
	if existing != nil {
		if logger != nil {
			logger.InfoContext(ctx, "dev user already exists", "key_id", DevKeyID)
		}
		return nil
	}
	u := model.NewUser(DevKeyID, devSecret, "development user")
	if err := store.AddUser(ctx, u); err != nil {
		return fmt.Errorf("devseed: create user: %w", err)
	}
	if logger != nil {
		logger.InfoContext(ctx, "created dev user", "key_id", DevKeyID)
	}
	return nil
}

func seedApplications(ctx context.Context, store *data.Store, logger *slog.Logger) error {
	apps := []*model.Application{
		{
			Appid:     "dev-shell",
			Owner:     DevKeyID,
			Container: "alpine:3.20",
		},
		{
			Appid:     "dev-batch",
			Owner:     DevKeyID,
			Container: "ubuntu:24.04",
			Env:       []string{"RETZ_DEV=1"},
		},
	}
	for _, app := range apps {
		accepted, err := store.AddApplication(ctx, app)
		if err != nil {
			return fmt.Errorf("devseed: register %s: %w", app.Appid, err)
		}
		if !accepted {
			return fmt.Errorf("devseed: application %s refused, dev user missing or disabled", app.Appid)
		}
		if logger != nil {
			logger.InfoContext(ctx, "registered dev application", "appid", app.Appid)
		}
	}
	return nil
}

func seedJobs(ctx context.Context, store *data.Store, logger *slog.Logger) error {
	queued, err := store.CountQueued(ctx)
	if err != nil {
		return fmt.Errorf("devseed: count queued: %w", err)
	}
	if queued > 0 {
		if logger != nil {
			logger.InfoContext(ctx, "queue not empty, skipping job seed", "queued", queued)
		}
		return nil
	}

	specs := []struct {
		appid    string
		name     string
		cmd      string
		priority int
		cpu      int
		memMB    int
	}{
		{"dev-shell", "hello", "echo hello", 0, 1, 32},
		{"dev-shell", "sleepy", "sleep 30", 0, 1, 32},
		{"dev-batch", "urgent", "uname -a", -1, 2, 256},
	}
	for _, spec := range specs {
		job := model.NewJob(spec.appid, spec.name, spec.cmd, model.ResourceQuantity{
			CPU:   spec.cpu,
			MemMB: spec.memMB,
		})
		job.Priority = spec.priority
		if err := store.SafeAddJob(ctx, job); err != nil {
			return fmt.Errorf("devseed: enqueue %s: %w", spec.name, err)
		}
		if logger != nil {
			logger.InfoContext(ctx, "enqueued dev job", "job_id", job.ID, "name", spec.name)
		}
	}
	return nil
}
