package data_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/retzproject/retz/internal/data"
	"github.com/retzproject/retz/internal/domain/model"
	apperrors "github.com/retzproject/retz/internal/errors"
	"github.com/retzproject/retz/internal/testutil"
)

func TestSafeAddJobAssignsMonotonicIDs(t *testing.T) {
	testutil.WithStoreDB(t, nil, func(ctx context.Context, store *data.Store) {
		owner := seedOwner(ctx, t, store)
		seedApplication(ctx, t, store, "batch", owner)

		first := testutil.NewQueuedJob("batch").Build()
		require.NoError(t, store.SafeAddJob(ctx, first))
		require.Equal(t, 1, first.ID)

		second := testutil.NewQueuedJob("batch").Build()
		require.NoError(t, store.SafeAddJob(ctx, second))
		require.Equal(t, 2, second.ID)

		latest, err := store.GetLatestJobID(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, latest)

		orphan := testutil.NewQueuedJob("no-such-app").Build()
		err = store.SafeAddJob(ctx, orphan)
		require.ErrorIs(t, err, data.ErrApplicationMissing)

		count, err := store.CountJobs(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, count)
	})
}

func TestJobTransitions(t *testing.T) {
	testutil.WithStoreDB(t, nil, func(ctx context.Context, store *data.Store) {
		owner := seedOwner(ctx, t, store)
		seedApplication(ctx, t, store, "batch", owner)

		job := testutil.NewQueuedJob("batch").Build()
		require.NoError(t, store.SafeAddJob(ctx, job))

		at := testutil.TestTime()
		updated, err := store.UpdateJob(ctx, job.ID, model.Starting("task-1", "http://agent/sandbox", at))
		require.NoError(t, err)
		require.Equal(t, model.JobStarting, updated.State)
		require.Equal(t, "task-1", updated.TaskID)
		require.Equal(t, model.Timestamp(at), updated.Started)

		byTask, err := store.GetJobFromTaskID(ctx, "task-1")
		require.NoError(t, err)
		require.NotNil(t, byTask)
		require.Equal(t, job.ID, byTask.ID)

		updated, err = store.UpdateJob(ctx, job.ID, model.Started(at))
		require.NoError(t, err)
		require.Equal(t, model.JobStarted, updated.State)

		// A second launch against a running job must not stick.
		_, err = store.UpdateJob(ctx, job.ID, model.Starting("task-2", "", at))
		var illegal *model.IllegalTransition
		require.ErrorAs(t, err, &illegal)
		require.Equal(t, model.JobStarted, illegal.From)

		unchanged, err := store.GetJob(ctx, job.ID)
		require.NoError(t, err)
		require.Equal(t, "task-1", unchanged.TaskID)

		done := at.Add(90 * time.Second)
		updated, err = store.UpdateJob(ctx, job.ID, model.Finished(done, 0))
		require.NoError(t, err)
		require.Equal(t, model.JobFinished, updated.State)
		require.Equal(t, model.Timestamp(done), updated.Finished)

		require.NoError(t, store.RetryJobs(ctx, []int{job.ID}))
		requeued, err := store.GetJob(ctx, job.ID)
		require.NoError(t, err)
		require.Equal(t, model.JobQueued, requeued.State)
		require.Empty(t, requeued.TaskID)
		require.Equal(t, 1, requeued.Retried)

		_, err = store.UpdateJob(ctx, 9999, model.Started(at))
		require.ErrorIs(t, err, data.ErrJobNotFound)
	})
}

func TestApplyTransitionsIsAtomic(t *testing.T) {
	testutil.WithStoreDB(t, nil, func(ctx context.Context, store *data.Store) {
		owner := seedOwner(ctx, t, store)
		seedApplication(ctx, t, store, "batch", owner)

		healthy := testutil.NewQueuedJob("batch").Build()
		require.NoError(t, store.SafeAddJob(ctx, healthy))
		doomed := testutil.NewQueuedJob("batch").Build()
		require.NoError(t, store.SafeAddJob(ctx, doomed))

		at := testutil.TestTime()
		_, err := store.UpdateJob(ctx, doomed.ID, model.Killed(at, "cancelled"))
		require.NoError(t, err)

		_, err = store.ApplyTransitions(ctx, []data.JobTransition{
			{ID: healthy.ID, Transition: model.Starting("task-a", "", at)},
			{ID: doomed.ID, Transition: model.Starting("task-b", "", at)},
		})
		var illegal *model.IllegalTransition
		require.ErrorAs(t, err, &illegal)

		// The first transition must have rolled back with the second.
		got, err := store.GetJob(ctx, healthy.ID)
		require.NoError(t, err)
		require.Equal(t, model.JobQueued, got.State)
		require.Empty(t, got.TaskID)
	})
}

func TestRevertToQueued(t *testing.T) {
	testutil.WithStoreDB(t, nil, func(ctx context.Context, store *data.Store) {
		owner := seedOwner(ctx, t, store)
		seedApplication(ctx, t, store, "batch", owner)

		job := testutil.NewQueuedJob("batch").Build()
		require.NoError(t, store.SafeAddJob(ctx, job))

		at := testutil.TestTime()
		_, err := store.UpdateJob(ctx, job.ID, model.Starting("task-1", "http://agent", at))
		require.NoError(t, err)

		require.NoError(t, store.RevertToQueued(ctx, job.ID))
		got, err := store.GetJob(ctx, job.ID)
		require.NoError(t, err)
		require.Equal(t, model.JobQueued, got.State)
		require.Empty(t, got.TaskID)
		require.Empty(t, got.Started)

		// Once a status update moved the job past STARTING the revert is a no-op.
		_, err = store.UpdateJob(ctx, job.ID, model.Starting("task-2", "", at))
		require.NoError(t, err)
		_, err = store.UpdateJob(ctx, job.ID, model.Started(at))
		require.NoError(t, err)
		require.NoError(t, store.RevertToQueued(ctx, job.ID))
		got, err = store.GetJob(ctx, job.ID)
		require.NoError(t, err)
		require.Equal(t, model.JobStarted, got.State)
		require.Equal(t, "task-2", got.TaskID)

		err = store.RevertToQueued(ctx, 9999)
		require.ErrorIs(t, err, data.ErrJobNotFound)
	})
}

func TestFindFitStopsAtFirstMisfit(t *testing.T) {
	testutil.WithStoreDB(t, nil, func(ctx context.Context, store *data.Store) {
		owner := seedOwner(ctx, t, store)
		seedApplication(ctx, t, store, "batch", owner)

		small := testutil.NewQueuedJob("batch").WithResources(1, 128).Build()
		require.NoError(t, store.SafeAddJob(ctx, small))
		large := testutil.NewQueuedJob("batch").WithResources(8, 4096).Build()
		require.NoError(t, store.SafeAddJob(ctx, large))
		alsoSmall := testutil.NewQueuedJob("batch").WithResources(1, 128).Build()
		require.NoError(t, store.SafeAddJob(ctx, alsoSmall))

		// The later small job fits, but the scan must not leapfrog the
		// large one.
		fit, err := store.FindFit(ctx, []string{"id"}, 4, 2048)
		require.NoError(t, err)
		require.Len(t, fit, 1)
		require.Equal(t, small.ID, fit[0].ID)

		fit, err = store.FindFit(ctx, []string{"id"}, 16, 8192)
		require.NoError(t, err)
		require.Len(t, fit, 3)
	})
}

func TestFindFitOrderAndValidation(t *testing.T) {
	testutil.WithStoreDB(t, nil, func(ctx context.Context, store *data.Store) {
		owner := seedOwner(ctx, t, store)
		seedApplication(ctx, t, store, "batch", owner)

		low := testutil.NewQueuedJob("batch").WithPriority(10).Build()
		require.NoError(t, store.SafeAddJob(ctx, low))
		urgent := testutil.NewQueuedJob("batch").WithPriority(1).Build()
		require.NoError(t, store.SafeAddJob(ctx, urgent))

		fit, err := store.FindFit(ctx, []string{"priority", "id"}, 16, 8192)
		require.NoError(t, err)
		require.Len(t, fit, 2)
		require.Equal(t, urgent.ID, fit[0].ID)

		_, err = store.FindFit(ctx, nil, 1, 1)
		require.True(t, apperrors.IsValidation(err))
		_, err = store.FindFit(ctx, []string{"finished"}, 1, 1)
		require.True(t, apperrors.IsValidation(err))
		_, err = store.FindFit(ctx, []string{"id", "id"}, 1, 1)
		require.True(t, apperrors.IsValidation(err))
	})
}

func TestListJobsAndCounts(t *testing.T) {
	testutil.WithStoreDB(t, nil, func(ctx context.Context, store *data.Store) {
		owner := seedOwner(ctx, t, store)
		other := seedOwner(ctx, t, store)
		seedApplication(ctx, t, store, "mine", owner)
		seedApplication(ctx, t, store, "theirs", other)

		tagged := testutil.NewQueuedJob("mine").WithTags("nightly").Build()
		require.NoError(t, store.SafeAddJob(ctx, tagged))
		plain := testutil.NewQueuedJob("mine").Build()
		require.NoError(t, store.SafeAddJob(ctx, plain))
		foreign := testutil.NewQueuedJob("theirs").Build()
		require.NoError(t, store.SafeAddJob(ctx, foreign))

		mine, err := store.ListJobs(ctx, data.ListJobsQuery{
			Owner: owner, State: model.JobQueued, Limit: 10,
		})
		require.NoError(t, err)
		require.Len(t, mine, 2)
		// Newest first.
		require.Equal(t, plain.ID, mine[0].ID)

		nightly, err := store.ListJobs(ctx, data.ListJobsQuery{
			Owner: owner, State: model.JobQueued, Tag: "nightly", Limit: 10,
		})
		require.NoError(t, err)
		require.Len(t, nightly, 1)
		require.Equal(t, tagged.ID, nightly[0].ID)

		queued, err := store.CountQueued(ctx)
		require.NoError(t, err)
		require.Equal(t, 3, queued)

		at := testutil.TestTime()
		_, err = store.UpdateJob(ctx, plain.ID, model.Starting("task-1", "", at))
		require.NoError(t, err)

		running, err := store.CountRunning(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, running)

		live, err := store.GetRunning(ctx)
		require.NoError(t, err)
		require.Len(t, live, 1)
		require.Equal(t, plain.ID, live[0].ID)

		queuedJobs, err := store.Queued(ctx, 10)
		require.NoError(t, err)
		require.Len(t, queuedJobs, 2)
		require.Equal(t, tagged.ID, queuedJobs[0].ID)
	})
}

func TestFinishedJobsRange(t *testing.T) {
	testutil.WithStoreDB(t, nil, func(ctx context.Context, store *data.Store) {
		owner := seedOwner(ctx, t, store)
		seedApplication(ctx, t, store, "batch", owner)

		base := testutil.TestTime()
		var ids []int
		for i := 0; i < 3; i++ {
			job := testutil.NewQueuedJob("batch").Build()
			require.NoError(t, store.SafeAddJob(ctx, job))
			_, err := store.UpdateJob(ctx, job.ID, model.Starting(taskIDFor(job.ID), "", base))
			require.NoError(t, err)
			_, err = store.UpdateJob(ctx, job.ID, model.Finished(base.Add(time.Duration(i)*time.Hour), 0))
			require.NoError(t, err)
			ids = append(ids, job.ID)
		}

		// Half-open: the job finishing exactly at the end bound is excluded.
		got, err := store.FinishedJobs(ctx,
			model.Timestamp(base), model.Timestamp(base.Add(2*time.Hour)))
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.ElementsMatch(t,
			[]int{ids[0], ids[1]},
			[]int{got[0].ID, got[1].ID})
	})
}

func TestDeleteOldJobs(t *testing.T) {
	now := testutil.TestTime()
	clock := data.NewFixedTimeProvider(now)
	testutil.WithStoreDB(t, clock, func(ctx context.Context, store *data.Store) {
		owner := seedOwner(ctx, t, store)
		seedApplication(ctx, t, store, "batch", owner)

		stale := now.Add(-10 * 24 * time.Hour)
		fresh := now.Add(-time.Hour)

		finishAt := func(at time.Time) int {
			job := testutil.NewQueuedJob("batch").Build()
			require.NoError(t, store.SafeAddJob(ctx, job))
			_, err := store.UpdateJob(ctx, job.ID, model.Starting(taskIDFor(job.ID), "", at))
			require.NoError(t, err)
			_, err = store.UpdateJob(ctx, job.ID, model.Finished(at, 0))
			require.NoError(t, err)
			return job.ID
		}

		oldFinished := finishAt(stale)
		recentFinished := finishAt(fresh)

		killedJob := testutil.NewQueuedJob("batch").Build()
		require.NoError(t, store.SafeAddJob(ctx, killedJob))
		_, err := store.UpdateJob(ctx, killedJob.ID, model.Killed(stale, "cancelled"))
		require.NoError(t, err)

		queuedJob := testutil.NewQueuedJob("batch").Build()
		require.NoError(t, store.SafeAddJob(ctx, queuedJob))

		_, err = store.DeleteOldJobs(ctx, 0, 10)
		require.True(t, apperrors.IsValidation(err))

		deleted, err := store.DeleteOldJobs(ctx, 7*24*time.Hour, 10)
		require.NoError(t, err)
		require.EqualValues(t, 2, deleted)

		gone, err := store.GetJob(ctx, oldFinished)
		require.NoError(t, err)
		require.Nil(t, gone)
		gone, err = store.GetJob(ctx, killedJob.ID)
		require.NoError(t, err)
		require.Nil(t, gone)

		kept, err := store.GetJob(ctx, recentFinished)
		require.NoError(t, err)
		require.NotNil(t, kept)
		kept, err = store.GetJob(ctx, queuedJob.ID)
		require.NoError(t, err)
		require.NotNil(t, kept)

		// A second sweep has nothing left to do.
		deleted, err = store.DeleteOldJobs(ctx, 7*24*time.Hour, 10)
		require.NoError(t, err)
		require.Zero(t, deleted)
	})
}

func TestDeleteOldJobsHonoursBatchSize(t *testing.T) {
	now := testutil.TestTime()
	clock := data.NewFixedTimeProvider(now)
	testutil.WithStoreDB(t, clock, func(ctx context.Context, store *data.Store) {
		owner := seedOwner(ctx, t, store)
		seedApplication(ctx, t, store, "batch", owner)

		stale := now.Add(-10 * 24 * time.Hour)
		for i := 0; i < 5; i++ {
			job := testutil.NewQueuedJob("batch").Build()
			require.NoError(t, store.SafeAddJob(ctx, job))
			_, err := store.UpdateJob(ctx, job.ID, model.Starting(taskIDFor(job.ID), "", stale))
			require.NoError(t, err)
			_, err = store.UpdateJob(ctx, job.ID, model.Finished(stale, 0))
			require.NoError(t, err)
		}

		deleted, err := store.DeleteOldJobs(ctx, 24*time.Hour, 2)
		require.NoError(t, err)
		require.EqualValues(t, 2, deleted)

		remaining, err := store.CountJobs(ctx)
		require.NoError(t, err)
		require.Equal(t, 3, remaining)
	})
}

func TestGetAppJob(t *testing.T) {
	testutil.WithStoreDB(t, nil, func(ctx context.Context, store *data.Store) {
		owner := seedOwner(ctx, t, store)
		seedApplication(ctx, t, store, "batch", owner)

		job := testutil.NewQueuedJob("batch").Build()
		require.NoError(t, store.SafeAddJob(ctx, job))

		app, got, err := store.GetAppJob(ctx, job.ID)
		require.NoError(t, err)
		require.NotNil(t, app)
		require.NotNil(t, got)
		require.Equal(t, "batch", app.Appid)
		require.Equal(t, job.ID, got.ID)

		app, got, err = store.GetAppJob(ctx, 9999)
		require.NoError(t, err)
		require.Nil(t, app)
		require.Nil(t, got)
	})
}
