package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retzproject/retz/internal/core"
	"github.com/retzproject/retz/internal/domain/model"
)

type stubStatusStore struct {
	queued  int
	running []*model.Job
	err     error
}

func (s *stubStatusStore) CountQueued(context.Context) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.queued, nil
}

func (s *stubStatusStore) CountRunning(context.Context) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	return len(s.running), nil
}

func (s *stubStatusStore) GetRunning(context.Context) ([]*model.Job, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.running, nil
}

func TestStatusReport(t *testing.T) {
	running := []*model.Job{
		{ID: 1, State: model.JobStarted, Resources: model.ResourceQuantity{CPU: 2, MemMB: 1024}},
		{ID: 2, State: model.JobStarting, Resources: model.ResourceQuantity{CPU: 1, MemMB: 512}},
	}
	cache := core.NewMemoryOfferCache()
	require.NoError(t, cache.Put(context.Background(), model.OfferSnapshot{
		Count:        3,
		NumAgents:    2,
		TotalOffered: model.ResourceQuantity{CPU: 12, MemMB: 8192},
	}))

	svc, err := NewStatusService(StatusServiceOptions{
		Store:      &stubStatusStore{queued: 5, running: running},
		OfferCache: cache,
		Version:    "0.7.0",
	})
	require.NoError(t, err)

	report, err := svc.Report(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, report.QueueLength)
	assert.Equal(t, 2, report.RunningLength)
	assert.Equal(t, 3, report.TotalUsed.CPU)
	assert.Equal(t, 1536, report.TotalUsed.MemMB)
	assert.Equal(t, 3, report.Offers)
	assert.Equal(t, 2, report.NumSlaves)
	assert.Equal(t, 12, report.TotalOffered.CPU)
	assert.Equal(t, "0.7.0", report.Version)
}

func TestStatusReportWithoutSnapshot(t *testing.T) {
	svc, err := NewStatusService(StatusServiceOptions{
		Store:      &stubStatusStore{queued: 1},
		OfferCache: core.NewMemoryOfferCache(),
	})
	require.NoError(t, err)

	report, err := svc.Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.QueueLength)
	assert.Zero(t, report.Offers)
	assert.Zero(t, report.NumSlaves)
}

func TestStatusReportStoreError(t *testing.T) {
	svc, err := NewStatusService(StatusServiceOptions{
		Store: &stubStatusStore{err: errors.New("connection refused")},
	})
	require.NoError(t, err)

	_, err = svc.Report(context.Background())
	require.Error(t, err)
}
