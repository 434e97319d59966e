package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retzproject/retz/config"
)

type stubRetentionStore struct {
	batches []int64
	calls   int
	err     error

	leeway    time.Duration
	batchSize int
}

func (s *stubRetentionStore) DeleteOldJobs(_ context.Context, leeway time.Duration, batchSize int) (int64, error) {
	s.leeway = leeway
	s.batchSize = batchSize
	if s.err != nil {
		return 0, s.err
	}
	if s.calls >= len(s.batches) {
		return 0, nil
	}
	n := s.batches[s.calls]
	s.calls++
	return n, nil
}

func TestSweepDrainsBatches(t *testing.T) {
	store := &stubRetentionStore{batches: []int64{1000, 1000, 37}}
	svc, err := NewRetentionService(RetentionServiceOptions{
		Store: store,
		Config: config.RetentionConfig{
			Interval:  5 * time.Minute,
			Leeway:    168 * time.Hour,
			BatchSize: 1000,
		},
	})
	require.NoError(t, err)

	deleted, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2037), deleted)
	assert.Equal(t, 168*time.Hour, store.leeway)
	assert.Equal(t, 1000, store.batchSize)
	// Three productive passes plus the empty one that ends the sweep.
	assert.Equal(t, 3, store.calls)
}

func TestSweepPropagatesStoreError(t *testing.T) {
	store := &stubRetentionStore{err: errors.New("lock timeout")}
	svc, err := NewRetentionService(RetentionServiceOptions{
		Store:  store,
		Config: config.RetentionConfig{Interval: time.Minute, Leeway: time.Hour, BatchSize: 10},
	})
	require.NoError(t, err)

	_, err = svc.Sweep(context.Background())
	require.Error(t, err)
}

func TestNewRetentionServiceRequiresStore(t *testing.T) {
	_, err := NewRetentionService(RetentionServiceOptions{})
	require.Error(t, err)
}
