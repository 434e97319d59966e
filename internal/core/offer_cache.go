package core

import (
	"context"
	"sync"

	"github.com/retzproject/retz/internal/domain/model"
)

// MemoryOfferCache is the in-process snapshot cache used when the dispatcher
// and the reporter share a process.
type MemoryOfferCache struct {
	mu   sync.RWMutex
	snap model.OfferSnapshot
	set  bool
}

// NewMemoryOfferCache returns an empty cache.
func NewMemoryOfferCache() *MemoryOfferCache {
	return &MemoryOfferCache{}
}

func (c *MemoryOfferCache) Put(_ context.Context, snap model.OfferSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = snap
	c.set = true
	return nil
}

func (c *MemoryOfferCache) Get(_ context.Context) (model.OfferSnapshot, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap, c.set, nil
}
