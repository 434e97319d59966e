package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retzproject/retz/internal/domain/model"
)

func job(id int, cpu, memMB int) *model.Job {
	j := model.NewJob("app1", "", "echo hi", model.ResourceQuantity{CPU: cpu, MemMB: memMB})
	j.ID = id
	return j
}

func offer(id string, cpu, memMB int) model.Offer {
	return model.Offer{ID: id, AgentID: "agent-" + id, Resources: model.ResourceQuantity{CPU: cpu, MemMB: memMB}}
}

func TestNew(t *testing.T) {
	t.Run("fifo", func(t *testing.T) {
		p, ok := New("fifo")
		require.True(t, ok)
		assert.Equal(t, []string{"id"}, p.OrderBy())
	})

	t.Run("priority", func(t *testing.T) {
		p, ok := New("priority")
		require.True(t, ok)
		assert.Equal(t, []string{"priority", "id"}, p.OrderBy())
	})

	t.Run("unknown", func(t *testing.T) {
		_, ok := New("fair-share")
		assert.False(t, ok)
	})
}

func TestPlanFirstFit(t *testing.T) {
	t.Run("single offer takes jobs until full", func(t *testing.T) {
		offers := []model.Offer{offer("o1", 4, 4096)}
		jobs := []*model.Job{job(1, 2, 1024), job(2, 2, 1024), job(3, 2, 1024)}

		plan := FIFO{}.Plan(offers, jobs, 0)

		require.Len(t, plan.Launches, 2)
		assert.Equal(t, 1, plan.Launches[0].Job.ID)
		assert.Equal(t, "o1", plan.Launches[0].OfferID)
		assert.Equal(t, 2, plan.Launches[1].Job.ID)
		assert.Empty(t, plan.ToDecline)
	})

	t.Run("overflow moves to the next offer", func(t *testing.T) {
		offers := []model.Offer{offer("o1", 2, 2048), offer("o2", 4, 4096)}
		jobs := []*model.Job{job(1, 2, 2048), job(2, 3, 1024)}

		plan := FIFO{}.Plan(offers, jobs, 0)

		require.Len(t, plan.Launches, 2)
		assert.Equal(t, "o1", plan.Launches[0].OfferID)
		assert.Equal(t, "o2", plan.Launches[1].OfferID)
	})

	t.Run("job fitting nowhere is skipped", func(t *testing.T) {
		offers := []model.Offer{offer("o1", 2, 2048)}
		jobs := []*model.Job{job(1, 8, 1024), job(2, 1, 512)}

		plan := FIFO{}.Plan(offers, jobs, 0)

		require.Len(t, plan.Launches, 1)
		assert.Equal(t, 2, plan.Launches[0].Job.ID)
	})

	t.Run("memory binds even when cpu is free", func(t *testing.T) {
		offers := []model.Offer{offer("o1", 16, 1024)}
		jobs := []*model.Job{job(1, 1, 2048)}

		plan := FIFO{}.Plan(offers, jobs, 0)

		assert.Empty(t, plan.Launches)
		assert.Equal(t, []string{"o1"}, plan.ToDecline)
	})

	t.Run("no offers", func(t *testing.T) {
		plan := FIFO{}.Plan(nil, []*model.Job{job(1, 1, 512)}, 0)
		assert.Empty(t, plan.Launches)
		assert.Empty(t, plan.ToDecline)
	})

	t.Run("no jobs declines everything beyond the stock", func(t *testing.T) {
		offers := []model.Offer{offer("o1", 1, 512), offer("o2", 1, 512), offer("o3", 1, 512)}

		plan := FIFO{}.Plan(offers, nil, 1)

		assert.Empty(t, plan.Launches)
		assert.Equal(t, []string{"o2", "o3"}, plan.ToDecline)
	})
}

func TestPlanStocking(t *testing.T) {
	offers := []model.Offer{offer("o1", 4, 4096), offer("o2", 4, 4096), offer("o3", 4, 4096)}
	jobs := []*model.Job{job(1, 4, 4096)}

	plan := Priority{}.Plan(offers, jobs, 1)

	require.Len(t, plan.Launches, 1)
	assert.Equal(t, "o1", plan.Launches[0].OfferID)
	// o2 is stocked, o3 declined.
	assert.Equal(t, []string{"o3"}, plan.ToDecline)
}
