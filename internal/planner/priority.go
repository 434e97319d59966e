package planner

import "github.com/retzproject/retz/internal/domain/model"

// NamePriority selects the priority strategy.
const NamePriority = "priority"

// Priority runs lower-priority-value jobs first, falling back to submission
// order within the same priority.
type Priority struct{}

func (Priority) Name() string { return NamePriority }

func (Priority) OrderBy() []string { return []string{"priority", "id"} }

func (Priority) Plan(offers []model.Offer, jobs []*model.Job, maxStock int) Plan {
	return packFirstFit(offers, jobs, maxStock)
}
