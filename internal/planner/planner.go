// Package planner decides which queued jobs run on which offers. Planners are
// pure: they read the candidate jobs and the current offers and return a
// Plan, touching neither the database nor the broker.
package planner

import (
	"github.com/retzproject/retz/internal/domain/model"
)

// Launch assigns one job to one offer.
type Launch struct {
	Job     *model.Job
	OfferID string
}

// Plan is the outcome of a planning pass. Offers that are neither launched
// against nor listed in ToDecline are stocked for the next pass.
type Plan struct {
	Launches  []Launch
	ToDecline []string
}

// Planner orders the queue and packs jobs onto offers.
type Planner interface {
	// Name identifies the strategy in logs and config.
	Name() string
	// OrderBy returns the queue ordering columns, most significant first.
	// The store sorts candidates by these before they reach Plan.
	OrderBy() []string
	// Plan packs jobs onto offers first-fit in the given order. Up to
	// maxStock unused offers are held back; the rest are declined.
	Plan(offers []model.Offer, jobs []*model.Job, maxStock int) Plan
}

// New returns the planner registered under the given name.
func New(name string) (Planner, bool) {
	switch name {
	case NameFIFO:
		return FIFO{}, true
	case NamePriority:
		return Priority{}, true
	default:
		return nil, false
	}
}

// packFirstFit is the packing pass shared by all strategies. Jobs arrive
// already ordered; each takes the first offer with enough remaining room.
// A job that fits nowhere is skipped, not launched partially.
func packFirstFit(offers []model.Offer, jobs []*model.Job, maxStock int) Plan {
	remaining := make([]model.ResourceQuantity, len(offers))
	used := make([]bool, len(offers))
	for i, o := range offers {
		remaining[i] = o.Resources
	}

	var plan Plan
	for _, job := range jobs {
		for i := range offers {
			if !job.Resources.Fits(remaining[i]) {
				continue
			}
			remaining[i].Sub(job.Resources)
			used[i] = true
			plan.Launches = append(plan.Launches, Launch{Job: job, OfferID: offers[i].ID})
			break
		}
	}

	stocked := 0
	for i, o := range offers {
		if used[i] {
			continue
		}
		if stocked < maxStock {
			stocked++
			continue
		}
		plan.ToDecline = append(plan.ToDecline, o.ID)
	}
	return plan
}
