package planner

import "github.com/retzproject/retz/internal/domain/model"

// NameFIFO selects the submission-order strategy.
const NameFIFO = "fifo"

// FIFO runs jobs strictly in submission order. Job ids are monotonic, so
// ordering by id is ordering by arrival.
type FIFO struct{}

func (FIFO) Name() string { return NameFIFO }

func (FIFO) OrderBy() []string { return []string{"id"} }

func (FIFO) Plan(offers []model.Offer, jobs []*model.Job, maxStock int) Plan {
	return packFirstFit(offers, jobs, maxStock)
}
