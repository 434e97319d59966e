// Package metrics defines the scheduler's standardised metric emission
// helpers on top of the statsd sink.
package metrics

import (
	"time"

	obserrors "github.com/retzproject/retz/internal/observability/errors"
	"github.com/retzproject/retz/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// TransitionMetric captures one job lifecycle event for emission.
type TransitionMetric struct {
	Transition string
	Result     string
	Err        error
}

// EmitTransition emits a job lifecycle counter.
func EmitTransition(sink statsd.Sink, in TransitionMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"transition": in.Transition,
		"result":     in.Result,
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}
	sink.Count("job.transition", 1, tags)
}

// OfferMetric captures one offer round for emission.
type OfferMetric struct {
	Offers   int
	Launched int
	Declined int
	Elapsed  time.Duration
}

// EmitOfferRound emits dispatcher planning metrics for one batch of offers.
func EmitOfferRound(sink statsd.Sink, in OfferMetric) {
	if sink == nil {
		return
	}
	sink.Count("dispatcher.offers", int64(in.Offers), nil)
	sink.Count("dispatcher.launched", int64(in.Launched), nil)
	sink.Count("dispatcher.declined", int64(in.Declined), nil)
	if in.Elapsed > 0 {
		sink.Timing("dispatcher.plan_duration", in.Elapsed, nil)
	}
}

// EmitRetention emits a retention sweep counter.
func EmitRetention(sink statsd.Sink, deleted int64, err error) {
	if sink == nil {
		return
	}

	result := ResultSuccess
	if err != nil {
		result = ResultError
	} else if deleted == 0 {
		result = ResultNoop
	}

	tags := map[string]string{"result": result}
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}
	sink.Count("retention.sweep", 1, tags)
	if err == nil && deleted > 0 {
		sink.Count("retention.deleted", deleted, CloneTags(tags))
	}
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
