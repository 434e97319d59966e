package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeDispatcher runs the offer dispatcher.
	ServiceModeDispatcher ServiceMode = "dispatcher"
	// ServiceModeRetention runs the old-job retention sweep.
	ServiceModeRetention ServiceMode = "retention"
	// ServiceModeHTTP runs the status endpoint.
	ServiceModeHTTP ServiceMode = "http"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{ServiceModeDispatcher, ServiceModeRetention, ServiceModeHTTP}
}

// ParseServices parses a comma-delimited string of service names and returns
// the enabled services. Unknown names are an error, not a silent no-op.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeDispatcher, ServiceModeRetention, ServiceModeHTTP:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: dispatcher, retention, http)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// SchedulerConfig contains dispatcher and planner configuration.
type SchedulerConfig struct {
	// Planner selects the queue ordering strategy. Valid values: fifo, priority.
	Planner string `env:"SCHEDULER_PLANNER" envDefault:"fifo"`

	// MaxStock is how many unused offers the dispatcher holds back instead
	// of declining, so small jobs can launch without a fresh offer round-trip.
	MaxStock int `env:"SCHEDULER_MAX_STOCK" envDefault:"0"`

	// RefuseSeconds is the decline filter passed to the broker.
	RefuseSeconds int `env:"SCHEDULER_REFUSE_SECONDS" envDefault:"3"`
}

// Sanitize applies guardrails to scheduler configuration values.
func (s *SchedulerConfig) Sanitize() {
	s.Planner = strings.ToLower(strings.TrimSpace(s.Planner))
	if s.Planner == "" {
		s.Planner = "fifo"
	}
	if s.MaxStock < 0 {
		s.MaxStock = 0
	}
	if s.RefuseSeconds < 0 {
		s.RefuseSeconds = 0
	}
}

// RetentionConfig contains the old-job retention sweep configuration.
type RetentionConfig struct {
	// Interval is the sweep tick interval.
	Interval time.Duration `env:"RETENTION_INTERVAL" envDefault:"5m"`

	// Leeway is how long finished and killed jobs are kept before deletion.
	Leeway time.Duration `env:"RETENTION_LEEWAY" envDefault:"168h"` // 7 days

	// BatchSize is the maximum number of rows deleted per sweep pass.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"RETENTION_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to retention configuration values.
func (r *RetentionConfig) Sanitize() {
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.Leeway < 1*time.Hour {
		r.Leeway = 1 * time.Hour
	}
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
