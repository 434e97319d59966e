// Package config holds the environment-driven configuration for the retz
// scheduler. Values load from RETZ_-prefixed environment variables via
// github.com/caarlos0/env; Sanitize applies guardrails after loading.
package config

// AppConfig composes the per-domain configuration structs. See the domain
// files for the available environment variables:
//   - database.go: PostgreSQL and redis configuration
//   - services.go: service modes, planner, retention
//   - http.go: status endpoint configuration
//   - observability.go: StatsD metrics
type AppConfig struct {
	// IsDev loosens a few guardrails for local development.
	IsDev bool `env:"DEV" envDefault:"false"`

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// Services is a comma-delimited list of enabled services.
	// Valid values: dispatcher, retention, http. The dispatcher additionally
	// needs a ResourceBroker driver wired in at startup.
	Services string `env:"SERVICES" envDefault:"retention,http"`

	Scheduler SchedulerConfig
	Retention RetentionConfig
	HTTP      HTTPConfig

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
func (c *AppConfig) Sanitize() {
	c.Scheduler.Sanitize()
	c.Retention.Sanitize()
	c.HTTP.Sanitize()
	c.Observability.Sanitize()
}

// GetEnabledServices parses the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsDispatcherEnabled returns true if the dispatcher service is enabled.
func (c *AppConfig) IsDispatcherEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeDispatcher]
}

// IsRetentionEnabled returns true if the retention sweep is enabled.
func (c *AppConfig) IsRetentionEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeRetention]
}

// IsHTTPServerEnabled returns true if the status endpoint is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeHTTP]
}
