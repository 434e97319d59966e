package config

import "time"

// HTTPConfig contains the status endpoint configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":9090"`

	// ReadTimeout and WriteTimeout bound each request.
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT"  envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.Addr == "" {
		h.Addr = ":9090"
	}
	if h.ReadTimeout <= 0 {
		h.ReadTimeout = 5 * time.Second
	}
	if h.WriteTimeout <= 0 {
		h.WriteTimeout = 10 * time.Second
	}
}
