// Package httpx serves the scheduler's external status surface: GET /ping
// for liveness probes and GET /status for the aggregate cluster report. The
// job and application API is served elsewhere; this package stays minimal.
package httpx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/retzproject/retz/config"
	"github.com/retzproject/retz/internal/service"
)

const pingResponse = "OK"

// ServerOptions groups dependencies for Server.
type ServerOptions struct {
	Status *service.StatusService // Required: report source for GET /status
	Config config.HTTPConfig
	Logger *slog.Logger // Optional: structured logger
}

// Server is the status endpoint HTTP server.
type Server struct {
	status *service.StatusService
	config config.HTTPConfig
	logger *slog.Logger
}

// NewServer constructs a Server.
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Status == nil {
		return nil, errors.New("StatusService is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "http")
	}

	return &Server{
		status: opts.Status,
		config: opts.Config,
		logger: logger,
	}, nil
}

// Routes returns the handler tree.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", s.handlePing)
	mux.HandleFunc("GET /status", s.handleStatus)
	return mux
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, pingResponse); err != nil {
		return
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report, err := s.status.Report(r.Context())
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(r.Context(), "status report failed", "error", err)
		}
		WriteError(w, http.StatusInternalServerError, errors.New("status unavailable"))
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if s.logger != nil {
			s.logger.Info("http server listening", "addr", s.config.Addr)
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
