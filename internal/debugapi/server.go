// Package debugapi exposes an unauthenticated, loopback-friendly HTTP
// surface for health checks and Prometheus scraping. It carries none of the
// public API surface of a production server, only operational visibility.
package debugapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/atcfusion/engine/internal/metrics"
)

// Server is the debug HTTP server.
type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// Options configures the debug server.
type Options struct {
	Addr               string
	Poller             PollerStatus // nil disables the surveillance health check
	Pool               metrics.PoolStatter
	Correlator         metrics.CorrelatorStatter
	SubscriberCount    func() int
	CorrelationEnabled bool
	Version            string
	StartTime          time.Time
	Log                zerolog.Logger
}

// New builds a debug server. Call Start to begin listening.
func New(opts Options) *Server {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(recoverer)
	r.Use(logger(opts.Log))
	r.Use(metrics.InstrumentHandler)

	health := NewHealthHandler(opts.Poller, opts.CorrelationEnabled, opts.Version, opts.StartTime)
	r.Get("/healthz", health.ServeHTTP)

	collector := metrics.NewCollector(opts.Pool, opts.Correlator, opts.SubscriberCount)
	prometheus.MustRegister(collector)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return &Server{
		http: &http.Server{
			Addr:         opts.Addr,
			Handler:      r,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		log: opts.Log.With().Str("component", "debugapi").Logger(),
	}
}

// Start blocks serving HTTP until the server is shut down.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("debug http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("debug http server shutting down")
	return s.http.Shutdown(ctx)
}
