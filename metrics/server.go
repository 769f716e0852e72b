package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultAddress is the registered Prometheus exporter port for AMQP.
const DefaultAddress = ":9419"

// Server provides an HTTP server for Prometheus metrics
type Server struct {
	httpServer *http.Server
}

// NewServer creates a metrics HTTP server on address exposing gatherer. A nil
// gatherer uses prometheus.DefaultGatherer.
func NewServer(address string, gatherer prometheus.Gatherer) *Server {
	if address == "" {
		address = DefaultAddress
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         address,
			Handler:      Handler(gatherer),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Handler serves /metrics and /health.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return mux
}

// Start serves until Stop is called. It returns http.ErrServerClosed after a
// graceful stop.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Stop gracefully stops the metrics HTTP server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Address returns the configured listen address
func (s *Server) Address() string {
	return s.httpServer.Addr
}
