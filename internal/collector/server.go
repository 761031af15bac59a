package collector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/tracebeacon/internal/adapters/metrics"
	"github.com/bft-labs/tracebeacon/internal/domain"
	"github.com/bft-labs/tracebeacon/internal/ports"
)

// ShutdownTimeout bounds graceful shutdown of the collector.
const ShutdownTimeout = 5 * time.Second

// Config contains configuration for the dev collector.
type Config struct {
	// Addr is the listen address, e.g. ":8787".
	Addr string

	// BeaconPath is where batches are accepted.
	BeaconPath string
}

// Server is a development beacon that logs what it receives.
type Server struct {
	config  Config
	logger  ports.Logger
	metrics *metrics.Metrics
	handler http.Handler
}

// NewServer creates a collector server.
func NewServer(config Config, logger ports.Logger, m *metrics.Metrics, onEvent func(domain.Event)) *Server {
	if config.BeaconPath == "" {
		config.BeaconPath = "/beacon"
	}

	mux := http.NewServeMux()
	mux.Handle(config.BeaconPath, NewHandler(logger, m, onEvent))
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return &Server{config: config, logger: logger, metrics: m, handler: mux}
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler { return s.handler }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("collector listening",
			ports.String("addr", ln.Addr().String()),
			ports.String("beacon_path", s.config.BeaconPath),
		)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
