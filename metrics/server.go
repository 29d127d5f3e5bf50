package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	svr    *http.Server
	logger *zap.Logger
}

// Start serves the default Prometheus registry on addr in the background.
func Start(addr string, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	svr := &Server{
		svr: &http.Server{
			Handler:           mux,
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}

	go svr.start()

	return svr
}

func (s *Server) start() {
	s.logger.Info("Metrics server is starting", zap.String("addr", s.svr.Addr))
	if err := s.svr.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Info("Metrics server stopped", zap.Error(err))
	}
}

// Stop shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	// use a fresh context, the caller's is usually already cancelled
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.svr.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Failed to stop metrics server", zap.Error(err))
	}
}
