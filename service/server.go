package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/kvdb"
	"go.uber.org/zap"

	"github.com/er-state/vrf-consumer/config"
	"github.com/er-state/vrf-consumer/metrics"
)

const apiShutdownTimeout = 5 * time.Second

// Server is the main daemon construct for vrfcd. It handles spinning up the
// HTTP API, the metrics server, the database, and the app.
type Server struct {
	started int32

	cfg    *config.Config
	logger *zap.Logger

	app *VrfConsumerApp
	db  kvdb.Backend
}

// NewVrfConsumerServer creates a new server with the given config.
func NewVrfConsumerServer(cfg *config.Config, l *zap.Logger, app *VrfConsumerApp, db kvdb.Backend) *Server {
	return &Server{
		cfg:    cfg,
		logger: l,
		app:    app,
		db:     db,
	}
}

// RunUntilShutdown runs the main vrfcd server loop until a signal is received
// to shut down the process.
func (s *Server) RunUntilShutdown(ctx context.Context) error {
	if atomic.AddInt32(&s.started, 1) != 1 {
		return nil
	}

	// Start the metrics server.
	promAddr, err := s.cfg.Metrics.Address()
	if err != nil {
		return fmt.Errorf("failed to get prometheus address: %w", err)
	}
	metricsServer := metrics.Start(promAddr, s.logger)

	defer func() {
		s.logger.Info("Shutdown complete")
	}()

	defer func() {
		s.logger.Info("Closing database...")
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database", zap.Error(err))
		} else {
			s.logger.Info("Database closed")
		}
		metricsServer.Stop(ctx)
		s.logger.Info("Metrics server stopped")
	}()

	if err := s.app.Start(); err != nil {
		return fmt.Errorf("failed to start the app: %w", err)
	}
	defer func() {
		if err := s.app.Stop(); err != nil {
			s.logger.Error("Failed to stop the app", zap.Error(err))
		}
	}()

	lis, err := net.Listen("tcp", s.cfg.RPCListener)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.RPCListener, err)
	}

	apiServer := &http.Server{
		Handler:           NewAPIRouter(s.app, s.logger),
		ReadHeaderTimeout: apiShutdownTimeout,
	}
	go func() {
		s.logger.Info("API server listening", zap.String("address", lis.Addr().String()))
		if err := apiServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), apiShutdownTimeout)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shut down the API server", zap.Error(err))
		}
	}()

	s.logger.Info("vrfcd is fully active!")

	// Wait for shutdown signal from either a graceful server stop or from
	// the interrupt handler.
	<-ctx.Done()

	return nil
}
