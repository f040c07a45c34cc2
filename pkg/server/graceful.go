// Package server exposes the HTTP surface: health probes, metrics, the
// topology API and the websocket event stream, behind a server with
// graceful shutdown.
package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rfmesh/meshmap/pkg/logging"
)

// ReloadFunc is invoked on SIGHUP
type ReloadFunc func() error

// GracefulServer wraps an HTTP server with signal-driven graceful shutdown
type GracefulServer struct {
	server       *http.Server
	log          logging.Logger
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	reloadMu     sync.RWMutex
	reloadFn     ReloadFunc
}

// NewGracefulServer creates a graceful HTTP server on addr
func NewGracefulServer(addr string, handler http.Handler, log logging.Logger) *GracefulServer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &GracefulServer{
		server: &http.Server{
			Addr:           addr,
			Handler:        handler,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    120 * time.Second,
			MaxHeaderBytes: 1 << 20,
		},
		log:        log,
		shutdownCh: make(chan struct{}),
	}
}

// Start serves until Shutdown is called or a termination signal arrives
func (gs *GracefulServer) Start() error {
	go gs.handleSignals()

	gs.log.Info("http server listening", logging.String("addr", gs.server.Addr))
	if err := gs.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the timeout
func (gs *GracefulServer) Shutdown(timeout time.Duration) error {
	var err error
	gs.shutdownOnce.Do(func() {
		close(gs.shutdownCh)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		gs.log.Info("graceful shutdown started", logging.Duration("timeout", timeout))
		if shutdownErr := gs.server.Shutdown(ctx); shutdownErr != nil {
			err = shutdownErr
			gs.log.Error("shutdown error", logging.Error(shutdownErr))
		} else {
			gs.log.Info("server shutdown complete")
		}
	})
	return err
}

func (gs *GracefulServer) handleSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigCh {
		switch sig {
		case syscall.SIGINT, syscall.SIGTERM:
			gs.log.Info("termination signal received", logging.String("signal", sig.String()))
			if err := gs.Shutdown(30 * time.Second); err != nil {
				os.Exit(1)
			}
			os.Exit(0)

		case syscall.SIGHUP:
			if err := gs.Reload(); err != nil {
				gs.log.Error("reload failed", logging.Error(err))
			}
		}
	}
}

// IsShuttingDown returns true once shutdown has been initiated
func (gs *GracefulServer) IsShuttingDown() bool {
	select {
	case <-gs.shutdownCh:
		return true
	default:
		return false
	}
}

// ShutdownChannel closes when shutdown is initiated
func (gs *GracefulServer) ShutdownChannel() <-chan struct{} {
	return gs.shutdownCh
}

// SetReloadFunc sets the SIGHUP handler
func (gs *GracefulServer) SetReloadFunc(fn ReloadFunc) {
	gs.reloadMu.Lock()
	defer gs.reloadMu.Unlock()
	gs.reloadFn = fn
}

// Reload runs the configured reload function, if any
func (gs *GracefulServer) Reload() error {
	gs.reloadMu.RLock()
	fn := gs.reloadFn
	gs.reloadMu.RUnlock()

	if fn == nil {
		gs.log.Warn("reload requested but no reload function configured")
		return nil
	}
	gs.log.Info("reloading configuration")
	return fn()
}
