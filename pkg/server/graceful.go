// Package server runs the HTTP API with signal-driven draining and reload.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dd0wney/cluso-causalview/pkg/logging"
)

// DefaultShutdownTimeout bounds connection draining on SIGINT/SIGTERM
const DefaultShutdownTimeout = 30 * time.Second

// ConfigReloadFunc re-reads configuration on SIGHUP
type ConfigReloadFunc func() error

// GracefulServer serves one handler until a signal, a cancelled context or
// an explicit Shutdown drains it.
type GracefulServer struct {
	http    *http.Server
	logger  logging.Logger
	timeout atomic.Int64 // time.Duration
	reload  atomic.Pointer[ConfigReloadFunc]
	addr    atomic.Value // string

	stopping chan struct{} // closed when draining begins
	stopped  chan struct{} // closed when draining ends
	once     sync.Once
	err      error
}

// NewGracefulServer prepares a server on addr; nothing listens until Start
func NewGracefulServer(addr string, handler http.Handler, logger logging.Logger) *GracefulServer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	gs := &GracefulServer{
		http: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
			MaxHeaderBytes:    1 << 20,
		},
		logger:   logger.With(logging.Component("server")),
		stopping: make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	gs.timeout.Store(int64(DefaultShutdownTimeout))
	return gs
}

// SetShutdownTimeout sets the drain window used for signals and context
// cancellation. Non-positive values are ignored.
func (gs *GracefulServer) SetShutdownTimeout(d time.Duration) {
	if d > 0 {
		gs.timeout.Store(int64(d))
	}
}

func (gs *GracefulServer) shutdownTimeout() time.Duration {
	return time.Duration(gs.timeout.Load())
}

// Start is Run with a background context
func (gs *GracefulServer) Start() error {
	return gs.Run(context.Background())
}

// Run listens and serves until ctx is done, SIGINT or SIGTERM arrives, or
// Shutdown is called. SIGHUP calls the reload func without interrupting
// service. Run returns after connections have drained.
func (gs *GracefulServer) Run(ctx context.Context) error {
	// Subscribe before Addr is published; callers treat a bound Addr as ready.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signals)

	ln, err := net.Listen("tcp", gs.http.Addr)
	if err != nil {
		return err
	}
	gs.addr.Store(ln.Addr().String())

	serveErr := make(chan error, 1)
	go func() {
		gs.logger.Info("listening", logging.String("addr", gs.Addr()))
		serveErr <- gs.http.Serve(ln)
	}()

	for {
		select {
		case err := <-serveErr:
			if errors.Is(err, http.ErrServerClosed) {
				<-gs.stopped
				return gs.err
			}
			// Serve failed on its own; mark the server stopped so callers
			// waiting on ShutdownChannel are released.
			gs.once.Do(func() {
				close(gs.stopping)
				gs.err = err
				close(gs.stopped)
			})
			return err

		case <-ctx.Done():
			gs.logger.Info("context done, draining", logging.Error(ctx.Err()))
			return gs.Shutdown(gs.shutdownTimeout())

		case <-gs.stopping:
			<-gs.stopped
			return gs.err

		case sig := <-signals:
			if sig == syscall.SIGHUP {
				_ = gs.ReloadConfig()
				continue
			}
			gs.logger.Info("draining on signal", logging.String("signal", sig.String()))
			return gs.Shutdown(gs.shutdownTimeout())
		}
	}
}

// Addr is the bound listen address, or "" before Run has bound it
func (gs *GracefulServer) Addr() string {
	addr, _ := gs.addr.Load().(string)
	return addr
}

// Shutdown stops accepting connections and waits up to timeout for
// in-flight requests. Every call returns the result of the first.
func (gs *GracefulServer) Shutdown(timeout time.Duration) error {
	gs.once.Do(func() {
		close(gs.stopping)
		defer close(gs.stopped)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		start := time.Now()
		if err := gs.http.Shutdown(ctx); err != nil {
			gs.err = err
			gs.logger.Error("drain incomplete", logging.Error(err), logging.Duration("timeout", timeout))
			return
		}
		gs.logger.Info("drained", logging.Latency(time.Since(start)))
	})
	<-gs.stopped
	return gs.err
}

// IsShuttingDown reports whether draining has begun
func (gs *GracefulServer) IsShuttingDown() bool {
	select {
	case <-gs.stopping:
		return true
	default:
		return false
	}
}

// ShutdownChannel is closed when draining begins
func (gs *GracefulServer) ShutdownChannel() <-chan struct{} {
	return gs.stopping
}

// SetConfigReloadFunc installs fn as the SIGHUP handler; nil removes it
func (gs *GracefulServer) SetConfigReloadFunc(fn ConfigReloadFunc) {
	if fn == nil {
		gs.reload.Store(nil)
		return
	}
	gs.reload.Store(&fn)
}

// ReloadConfig runs the reload func. A missing func is logged, not an error.
func (gs *GracefulServer) ReloadConfig() error {
	fn := gs.reload.Load()
	if fn == nil {
		gs.logger.Warn("reload requested with no reload func set")
		return nil
	}

	start := time.Now()
	if err := (*fn)(); err != nil {
		gs.logger.Error("configuration reload failed", logging.Error(err))
		return err
	}
	gs.logger.Info("configuration reloaded", logging.Latency(time.Since(start)))
	return nil
}
