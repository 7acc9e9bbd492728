package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittoweb/internal/httpwire"
	"github.com/marmos91/dittoweb/internal/logger"
	"github.com/marmos91/dittoweb/internal/ratelimiter"
	"github.com/marmos91/dittoweb/pkg/metrics"
	"github.com/marmos91/dittoweb/pkg/store"
)

// Server is the bounded-dispatch HTTP/1.x server.
//
// Architecture:
// One acceptor goroutine takes connections off the listener and attempts a
// non-blocking enqueue into a fixed-capacity queue. A fixed pool of workers
// dequeues connections and runs each one's protocol state machine (see
// conn.go) to completion. When the queue is full the acceptor sheds load:
// the connection gets a synchronous 503 with Retry-After and is closed, never
// buffered. Bounded latency under overload is preferred over unbounded
// queueing.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Listener closed (no new connections)
//  3. shutdownCtx cancelled and queue closed (workers drain and exit)
//  4. Wait for in-flight connections up to ShutdownTimeout
//  5. Force-close any remaining connections after the timeout
//
// Thread safety:
// All methods are safe for concurrent use. Serve should only be called once
// per Server instance.
type Server struct {
	// config holds the immutable server configuration, constructed once at
	// startup. No ambient globals.
	config Config

	// store resolves static resources and persists uploads
	store store.ResourceStore

	// metrics receives dispatcher and per-request counters
	metrics metrics.ServerMetrics

	// limiter optionally caps the accept rate; nil when disabled
	limiter *ratelimiter.RateLimiter

	// queue is the bounded FIFO of pending connections. Capacity is
	// config.QueueSize; the acceptor only ever does a non-blocking send.
	queue chan net.Conn

	// hostPort is the expected Host header value (bind-host:port)
	hostPort string

	listener net.Listener

	// workers tracks worker goroutines; activeConns tracks connections
	// currently being served
	workers     sync.WaitGroup
	activeConns sync.WaitGroup

	// connCount is the number of connections currently held by workers
	connCount atomic.Int32

	// activeConnections maps remote address to net.Conn for forced closure
	// after the shutdown timeout
	activeConnections sync.Map

	// shutdown is closed when shutdown begins; monitored by the acceptor
	// and by every connection loop
	shutdown     chan struct{}
	shutdownOnce sync.Once

	// shutdownCtx is cancelled during shutdown to abort in-flight requests
	shutdownCtx    context.Context
	cancelRequests context.CancelFunc
}

// Config holds the server configuration. Zero values are replaced with
// defaults by applyDefaults; the defaults mirror the documented CLI surface
// (port 8080, host 127.0.0.1, 10 workers, queue of 50).
type Config struct {
	// Host is the bind address. Also the authoritative Host header value:
	// requests whose Host header is not "Host:Port" are rejected with 403.
	Host string `mapstructure:"host"`

	// Port is the TCP port to listen on.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// Workers is the fixed worker pool size. The pool is created once at
	// startup and never resized.
	Workers int `mapstructure:"workers" validate:"min=0"`

	// QueueSize is the dispatch queue capacity. Connections arriving while
	// the queue is full are shed with a 503.
	QueueSize int `mapstructure:"queue_size" validate:"min=0"`

	// IdleTimeout is the maximum wait for the next request's first byte on
	// a kept-alive connection. An elapsed timeout closes the connection
	// silently (the peer is presumed gone).
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"min=0"`

	// WriteTimeout bounds each response write.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0"`

	// ShutdownTimeout is the maximum wait for in-flight connections during
	// graceful shutdown before they are force-closed.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`

	// AcceptRate optionally caps accepted connections per second before
	// they reach the queue (token bucket). 0 disables the limiter.
	AcceptRate uint `mapstructure:"accept_rate"`

	// AcceptBurst is the burst size for AcceptRate. Ignored when
	// AcceptRate is 0; defaults to 2x AcceptRate.
	AcceptBurst uint `mapstructure:"accept_burst"`

	// DefaultResource is the resource served for the empty path "/".
	DefaultResource string `mapstructure:"default_resource"`
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.Workers <= 0 {
		c.Workers = 10
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 50
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = httpwire.KeepAliveTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.AcceptRate > 0 && c.AcceptBurst == 0 {
		c.AcceptBurst = c.AcceptRate * 2
	}
	if c.DefaultResource == "" {
		c.DefaultResource = "index.html"
	}
}

func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.Workers < 0 {
		return fmt.Errorf("invalid Workers %d: must be >= 0", c.Workers)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("invalid QueueSize %d: must be >= 0", c.QueueSize)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("invalid IdleTimeout %v: must be >= 0", c.IdleTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	return nil
}

// New creates a Server with the given configuration and resource store.
//
// Zero config values are replaced with defaults; an invalid configuration
// panics (programmer error). Pass nil serverMetrics to disable metrics.
func New(config Config, resources store.ResourceStore, serverMetrics metrics.ServerMetrics) *Server {
	config.applyDefaults()

	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid server config: %v", err))
	}
	if resources == nil {
		panic("resource store cannot be nil")
	}
	if serverMetrics == nil {
		serverMetrics = metrics.Noop{}
	}

	var limiter *ratelimiter.RateLimiter
	if config.AcceptRate > 0 {
		limiter = ratelimiter.New(config.AcceptRate, config.AcceptBurst)
		logger.Debug("Accept rate limit: %d/s (burst %d)", config.AcceptRate, config.AcceptBurst)
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	return &Server{
		config:         config,
		store:          resources,
		metrics:        serverMetrics,
		limiter:        limiter,
		queue:          make(chan net.Conn, config.QueueSize),
		hostPort:       fmt.Sprintf("%s:%d", config.Host, config.Port),
		shutdown:       make(chan struct{}),
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
	}
}

// HostPort returns the bind-host:port string requests must carry in Host.
func (s *Server) HostPort() string {
	return s.hostPort
}

// Serve starts the worker pool and the acceptor loop, blocking until the
// context is cancelled or the listener fails.
//
// Returns nil on graceful shutdown, or an error if the listener could not be
// created or connections had to be force-closed.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.hostPort)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.hostPort, err)
	}
	s.listener = listener

	logger.Info("HTTP server started on http://%s", s.hostPort)
	logger.Info("Thread pool size: %d, queue capacity: %d", s.config.Workers, s.config.QueueSize)

	for i := 1; i <= s.config.Workers; i++ {
		s.workers.Add(1)
		go s.worker(i)
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received: %v", ctx.Err())
		s.initiateShutdown()
	}()

	for {
		tcpConn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Debug("Error accepting connection: %v", err)
				continue
			}
		}

		logger.Debug("Connection from %s", tcpConn.RemoteAddr())

		if s.limiter != nil && !s.limiter.Allow() {
			logger.Warn("Accept rate exceeded, rejecting connection from %s", tcpConn.RemoteAddr())
			s.reject(tcpConn)
			continue
		}

		// Non-blocking enqueue. The buffered channel is the atomic bounded
		// queue: two racing observations of "space available" cannot
		// overflow capacity the way a size check before a blocking put
		// could.
		select {
		case s.queue <- tcpConn:
			s.metrics.RecordConnectionAccepted()
			logger.Debug("Connection added to queue")
		default:
			logger.Warn("Queue saturated, rejecting connection from %s", tcpConn.RemoteAddr())
			s.reject(tcpConn)
		}
	}
}

// worker is one member of the fixed pool: blocking dequeue, serve the
// connection's state machine to completion, repeat. Workers carry no state
// between connections beyond the id used for logging.
func (s *Server) worker(id int) {
	defer s.workers.Done()

	for tcpConn := range s.queue {
		logger.Debug("Connection dequeued, assigned to worker-%d", id)

		s.activeConns.Add(1)
		s.connCount.Add(1)

		addr := tcpConn.RemoteAddr().String()
		s.activeConnections.Store(addr, tcpConn)

		c := s.newConn(tcpConn, id)
		c.serve(s.shutdownCtx)

		s.activeConnections.Delete(addr)
		s.activeConns.Done()
		s.connCount.Add(-1)
		s.metrics.RecordConnectionClosed()

		logger.Debug("Connection from %s closed (active: %d)", addr, s.connCount.Load())
	}
}

// reject sheds a connection the dispatcher cannot take: synchronous 503 with
// a retry hint, then close. The connection is never queued.
func (s *Server) reject(tcpConn net.Conn) {
	defer tcpConn.Close()

	s.metrics.RecordConnectionRejected()

	resp := httpwire.NewErrorResponse(503)
	resp.AddHeader("Retry-After", "10")

	if s.config.WriteTimeout > 0 {
		_ = tcpConn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}
	if _, err := tcpConn.Write(resp.Encode()); err != nil {
		logger.Debug("Error writing 503 to %s: %v", tcpConn.RemoteAddr(), err)
	}
}

// initiateShutdown begins graceful shutdown. Safe to call multiple times.
func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("Shutdown initiated")

		close(s.shutdown)

		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("Error closing listener: %v", err)
			}
		}

		s.cancelRequests()
	})
}

// gracefulShutdown closes the queue so workers drain and exit, then waits
// for in-flight connections up to ShutdownTimeout before force-closing them.
// Called from Serve after the accept loop has stopped (the accept loop is
// the queue's only producer).
func (s *Server) gracefulShutdown() error {
	close(s.queue)

	logger.Info("Graceful shutdown: waiting for %d active connection(s) (timeout: %v)",
		s.connCount.Load(), s.config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Graceful shutdown complete: all connections closed")
		return nil

	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.connCount.Load()
		logger.Warn("Shutdown timeout exceeded: %d connection(s) still active, forcing closure", remaining)
		s.forceCloseConnections()
		return fmt.Errorf("shutdown timeout: %d connections force-closed", remaining)
	}
}

// forceCloseConnections closes the sockets of any connections still active
// after the shutdown timeout. The failing reads make their state machines
// exit immediately.
func (s *Server) forceCloseConnections() {
	closed := 0
	s.activeConnections.Range(func(key, value any) bool {
		if err := value.(net.Conn).Close(); err == nil {
			closed++
		}
		return true
	})
	if closed > 0 {
		logger.Info("Force-closed %d connection(s)", closed)
	}
}

// Stop initiates shutdown and waits for active connections to finish or the
// given context to expire. Safe to call concurrently with Serve.
func (s *Server) Stop(ctx context.Context) error {
	s.initiateShutdown()

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveConnections returns the number of connections currently held by
// workers. Used by tests and the metrics log.
func (s *Server) ActiveConnections() int32 {
	return s.connCount.Load()
}

func (s *Server) newConn(tcpConn net.Conn, workerID int) *conn {
	return &conn{
		server:   s,
		conn:     tcpConn,
		workerID: workerID,
	}
}
