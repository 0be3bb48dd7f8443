package simulator

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-smellie/logger"
	"github.com/arloliu/go-smellie/transport"
)

// Stats contains atomic counters of a simulator.
type Stats struct {
	// Accepted indicates the number of connections accepted.
	Accepted atomic.Uint64
	// Completed indicates the number of connections that went through the whole sequence.
	Completed atomic.Uint64
	// Failed indicates the number of connections stopped by a failure reply.
	Failed atomic.Uint64
	// Errors indicates the number of connections that ended with a protocol or network error.
	Errors atomic.Uint64
}

// Server is a simulated SMELLIE controller.
//
// Each accepted connection is served in its own goroutine and plays the whole stage sequence once.
type Server struct {
	cfg    Config
	logger logger.Logger

	mu       sync.Mutex
	ln       net.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	shutdown atomic.Bool

	nextID atomic.Uint64
	conns  *xsync.MapOf[uint64, *transport.Conn]
	stats  Stats
}

// New creates a simulator with cfg.
func New(cfg Config) *Server {
	cfg = cfg.withDefaults()

	return &Server{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "simulator"),
		conns:  xsync.NewMapOf[uint64, *transport.Conn](),
	}
}

// Start listens on addr, e.g. "127.0.0.1:0", and serves connections in the background.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.ln = ln
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Serve(ctx, ln); err != nil && !errors.Is(err, ErrServerClosed) {
			s.logger.Error("serve stopped", "error", err)
		}
	}()

	return nil
}

// Addr returns the listening address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ln == nil {
		return nil
	}

	return s.ln.Addr()
}

// Serve accepts connections on ln until ctx is done or Close is called.
//
// Serve always returns a non-nil error; ErrServerClosed after Close or cancellation.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	s.logger.Info("simulator listening", "address", ln.Addr().String(), "framing", s.cfg.Framing.String())

	for {
		nc, err := ln.Accept()
		if err != nil {
			if s.shutdown.Load() || ctx.Err() != nil {
				return ErrServerClosed
			}
			return err
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_ = s.ServeConn(ctx, nc)
		}()
	}
}

// ServeConn plays the controller side of one session on nc and closes it when done.
//
// It returns nil when the sequence completed or stopped on a failure reply, and the
// protocol or network error otherwise.
func (s *Server) ServeConn(ctx context.Context, nc net.Conn) error {
	cfg, err := transport.NewConfig("127.0.0.1", 0,
		transport.WithFraming(s.cfg.Framing),
		transport.WithLogger(s.logger),
	)
	if err != nil {
		_ = nc.Close()
		return err
	}

	conn := transport.NewConn(nc, cfg)
	id := s.nextID.Add(1)
	s.conns.Store(id, conn)
	s.stats.Accepted.Add(1)

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		s.conns.Delete(id)
		_ = conn.Close()
	}()

	log := s.logger.With("conn", id, "remote", nc.RemoteAddr().String())
	log.Info("driver connected")

	completed, err := newScript(s.cfg, conn, log).run(ctx)
	switch {
	case err != nil:
		s.stats.Errors.Add(1)
		log.Warn("session ended with error", "error", err)
	case completed:
		s.stats.Completed.Add(1)
		log.Info("run completed")
	default:
		s.stats.Failed.Add(1)
		log.Info("run stopped on failure reply")
	}

	return err
}

// ActiveConns returns the number of connections being served.
func (s *Server) ActiveConns() int {
	return s.conns.Size()
}

// Stats returns the counters of the simulator.
func (s *Server) Stats() *Stats {
	return &s.stats
}

// Close stops accepting connections, closes the active ones and waits for their goroutines.
func (s *Server) Close() error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	ln, cancel := s.ln, s.cancel
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	if cancel != nil {
		cancel()
	}

	s.conns.Range(func(_ uint64, c *transport.Conn) bool {
		_ = c.Close()
		return true
	})
	s.wg.Wait()

	if errors.Is(err, net.ErrClosed) {
		return nil
	}

	return err
}
