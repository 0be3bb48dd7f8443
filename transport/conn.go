package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-smellie/logger"
)

// Conn is a stream connection to a SMELLIE controller.
//
// Send and Receive are meant for a single caller. Close may be called from any goroutine,
// which unblocks a pending Receive.
type Conn struct {
	cfg    *Config
	conn   net.Conn
	reader tokenReader
	closed atomic.Bool
	logger logger.Logger
}

// Dial connects to the controller described by cfg.
func Dial(ctx context.Context, cfg *Config) (*Conn, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	d := net.Dialer{Timeout: cfg.dialTimeout}
	nc, err := d.DialContext(ctx, "tcp", cfg.Address())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Address(), err)
	}
	cfg.logger.Info("connected to controller", "address", cfg.Address(), "framing", cfg.framing.String())

	return NewConn(nc, cfg), nil
}

// NewConn wraps an established net.Conn. cfg may be nil, in which case packet framing and
// default limits are used.
func NewConn(nc net.Conn, cfg *Config) *Conn {
	if cfg == nil {
		cfg, _ = NewConfig("127.0.0.1", DefaultPort)
	}

	return &Conn{
		cfg:    cfg,
		conn:   nc,
		reader: newTokenReader(nc, cfg.framing, cfg.maxTokenSize),
		logger: cfg.logger.With("remote", nc.RemoteAddr().String()),
	}
}

// Send writes one token to the controller.
func (c *Conn) Send(payload []byte) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	if len(payload) == 0 {
		return ErrEmptyPayload
	}

	if _, err := c.conn.Write(frame(payload, c.cfg.framing)); err != nil {
		return c.mapErr("send", err)
	}

	return nil
}

// Receive blocks until one token is available and returns it.
//
// With a zero receive timeout it waits until the controller sends data or the connection is closed.
func (c *Conn) Receive() ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrConnClosed
	}

	var deadline time.Time
	if c.cfg.receiveTimeout > 0 {
		deadline = time.Now().Add(c.cfg.receiveTimeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, c.mapErr("set read deadline", err)
	}

	token, err := c.reader.ReadToken()
	if err != nil {
		return nil, c.mapErr("receive", err)
	}

	return token, nil
}

// Close closes the connection. It is safe to call Close more than once.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.logger.Debug("closing connection")

	return c.conn.Close()
}

// IsClosed returns if Close was called.
func (c *Conn) IsClosed() bool { return c.closed.Load() }

// RemoteAddr returns the address of the controller.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *Conn) mapErr(op string, err error) error {
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		return fmt.Errorf("%s: %w after %s", op, ErrReceiveTimeout, c.cfg.receiveTimeout)
	case c.closed.Load() || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe):
		return fmt.Errorf("%s: %w", op, errors.Join(ErrConnClosed, err))
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
