package transport

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/arloliu/go-smellie/logger"
)

// DefaultPort is the TCP port the SMELLIE controller listens on.
const DefaultPort = 50007

// Framing selects how token boundaries are found on the stream.
type Framing uint8

const (
	// FramePacket treats each read as exactly one token.
	//
	// This is how the controller protocol is specified: tokens are sent without a delimiter and
	// the receiver relies on one token per packet. Two tokens coalesced by the network stack are
	// seen as a single unrecognized token.
	FramePacket Framing = iota
	// FrameLine delimits tokens with a newline. Trailing "\r\n" is trimmed and empty lines are skipped.
	FrameLine
)

// String returns string representation of the framing.
func (f Framing) String() string {
	switch f {
	case FramePacket:
		return "packet"
	case FrameLine:
		return "line"
	default:
		return "unknown"
	}
}

// ParseFraming converts "packet" or "line" to a Framing.
func ParseFraming(s string) (Framing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "packet":
		return FramePacket, nil
	case "line":
		return FrameLine, nil
	default:
		return FramePacket, fmt.Errorf("unknown framing %q", s)
	}
}

// Config represents the configuration of a controller connection.
type Config struct {
	// host specifies the host of the controller.
	host string

	// port specifies the TCP port of the controller.
	// Defaults to DefaultPort.
	port int

	// dialTimeout defines the timeout for establishing the connection. It should be between 1 and 60 seconds.
	// Defaults to 3 seconds.
	dialTimeout time.Duration

	// receiveTimeout defines how long Receive waits for a token. Zero waits forever, which is the
	// behavior of the controller protocol: timeouts are reported in-band by the controller.
	// Defaults to 0.
	receiveTimeout time.Duration

	// framing defines how token boundaries are found.
	// Defaults to FramePacket.
	framing Framing

	// maxTokenSize defines the largest token accepted by Receive.
	// Defaults to 1024 bytes.
	maxTokenSize int

	// logger provides a logger instance for logging transport events.
	logger logger.Logger
}

// NewConfig creates a connection configuration for the controller at host:port with optional functional options.
//
// A port of 0 selects DefaultPort.
func NewConfig(host string, port int, opts ...ConnOption) (*Config, error) {
	cfg := &Config{
		port:         DefaultPort,
		dialTimeout:  3 * time.Second,
		framing:      FramePacket,
		maxTokenSize: 1024,
		logger:       logger.GetLogger(),
	}

	if err := withHost(host).apply(cfg); err != nil {
		return cfg, err
	}

	if err := withPort(port).apply(cfg); err != nil {
		return cfg, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// Address returns the host:port of the controller.
func (cfg *Config) Address() string {
	return net.JoinHostPort(cfg.host, fmt.Sprint(cfg.port))
}

// Framing returns the framing mode.
func (cfg *Config) Framing() Framing { return cfg.framing }

// ReceiveTimeout returns the receive timeout, zero meaning no timeout.
func (cfg *Config) ReceiveTimeout() time.Duration { return cfg.receiveTimeout }

// ConnOption represents a functional option for configuring a Config.
type ConnOption interface {
	apply(*Config) error
}

type connOptFunc struct {
	name      string
	applyFunc func(*Config) error
}

func (c *connOptFunc) apply(cfg *Config) error {
	if cfg == nil {
		return ErrConfigNil
	}

	return c.applyFunc(cfg)
}

func newConnOptFunc(name string, f func(*Config) error) *connOptFunc {
	return &connOptFunc{name: name, applyFunc: f}
}

// withHost validates and sets the controller host.
// The host must be an IP address or a syntactically valid host name; it is not resolved here.
func withHost(host string) ConnOption {
	return newConnOptFunc("withHost", func(cfg *Config) error {
		host = strings.TrimSuffix(strings.TrimSpace(host), ".")
		if ip := net.ParseIP(host); ip != nil {
			cfg.host = host
			return nil
		}

		if !isHostname(host) {
			return errors.New("invalid host")
		}
		cfg.host = host

		return nil
	})
}

// withPort validates and sets the controller port.
func withPort(port int) ConnOption {
	return newConnOptFunc("withPort", func(cfg *Config) error {
		if port == 0 {
			cfg.port = DefaultPort
			return nil
		}
		if port < 0 || port > 65535 {
			return errors.New("port is out of range [1, 65535]")
		}
		cfg.port = port

		return nil
	})
}

// WithDialTimeout sets the timeout for establishing the connection.
// An error is returned if the timeout is not between 1 and 60 seconds.
func WithDialTimeout(d time.Duration) ConnOption {
	return newConnOptFunc("WithDialTimeout", func(cfg *Config) error {
		if d < time.Second || d > 60*time.Second {
			return errors.New("dial timeout out of range [1, 60]")
		}
		cfg.dialTimeout = d

		return nil
	})
}

// WithReceiveTimeout sets how long Receive waits for a token. Zero waits forever.
// An error is returned if the timeout is negative.
func WithReceiveTimeout(d time.Duration) ConnOption {
	return newConnOptFunc("WithReceiveTimeout", func(cfg *Config) error {
		if d < 0 {
			return errors.New("receive timeout is negative")
		}
		cfg.receiveTimeout = d

		return nil
	})
}

// WithFraming sets the framing mode.
func WithFraming(f Framing) ConnOption {
	return newConnOptFunc("WithFraming", func(cfg *Config) error {
		if f != FramePacket && f != FrameLine {
			return fmt.Errorf("unknown framing %d", f)
		}
		cfg.framing = f

		return nil
	})
}

// WithMaxTokenSize sets the largest token accepted by Receive.
// An error is returned if size is not between 16 and 65536 bytes.
func WithMaxTokenSize(size int) ConnOption {
	return newConnOptFunc("WithMaxTokenSize", func(cfg *Config) error {
		if size < 16 || size > 65536 {
			return errors.New("max token size out of range [16, 65536]")
		}
		cfg.maxTokenSize = size

		return nil
	})
}

// WithLogger sets the logger of the connection.
func WithLogger(l logger.Logger) ConnOption {
	return newConnOptFunc("WithLogger", func(cfg *Config) error {
		if l != nil {
			cfg.logger = l
		}

		return nil
	})
}

func isHostname(host string) bool {
	if host == "" || len(host) > 253 {
		return false
	}

	for _, label := range strings.Split(host, ".") {
		if label == "" || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, r := range label {
			isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
			if !isAlnum && r != '-' {
				return false
			}
		}
	}

	return true
}
