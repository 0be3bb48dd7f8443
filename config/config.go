// Package config loads the orcactl configuration from TOML files.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/arloliu/go-smellie/logger"
	"github.com/arloliu/go-smellie/stage"
	"github.com/arloliu/go-smellie/transport"
)

// ErrInvalidConfig indicates a configuration value out of its accepted range.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete configuration of a driver run.
type Config struct {
	Controller Controller
	Run        stage.Params
	Log        Log
	Metrics    Metrics
}

// Controller describes how to reach the SMELLIE controller.
type Controller struct {
	Host    string
	Port    int
	Framing transport.Framing
	// DialTimeout bounds the TCP connect.
	DialTimeout time.Duration
	// ReceiveTimeout bounds every receive. Zero blocks until the controller replies.
	ReceiveTimeout time.Duration
}

// Log configures the default logger.
type Log struct {
	Level       logger.LogLevel
	Development bool
}

// Metrics configures metric export.
type Metrics struct {
	// Textfile is the path of a Prometheus textfile collector file written after a run.
	// Empty disables the export.
	Textfile string
}

// Default returns the configuration of a standard run against the detector controller.
func Default() Config {
	return Config{
		Controller: Controller{
			Host:        "192.168.0.1",
			Port:        transport.DefaultPort,
			Framing:     transport.FramePacket,
			DialTimeout: 3 * time.Second,
		},
		Run: stage.DefaultParams(),
		Log: Log{Level: logger.InfoLevel},
	}
}

type fileConfig struct {
	Controller struct {
		Host           string `toml:"host"`
		Port           int    `toml:"port"`
		Framing        string `toml:"framing"`
		DialTimeout    string `toml:"dial_timeout"`
		ReceiveTimeout string `toml:"receive_timeout"`
	} `toml:"controller"`
	Run struct {
		Intensity        int `toml:"intensity"`
		FrequencyMode    int `toml:"frequency_mode"`
		LSChannel        int `toml:"ls_channel"`
		FSChannel        int `toml:"fs_channel"`
		PulseCount       int `toml:"pulse_count"`
		TriggerFrequency int `toml:"trigger_frequency"`
	} `toml:"run"`
	Log struct {
		Level       string `toml:"level"`
		Development bool   `toml:"development"`
	} `toml:"log"`
	Metrics struct {
		Textfile string `toml:"textfile"`
	} `toml:"metrics"`
}

// Load reads the TOML file at path and overlays the keys it defines on Default().
//
// Unknown keys are rejected. The returned configuration is validated.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("%w: unknown keys %s", ErrInvalidConfig, strings.Join(keys, ", "))
	}

	cfg, err := overlay(Default(), &raw, meta)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func overlay(cfg Config, raw *fileConfig, meta toml.MetaData) (Config, error) {
	if meta.IsDefined("controller", "host") {
		cfg.Controller.Host = strings.TrimSpace(raw.Controller.Host)
	}
	if meta.IsDefined("controller", "port") {
		cfg.Controller.Port = raw.Controller.Port
	}
	if meta.IsDefined("controller", "framing") {
		f, err := transport.ParseFraming(raw.Controller.Framing)
		if err != nil {
			return Config{}, fmt.Errorf("%w: controller.framing: %w", ErrInvalidConfig, err)
		}
		cfg.Controller.Framing = f
	}
	if meta.IsDefined("controller", "dial_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Controller.DialTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("%w: parse controller.dial_timeout: %w", ErrInvalidConfig, err)
		}
		cfg.Controller.DialTimeout = d
	}
	if meta.IsDefined("controller", "receive_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Controller.ReceiveTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("%w: parse controller.receive_timeout: %w", ErrInvalidConfig, err)
		}
		cfg.Controller.ReceiveTimeout = d
	}

	run := &cfg.Run
	if meta.IsDefined("run", "intensity") {
		run.Intensity = raw.Run.Intensity
	}
	if meta.IsDefined("run", "frequency_mode") {
		run.FrequencyMode = raw.Run.FrequencyMode
	}
	if meta.IsDefined("run", "ls_channel") {
		run.LSChannel = raw.Run.LSChannel
	}
	if meta.IsDefined("run", "fs_channel") {
		run.FSChannel = raw.Run.FSChannel
	}
	if meta.IsDefined("run", "pulse_count") {
		run.PulseCount = raw.Run.PulseCount
	}
	if meta.IsDefined("run", "trigger_frequency") {
		run.TriggerFrequency = raw.Run.TriggerFrequency
	}

	if meta.IsDefined("log", "level") {
		lvl, err := logger.ParseLevel(raw.Log.Level)
		if err != nil {
			return Config{}, fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err)
		}
		cfg.Log.Level = lvl
	}
	if meta.IsDefined("log", "development") {
		cfg.Log.Development = raw.Log.Development
	}

	if meta.IsDefined("metrics", "textfile") {
		cfg.Metrics.Textfile = strings.TrimSpace(raw.Metrics.Textfile)
	}

	return cfg, nil
}

// Validate checks the values that can be known without asking the controller.
//
// Limits enforced by the controller itself, such as the pulse count ceiling, are left to it.
func (cfg Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	c := cfg.Controller
	if c.Host == "" {
		invalid("controller.host is empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		invalid("controller.port %d out of range [1, 65535]", c.Port)
	}
	if c.Framing != transport.FramePacket && c.Framing != transport.FrameLine {
		invalid("controller.framing %d is unknown", c.Framing)
	}
	if c.DialTimeout < time.Second || c.DialTimeout > 60*time.Second {
		invalid("controller.dial_timeout %s out of range [1s, 60s]", c.DialTimeout)
	}
	if c.ReceiveTimeout < 0 {
		invalid("controller.receive_timeout %s is negative", c.ReceiveTimeout)
	}

	r := cfg.Run
	if r.Intensity < 0 || r.Intensity > 100 {
		invalid("run.intensity %d out of range [0, 100]", r.Intensity)
	}
	for _, p := range []struct {
		key string
		v   int
	}{
		{"run.frequency_mode", r.FrequencyMode},
		{"run.ls_channel", r.LSChannel},
		{"run.fs_channel", r.FSChannel},
		{"run.pulse_count", r.PulseCount},
		{"run.trigger_frequency", r.TriggerFrequency},
	} {
		if p.v < 0 {
			invalid("%s %d is negative", p.key, p.v)
		}
	}

	if cfg.Log.Level < logger.DebugLevel || cfg.Log.Level > logger.FatalLevel {
		invalid("log.level %d is unknown", cfg.Log.Level)
	}

	return errors.Join(errs...)
}

// TransportConfig builds the connection configuration of the controller.
func (cfg Config) TransportConfig(l logger.Logger) (*transport.Config, error) {
	c := cfg.Controller
	opts := []transport.ConnOption{
		transport.WithFraming(c.Framing),
		transport.WithDialTimeout(c.DialTimeout),
		transport.WithReceiveTimeout(c.ReceiveTimeout),
	}
	if l != nil {
		opts = append(opts, transport.WithLogger(l))
	}

	return transport.NewConfig(c.Host, c.Port, opts...)
}

// NewLogger creates the logger described by the log section.
func (cfg Config) NewLogger(opts ...logger.Option) logger.Logger {
	opts = append([]logger.Option{logger.WithDevelopment(cfg.Log.Development)}, opts...)
	return logger.NewSlog(cfg.Log.Level, opts...)
}
