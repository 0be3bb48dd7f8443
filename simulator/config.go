package simulator

import (
	"time"

	"github.com/arloliu/go-smellie/logger"
	"github.com/arloliu/go-smellie/stage"
	"github.com/arloliu/go-smellie/status"
	"github.com/arloliu/go-smellie/transport"
)

// Fault forces the simulator to reply Code at a wait point of a stage.
type Fault struct {
	// Stage is the stage name, e.g. stage.SetPulseCount.
	Stage string
	// Phase is the 1-based wait point. Zero selects the first one.
	Phase int
	// Code is the name of the code sent instead of the regular reply.
	Code status.Name
}

// Limits are the parameter ranges the simulated controller accepts.
type Limits struct {
	MaxLSChannel        int
	MaxFSChannel        int
	MaxPulseCount       int
	MaxTriggerFrequency int
}

// DefaultReplyGap is the pause between two consecutive replies in packet framing.
const DefaultReplyGap = 20 * time.Millisecond

// DefaultLimits returns the limits of the SMELLIE hardware.
func DefaultLimits() Limits {
	return Limits{
		MaxLSChannel:        5,
		MaxFSChannel:        14,
		MaxPulseCount:       100000,
		MaxTriggerFrequency: 10000,
	}
}

// Config represents the configuration of a simulated controller.
type Config struct {
	// Registry resolves status codes. Defaults to status.Default().
	Registry *status.Registry
	// Framing must match the framing of the driver. Defaults to transport.FramePacket.
	Framing transport.Framing
	// RebootDelay is the time Sepia takes to reboot after a laser switch channel change.
	RebootDelay time.Duration
	// RunDelay is the time the run takes before the completion reply.
	RunDelay time.Duration
	// ReplyGap is the pause before a reply that directly follows another reply.
	// Packet framing has no delimiter, so back-to-back writes would be read as one token.
	// Zero selects DefaultReplyGap in packet framing and no gap in line framing; negative disables it.
	ReplyGap time.Duration
	// Limits are the accepted parameter ranges. Defaults to DefaultLimits().
	Limits Limits
	// Faults override replies at given wait points.
	Faults []Fault
	// Logger defaults to logger.GetLogger().
	Logger logger.Logger
}

func (cfg Config) withDefaults() Config {
	if cfg.Registry == nil {
		cfg.Registry = status.Default()
	}
	if cfg.Limits == (Limits{}) {
		cfg.Limits = DefaultLimits()
	}
	if cfg.ReplyGap == 0 && cfg.Framing == transport.FramePacket {
		cfg.ReplyGap = DefaultReplyGap
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	return cfg
}

func (cfg Config) fault(stageName string, phase int) (status.Name, bool) {
	for _, f := range cfg.Faults {
		p := f.Phase
		if p == 0 {
			p = 1
		}
		if f.Stage == stageName && p == phase {
			return f.Code, true
		}
	}

	return "", false
}

// knownStage returns if name is a stage of the canonical plan.
func knownStage(name string) bool {
	for _, n := range stage.Names() {
		if n == name {
			return true
		}
	}

	return false
}
