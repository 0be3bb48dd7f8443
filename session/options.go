package session

import (
	"github.com/arloliu/go-smellie/logger"
	"github.com/arloliu/go-smellie/stage"
	"github.com/arloliu/go-smellie/status"
)

// StageHook is invoked after each stage with the stage and its outcome.
//
// Note: the hook is invoked synchronously between stages. Take care with long-running implementations.
type StageHook func(s stage.Stage, out stage.Outcome)

// Option represents a functional option for configuring a Session.
type Option interface {
	apply(*Session) error
}

type optFunc func(*Session) error

func (f optFunc) apply(s *Session) error { return f(s) }

// WithRegistry sets the status registry used to resolve codes.
// Defaults to status.Default().
func WithRegistry(reg *status.Registry) Option {
	return optFunc(func(s *Session) error {
		if reg == nil {
			return ErrRegistryNil
		}
		s.reg = reg

		return nil
	})
}

// WithStages replaces the canonical plan with stages.
func WithStages(stages []stage.Stage) Option {
	return optFunc(func(s *Session) error {
		if len(stages) == 0 {
			return ErrNoStages
		}
		s.stages = stages

		return nil
	})
}

// WithLogger sets the logger of the session. Defaults to logger.GetLogger().
func WithLogger(l logger.Logger) Option {
	return optFunc(func(s *Session) error {
		if l != nil {
			s.logger = l
		}

		return nil
	})
}

// WithMetrics sets the metrics updated by the session. Metrics may be shared between sessions.
func WithMetrics(m *Metrics) Option {
	return optFunc(func(s *Session) error {
		if m != nil {
			s.metrics = m
		}

		return nil
	})
}

// WithStageHook adds hooks invoked after each stage.
func WithStageHook(hooks ...StageHook) Option {
	return optFunc(func(s *Session) error {
		for _, h := range hooks {
			if h != nil {
				s.hooks = append(s.hooks, h)
			}
		}

		return nil
	})
}
