package simulator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/arloliu/go-smellie/logger"
	"github.com/arloliu/go-smellie/stage"
	"github.com/arloliu/go-smellie/status"
)

// channel is the controller side of one connection.
type channel interface {
	Send(payload []byte) error
	Receive() ([]byte, error)
}

// check validates a command received from the driver and returns the reply it deserves.
type check func(token []byte) (status.Name, error)

// script plays the controller side of the canonical stage sequence.
type script struct {
	cfg    Config
	ch     channel
	logger logger.Logger

	// payloads validates the command each stage sends before waiting.
	payloads map[string]check
	// followUps validates the command each stage sends after advancing.
	followUps map[string]check
	// pending carries a reply decided by a follow-up into the next wait point.
	pending status.Name
	// replied is set when the last write was a reply, cleared by each received command.
	replied bool
}

func newScript(cfg Config, ch channel, l logger.Logger) *script {
	lim := cfg.Limits
	reg := cfg.Registry

	return &script{
		cfg:    cfg,
		ch:     ch,
		logger: l,
		payloads: map[string]check{
			stage.Initialise:          expect(reg, status.StartInitialise),
			stage.SetLSChannel:        inRange(0, lim.MaxLSChannel, status.LaserSwitchSetWrong),
			stage.SetLaserIntensity:   inRange(0, 100, status.SepiaWrongIntensity),
			stage.SetFSChannel:        inRange(1, lim.MaxFSChannel, status.FibreSwitchChannelBroken),
			stage.SetPulseCount:       inRange(1, lim.MaxPulseCount, status.PulseCountTooHigh),
			stage.SetTriggerFrequency: inRange(1, lim.MaxTriggerFrequency, status.TriggerFrequencyInvalid),
		},
		followUps: map[string]check{
			stage.CheckSafeStates:   expect(reg, status.SetupRun),
			stage.SetLaserIntensity: inRange(0, 7, status.SepiaWrongFrequency),
		},
	}
}

// run plays every stage. It returns true when the whole sequence succeeded, false when a
// failure code was sent and the controller stopped.
func (s *script) run(ctx context.Context) (bool, error) {
	for _, st := range stage.Plan(stage.DefaultParams(), s.cfg.Registry) {
		ok, err := s.playStage(ctx, st)
		if err != nil {
			return false, fmt.Errorf("stage %s: %w", st.Name, err)
		}
		if !ok {
			return false, nil
		}
	}

	return true, nil
}

func (s *script) playStage(ctx context.Context, st stage.Stage) (bool, error) {
	reply := status.Continue

	if len(st.Payload) > 0 {
		name, err := s.receive(st.Name, s.payloads[st.Name])
		if err != nil {
			return false, err
		}
		reply = name
	}

	for phase := 1; phase <= st.Waits; phase++ {
		if phase > 1 && s.cfg.RebootDelay > 0 {
			if err := sleep(ctx, s.cfg.RebootDelay); err != nil {
				return false, err
			}
		}
		if st.Name == stage.RunCompletion && s.cfg.RunDelay > 0 {
			if err := sleep(ctx, s.cfg.RunDelay); err != nil {
				return false, err
			}
		}

		if s.replied && s.cfg.ReplyGap > 0 {
			if err := sleep(ctx, s.cfg.ReplyGap); err != nil {
				return false, err
			}
		}

		code := s.replyFor(st, phase, reply)
		if err := s.ch.Send(s.cfg.Registry.MustCode(code).Bytes()); err != nil {
			return false, err
		}
		s.replied = true
		s.logger.Debug("reply sent", "stage", st.Name, "phase", phase, "code", code.String())

		if s.cfg.Registry.MustCode(code) != st.Success {
			return false, nil
		}
	}

	if len(st.FollowUp) > 0 {
		name, err := s.receive(st.Name, s.followUps[st.Name])
		if err != nil {
			return false, err
		}
		if name != status.Continue {
			s.pending = name
		}
	}

	return true, nil
}

// replyFor picks the code sent at a wait point: a configured fault wins, then a rejection
// decided by the stage command or the previous follow-up, then the regular success code.
func (s *script) replyFor(st stage.Stage, phase int, decided status.Name) status.Name {
	if code, ok := s.cfg.fault(st.Name, phase); ok {
		return code
	}

	if phase == 1 && s.pending != "" {
		decided, s.pending = s.pending, ""
	}
	if decided != status.Continue && decided != "" {
		return decided
	}

	if name, ok := s.cfg.Registry.Lookup(st.Success); ok {
		return name
	}

	return status.Continue
}

func (s *script) receive(stageName string, validate check) (status.Name, error) {
	token, err := s.ch.Receive()
	if err != nil {
		return "", err
	}
	s.replied = false
	s.logger.Debug("command received", "stage", stageName, "token", string(token))

	if validate == nil {
		return status.Continue, nil
	}

	return validate(token)
}

// expect accepts exactly the code registered for name.
func expect(reg *status.Registry, name status.Name) check {
	want := reg.MustCode(name)
	return func(token []byte) (status.Name, error) {
		if status.Code(token) != want {
			return "", fmt.Errorf("%w: got %q, want %s (%s)", ErrUnexpectedCommand, token, want, name)
		}
		return status.Continue, nil
	}
}

// inRange accepts integers in [lo, hi] and answers reject otherwise.
func inRange(lo, hi int, reject status.Name) check {
	return func(token []byte) (status.Name, error) {
		v, err := strconv.Atoi(string(token))
		if err != nil || v < lo || v > hi {
			return reject, nil
		}
		return status.Continue, nil
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
