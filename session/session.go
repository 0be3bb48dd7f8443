package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/arloliu/go-smellie/logger"
	"github.com/arloliu/go-smellie/stage"
	"github.com/arloliu/go-smellie/status"
)

// Transport is the stream connection a Session drives.
//
// Receive blocks until one discrete token is available. A Transport that also implements
// io.Closer is closed out-of-band when the context passed to Run is canceled, which is the
// only way to unblock a pending Receive.
type Transport interface {
	Send(payload []byte) error
	Receive() ([]byte, error)
}

// Session drives a controller through an ordered list of stages.
//
// A Session is used by exactly one caller and is not safe for concurrent use. It advances
// monotonically and never resumes after a failure. The Session does not own the transport:
// the caller that dialed it must close it on every exit path.
type Session struct {
	transport Transport
	reg       *status.Registry
	stages    []stage.Stage
	pos       int
	result    *Result
	logger    logger.Logger
	metrics   *Metrics
	hooks     []StageHook
}

// New creates a session running the canonical plan for params over t.
//
// Returns ErrTransportNil if t is nil and ErrRegistryIncomplete if the registry can't
// resolve every code of the plan.
func New(t Transport, params stage.Params, opts ...Option) (*Session, error) {
	if t == nil {
		return nil, ErrTransportNil
	}

	s := &Session{
		transport: t,
		reg:       status.Default(),
		logger:    logger.GetLogger(),
		metrics:   NewMetrics(),
	}

	for _, opt := range opts {
		if err := opt.apply(s); err != nil {
			return nil, err
		}
	}

	if s.stages == nil {
		if missing := status.Missing(s.reg); len(missing) > 0 {
			return nil, fmt.Errorf("%w: missing %v", ErrRegistryIncomplete, missing)
		}
		s.stages = stage.Plan(params, s.reg)
	}

	return s, nil
}

// Stages returns the stages of the session in order.
func (s *Session) Stages() []stage.Stage { return s.stages }

// Position returns the index of the next stage to run.
func (s *Session) Position() int { return s.pos }

// Metrics returns the metrics updated by the session.
func (s *Session) Metrics() *Metrics { return s.metrics }

// Result returns the terminal result, or nil if the session has not finished.
func (s *Session) Result() *Result { return s.result }

// RunStage executes a single stage and classifies its responses.
//
// The payload, if any, is sent first. Then exactly one token is read per wait point and
// evaluated with stage.Evaluate; the first wait point that doesn't advance ends the stage.
// When every wait point advanced, the follow-up, if any, is sent.
//
// RunStage doesn't move the session position; Step and Run do.
func (s *Session) RunStage(st stage.Stage) stage.Outcome {
	start := time.Now()
	out := s.runStage(st)
	s.metrics.observeStage(st, out, time.Since(start))

	for _, hook := range s.hooks {
		hook(st, out)
	}

	return out
}

func (s *Session) runStage(st stage.Stage) stage.Outcome {
	log := s.logger.With("stage", st.Name)

	if len(st.Payload) > 0 {
		if err := s.send(log, st.Payload); err != nil {
			return transportFailure("send payload", 0, err)
		}
	}

	for phase := 1; phase <= st.Waits; phase++ {
		token, err := s.transport.Receive()
		if err != nil {
			return transportFailure("receive response", phase, err)
		}
		s.metrics.incTokensReceived()
		log.Debug("token received", "phase", phase, "token", string(token))

		out := stage.Evaluate(st, s.reg, token)
		if !out.Advance {
			out.Phase = phase
			return out
		}
	}

	if len(st.FollowUp) > 0 {
		if err := s.send(log, st.FollowUp); err != nil {
			return transportFailure("send follow-up", 0, err)
		}
	}

	return stage.Advanced()
}

func (s *Session) send(log logger.Logger, payload []byte) error {
	if err := s.transport.Send(payload); err != nil {
		return err
	}
	s.metrics.incCommandsSent()
	log.Debug("command sent", "payload", string(payload))

	return nil
}

// Step runs the stage at the current position and advances on success.
//
// It returns the outcome of the stage and ErrSessionFinished if the session already completed or failed.
// When the last stage advances or any stage fails, the terminal result becomes available through Result.
func (s *Session) Step() (stage.Outcome, error) {
	if s.result != nil {
		return stage.Outcome{}, ErrSessionFinished
	}
	if len(s.stages) == 0 {
		return stage.Outcome{}, ErrNoStages
	}

	st := s.stages[s.pos]
	out := s.RunStage(st)
	if !out.Advance {
		s.finish(Result{Status: Failed, Failure: newFailure(st, out)})
		return out, nil
	}

	s.logger.Info("stage advanced", "stage", st.Name, "index", s.pos+1, "total", len(s.stages))
	s.pos++
	if s.pos == len(s.stages) {
		s.finish(Result{Status: Completed})
	}

	return out, nil
}

// Run executes the remaining stages in order until all advance or the first one fails.
//
// No command is sent after a failure; the controller is left in whatever state it reached.
// If ctx is canceled while a stage is blocked on the transport and the transport implements
// io.Closer, the transport is closed and the stage fails with stage.TransportError wrapping
// the context error.
func (s *Session) Run(ctx context.Context) Result {
	if s.result != nil {
		return *s.result
	}

	if closer, ok := s.transport.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() {
			s.logger.Debug("context done, closing transport")
			_ = closer.Close()
		})
		defer stop()
	}

	for s.result == nil {
		if err := ctx.Err(); err != nil {
			st := s.stages[s.pos]
			s.finish(Result{Status: Failed, Failure: newFailure(st, transportFailure("canceled", 0, err))})
			break
		}

		out, err := s.Step()
		if err != nil {
			return Result{Status: Failed, Failure: &Failure{Kind: stage.TransportError, Reason: err.Error(), Err: err}}
		}
		// a receive unblocked by the context closer reports the closed connection; keep the cause
		if out.Kind == stage.TransportError && ctx.Err() != nil {
			s.result.Failure.Err = errors.Join(s.result.Failure.Err, ctx.Err())
		}
	}

	return *s.result
}

func (s *Session) finish(r Result) {
	s.result = &r
	if r.IsCompleted() {
		s.metrics.incRunsCompleted()
		s.logger.Info("run completed", "stages", len(s.stages))
		return
	}

	f := r.Failure
	kv := []any{"stage", f.Stage, "kind", f.Kind.String(), "reason", f.Reason}
	if f.Phase > 0 {
		kv = append(kv, "phase", f.Phase)
	}
	if f.Token != nil {
		kv = append(kv, "token", string(f.Token))
	}
	if f.Err != nil {
		kv = append(kv, "error", f.Err)
	}
	s.logger.Error("stage failed", kv...)
}

func transportFailure(op string, phase int, err error) stage.Outcome {
	out := stage.Failed(stage.TransportError, op+" failed")
	out.Phase = phase
	out.Err = err

	return out
}
