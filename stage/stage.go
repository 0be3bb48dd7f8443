package stage

import (
	"github.com/arloliu/go-smellie/status"
)

// Failure reasons shared by every stage.
const (
	ReasonRemoteTimeout = "remote timeout"
	ReasonUnrecognized  = "unrecognized response"
)

// Rejection is the failure a stage reports when it receives a specific registered code.
type Rejection struct {
	Kind   Kind
	Reason string
}

// Stage is one ordered step of the bring-up and run sequence.
type Stage struct {
	// Name identifies the stage in diagnostics.
	Name string
	// Payload is written to the controller before waiting, if not empty.
	Payload []byte
	// Waits is the number of blocking wait points. Zero makes the stage send-only.
	Waits int
	// Success is the code accepted at every wait point.
	Success status.Code
	// Failures maps other expected codes to their specific failure.
	Failures map[status.Code]Rejection
	// FollowUp is written to the controller after the stage advanced, if not empty.
	FollowUp []byte
	// Fallback is the kind reported for unrecognized tokens. Defaults to ProtocolViolation.
	Fallback Kind
}

// IsSendOnly returns if the stage never waits for a response.
func (s Stage) IsSendOnly() bool { return s.Waits == 0 }

// Accepts returns the set of codes the stage has an explicit rule for, excluding the universal timeout.
func (s Stage) Accepts() []status.Code {
	codes := make([]status.Code, 0, len(s.Failures)+1)
	codes = append(codes, s.Success)
	for code := range s.Failures {
		codes = append(codes, code)
	}

	return codes
}

// Outcome is the result of evaluating a stage.
type Outcome struct {
	// Advance reports that the stage succeeded.
	Advance bool
	// Kind classifies the failure when Advance is false.
	Kind Kind
	// Reason describes the failure.
	Reason string
	// Token holds the raw token for unrecognized responses.
	Token []byte
	// Phase is the 1-based wait point at which the failure was observed, 0 if not at a wait point.
	Phase int
	// Err holds the transport error for TransportError outcomes.
	Err error
}

// Advanced returns an outcome that advances to the next stage.
func Advanced() Outcome { return Outcome{Advance: true} }

// Failed returns a failed outcome.
func Failed(kind Kind, reason string) Outcome {
	return Outcome{Kind: kind, Reason: reason}
}

// Evaluate classifies one token received at a wait point of stage s.
//
// The rules are applied in order:
//  1. the registry's timeout code fails with RemoteTimeout, regardless of the stage;
//  2. the stage's success code advances;
//  3. a code in the stage's failure table fails with its registered rejection;
//  4. anything else fails with the stage's fallback kind and carries the raw token.
func Evaluate(s Stage, reg *status.Registry, token []byte) Outcome {
	code := status.Code(token)

	if timeout, ok := reg.Code(status.Timeout); ok && code == timeout {
		return Failed(RemoteTimeout, ReasonRemoteTimeout)
	}

	if code == s.Success {
		return Advanced()
	}

	if rej, ok := s.Failures[code]; ok {
		return Failed(rej.Kind, rej.Reason)
	}

	kind := s.Fallback
	if kind == KindNone {
		kind = ProtocolViolation
	}
	out := Failed(kind, ReasonUnrecognized)
	out.Token = append([]byte(nil), token...)

	return out
}
