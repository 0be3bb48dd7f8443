package session

import (
	"strconv"
	"strings"

	"github.com/arloliu/go-smellie/stage"
)

// ResultStatus is the terminal status of a session.
type ResultStatus uint8

const (
	// Completed indicates that every stage advanced.
	Completed ResultStatus = iota + 1
	// Failed indicates that a stage failed and the session stopped.
	Failed
)

// String returns string representation of the status.
func (s ResultStatus) String() string {
	switch s {
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the terminal outcome of a session.
type Result struct {
	Status ResultStatus
	// Failure describes the failed stage when Status is Failed.
	Failure *Failure
}

// IsCompleted returns if all stages advanced.
func (r Result) IsCompleted() bool { return r.Status == Completed }

// Err returns the failure as an error, or nil when the session completed.
func (r Result) Err() error {
	if r.Failure == nil {
		return nil
	}

	return r.Failure
}

// Failure describes the stage that terminated a session and why.
type Failure struct {
	// Stage is the name of the failed stage.
	Stage string
	// Kind classifies the failure.
	Kind stage.Kind
	// Reason is the registered meaning of the received code, or a generic description.
	Reason string
	// Phase is the 1-based wait point at which the failure was observed, 0 if it happened while sending.
	Phase int
	// Token is the raw response for unrecognized tokens.
	Token []byte
	// Err is the underlying transport or context error, if any.
	Err error
}

func newFailure(s stage.Stage, out stage.Outcome) *Failure {
	return &Failure{
		Stage:  s.Name,
		Kind:   out.Kind,
		Reason: out.Reason,
		Phase:  out.Phase,
		Token:  out.Token,
		Err:    out.Err,
	}
}

// Error implements the error interface.
func (f *Failure) Error() string {
	var sb strings.Builder
	sb.WriteString("stage ")
	sb.WriteString(f.Stage)
	sb.WriteString(" failed (")
	sb.WriteString(f.Kind.String())
	sb.WriteString("): ")
	sb.WriteString(f.Reason)
	if f.Phase > 1 {
		sb.WriteString(", wait ")
		sb.WriteString(strconv.Itoa(f.Phase))
	}
	if f.Token != nil {
		sb.WriteString(", received ")
		sb.WriteString(strconv.Quote(string(f.Token)))
	}
	if f.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(f.Err.Error())
	}

	return sb.String()
}

// Unwrap returns the sentinel error of the failure kind and the underlying error.
func (f *Failure) Unwrap() []error {
	errs := make([]error, 0, 2)
	if kindErr := KindError(f.Kind); kindErr != nil {
		errs = append(errs, kindErr)
	}
	if f.Err != nil {
		errs = append(errs, f.Err)
	}

	return errs
}
