package session

import (
	"errors"

	"github.com/arloliu/go-smellie/stage"
)

var (
	// ErrTransportNil indicates that a nil Transport was provided.
	ErrTransportNil = errors.New("transport is nil")

	// ErrRegistryNil indicates that a nil status registry was provided.
	ErrRegistryNil = errors.New("status registry is nil")

	// ErrRegistryIncomplete indicates that the status registry lacks a code the stage plan needs.
	ErrRegistryIncomplete = errors.New("status registry is incomplete")

	// ErrNoStages indicates that the session has no stage to run.
	ErrNoStages = errors.New("session has no stages")

	// ErrSessionFinished indicates that the session already completed or failed and can't advance.
	ErrSessionFinished = errors.New("session finished")
)

// Sentinel errors matching each failure kind. A *Failure unwraps to the sentinel of its kind,
// so callers can test it with errors.Is.
var (
	// ErrConnectivity indicates that the connectivity check returned an unexpected token.
	ErrConnectivity = errors.New("connectivity check failed")

	// ErrDeviceDisconnected indicates that Sepia or the laser switch is not connected.
	ErrDeviceDisconnected = errors.New("device disconnected")

	// ErrSafeStateViolation indicates that a sub-device is not at its safe-state configuration.
	ErrSafeStateViolation = errors.New("safe-state violation")

	// ErrConfigurationRejected indicates that the controller rejected a parameter, the self-test or the run.
	ErrConfigurationRejected = errors.New("configuration rejected")

	// ErrRemoteTimeout indicates that the controller reported its timeout code.
	ErrRemoteTimeout = errors.New("remote timeout")

	// ErrProtocolViolation indicates an unrecognized response token.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrTransport indicates that the connection failed while sending or receiving.
	ErrTransport = errors.New("transport failure")
)

// KindError returns the sentinel error of kind, or nil for stage.KindNone.
func KindError(kind stage.Kind) error {
	switch kind {
	case stage.ConnectivityError:
		return ErrConnectivity
	case stage.DeviceDisconnected:
		return ErrDeviceDisconnected
	case stage.SafeStateViolation:
		return ErrSafeStateViolation
	case stage.ConfigurationRejected:
		return ErrConfigurationRejected
	case stage.RemoteTimeout:
		return ErrRemoteTimeout
	case stage.ProtocolViolation:
		return ErrProtocolViolation
	case stage.TransportError:
		return ErrTransport
	default:
		return nil
	}
}
