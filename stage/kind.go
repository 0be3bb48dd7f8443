package stage

// Kind classifies why a stage failed.
type Kind uint8

// Failure kinds reported by stage evaluation.
const (
	// KindNone is the zero value, used by outcomes that advance.
	KindNone Kind = iota
	// ConnectivityError indicates that the connectivity check returned an unexpected token.
	ConnectivityError
	// DeviceDisconnected indicates that a sub-device reported it is not connected.
	DeviceDisconnected
	// SafeStateViolation indicates that a sub-device is not in its required default configuration.
	SafeStateViolation
	// ConfigurationRejected indicates that the controller rejected a parameter, the self-test or the run.
	ConfigurationRejected
	// RemoteTimeout indicates that the controller reported the universal timeout code.
	RemoteTimeout
	// ProtocolViolation indicates a token not recognized by the current stage.
	ProtocolViolation
	// TransportError indicates that sending or receiving failed on the connection itself.
	TransportError
)

// String returns string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case ConnectivityError:
		return "connectivity-error"
	case DeviceDisconnected:
		return "device-disconnected"
	case SafeStateViolation:
		return "safe-state-violation"
	case ConfigurationRejected:
		return "configuration-rejected"
	case RemoteTimeout:
		return "remote-timeout"
	case ProtocolViolation:
		return "protocol-violation"
	case TransportError:
		return "transport-error"
	default:
		return "unknown"
	}
}

// Kinds returns every failure kind, excluding KindNone.
func Kinds() []Kind {
	return []Kind{
		ConnectivityError,
		DeviceDisconnected,
		SafeStateViolation,
		ConfigurationRejected,
		RemoteTimeout,
		ProtocolViolation,
		TransportError,
	}
}
