package transport

import "errors"

var (
	// ErrConfigNil indicates that a nil Config was provided.
	ErrConfigNil = errors.New("connection config is nil")

	// ErrConnClosed indicates that the connection is closed.
	ErrConnClosed = errors.New("connection closed")

	// ErrTokenTooLarge indicates that a received token exceeds the configured maximum size.
	ErrTokenTooLarge = errors.New("token too large")

	// ErrEmptyPayload indicates an attempt to send an empty payload.
	ErrEmptyPayload = errors.New("payload is empty")

	// ErrReceiveTimeout indicates that no token arrived within the configured receive timeout.
	ErrReceiveTimeout = errors.New("receive timeout")
)
