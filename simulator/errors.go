package simulator

import "errors"

var (
	// ErrUnexpectedCommand indicates that the driver sent a command the controller did not expect.
	ErrUnexpectedCommand = errors.New("unexpected command")

	// ErrInvalidFault indicates a malformed fault specification.
	ErrInvalidFault = errors.New("invalid fault")

	// ErrServerClosed is returned by Serve after Close.
	ErrServerClosed = errors.New("simulator closed")
)
