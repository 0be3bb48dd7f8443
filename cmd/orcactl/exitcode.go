package main

import "errors"

// Process exit codes.
const (
	exitOK            = 0
	exitRunFailed     = 1
	exitInvalidConfig = 2
	exitConnectFailed = 3
)

// exitError attaches a process exit code to an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}

	return &exitError{code: code, err: err}
}

// exitCode maps the error returned by a command to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}

	return exitRunFailed
}
