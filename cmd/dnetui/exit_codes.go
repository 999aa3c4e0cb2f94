package main

import (
	"context"
	stderrors "errors"

	"github.com/odvcencio/dnetui/pkg/errors"
)

const (
	exitOK                  = 0
	exitTerminalUnavailable = 2
	exitInternalFault       = 3
	exitInvalidConfig       = 4
	exitInterrupted         = 130
)

type exitCoder interface {
	ExitCode() int
}

type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e exitError) Unwrap() error {
	return e.err
}

func (e exitError) ExitCode() int {
	if e.code == 0 {
		return 1
	}
	return e.code
}

func withExitCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return exitError{code: code, err: err}
}

func exitCodeForError(err error) int {
	if err == nil {
		return exitOK
	}
	var coded exitCoder
	if stderrors.As(err, &coded) {
		return coded.ExitCode()
	}
	return 1
}

// classifyRunError maps what the scheduler returned to a process exit code.
// interrupted reports whether a signal cancelled the run.
func classifyRunError(err error, interrupted bool) error {
	switch {
	case err == nil:
		return nil
	case interrupted && stderrors.Is(err, context.Canceled):
		return withExitCode(err, exitInterrupted)
	case errors.IsCode(err, errors.ErrCodeBackendUnavailable):
		return withExitCode(err, exitTerminalUnavailable)
	case errors.IsCode(err, errors.ErrCodeConfigInvalid),
		errors.IsCode(err, errors.ErrCodeConfigParse),
		errors.IsCode(err, errors.ErrCodeConfigLoad):
		return withExitCode(err, exitInvalidConfig)
	default:
		return withExitCode(err, exitInternalFault)
	}
}
