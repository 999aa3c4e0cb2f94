package errors

import "fmt"

// ConfigurationFault reports a focus request naming a window that does not
// exist. It is always fatal.
func ConfigurationFault(from, target string) *Error {
	return New(ErrCodeConfigurationFault, fmt.Sprintf("focus target %q is not a registered window", target)).
		WithContext("window", from).
		WithContext("target", target).
		WithUserMessage("internal error: a window requested focus for an unknown window")
}

// InvalidTransition reports a view trigger with no declared edge.
func InvalidTransition(window, from, trigger string) *Error {
	return New(ErrCodeInvalidTransition, fmt.Sprintf("no transition from %q on %q", from, trigger)).
		WithContext("window", window).
		WithContext("view", from).
		WithContext("trigger", trigger)
}

// BackendUnavailable wraps a terminal failure that ends the run.
func BackendUnavailable(err error, op string) *Error {
	e := New(ErrCodeBackendUnavailable, "terminal "+op+" failed")
	e.Underlying = err
	return e.
		WithUserMessage("the terminal is no longer available").
		WithRemediation("run dnetui from an interactive terminal")
}

// TransientInput wraps a single failed input read.
func TransientInput(err error) *Error {
	return Wrap(err, ErrCodeTransientInput, "input read failed").WithRetryable(true)
}
