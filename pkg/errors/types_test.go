package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeConfigInvalid, "tick must be positive")

	if err.Code != ErrCodeConfigInvalid {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeConfigInvalid)
	}
	if err.Message != "tick must be positive" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Underlying != nil {
		t.Error("Underlying should be nil for New error")
	}
	if len(err.Stack) == 0 {
		t.Error("Stack should be captured")
	}
	if err.Retryable {
		t.Error("Retryable should default to false")
	}
}

func TestNewf(t *testing.T) {
	err := Newf(ErrCodeAPIStatus, "status %d", 503)
	if err.Message != "status 503" {
		t.Errorf("Message = %q, want %q", err.Message, "status 503")
	}
}

func TestWrap(t *testing.T) {
	underlying := errors.New("connection refused")
	err := Wrap(underlying, ErrCodeAPIRequest, "GET /v1/devices")

	if err.Underlying != underlying {
		t.Error("Underlying should be preserved")
	}
	if !errors.Is(err, underlying) {
		t.Error("errors.Is should see the underlying error")
	}
	if Wrap(nil, ErrCodeInternal, "x") != nil {
		t.Error("Wrap of nil should return nil")
	}
}

func TestError_StringSortsContext(t *testing.T) {
	err := New(ErrCodeInvalidTransition, "bad").
		WithContext("window", "devices").
		WithContext("trigger", "x").
		WithContext("view", "loaded")

	want := "[INVALID_TRANSITION] bad {trigger: x, view: loaded, window: devices}"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestError_WithUnderlying(t *testing.T) {
	err := Wrap(errors.New("file not found"), ErrCodeConfigLoad, "read config")

	errStr := err.Error()
	if !strings.Contains(errStr, "file not found") {
		t.Error("Error string should include underlying error")
	}
	if !strings.HasPrefix(errStr, "[CONFIG_LOAD]") {
		t.Error("Error string should start with the code")
	}
}

func TestIsCode(t *testing.T) {
	err := New(ErrCodeBackendUnavailable, "gone")

	if !IsCode(err, ErrCodeBackendUnavailable) {
		t.Error("IsCode should return true for matching code")
	}
	if IsCode(err, ErrCodeConfigurationFault) {
		t.Error("IsCode should return false for non-matching code")
	}
	if IsCode(nil, ErrCodeInternal) {
		t.Error("IsCode should return false for nil error")
	}
	if IsCode(errors.New("standard"), ErrCodeInternal) {
		t.Error("IsCode should return false for plain errors")
	}
}

func TestIsCode_WalksChain(t *testing.T) {
	inner := New(ErrCodeConfigParse, "yaml")
	outer := Wrap(inner, ErrCodeConfigLoad, "load")
	wrapped := fmt.Errorf("startup: %w", outer)

	if !IsCode(wrapped, ErrCodeConfigLoad) {
		t.Error("outer code should match through fmt wrapping")
	}
	if !IsCode(wrapped, ErrCodeConfigParse) {
		t.Error("inner code should match")
	}
	if GetCode(wrapped) != ErrCodeConfigLoad {
		t.Errorf("GetCode = %v, want outermost code", GetCode(wrapped))
	}
}

func TestGetCode(t *testing.T) {
	if GetCode(New(ErrCodeTransientInput, "x")) != ErrCodeTransientInput {
		t.Error("GetCode should return the error's code")
	}
	if GetCode(nil) != "" {
		t.Error("GetCode should return empty string for nil")
	}
	if GetCode(errors.New("standard")) != ErrCodeInternal {
		t.Error("GetCode should return ErrCodeInternal for plain errors")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(TransientInput(errors.New("eagain"))) {
		t.Error("transient input errors are retryable")
	}
	if IsRetryable(New(ErrCodeConfigInvalid, "bad config")) {
		t.Error("IsRetryable should return false by default")
	}
	if IsRetryable(nil) || IsRetryable(errors.New("standard")) {
		t.Error("IsRetryable should return false for nil and plain errors")
	}
}

func TestStackTrace(t *testing.T) {
	err := New(ErrCodeInternal, "test error")
	trace := err.StackTrace()

	if !strings.Contains(trace, "Stack trace:") {
		t.Error("StackTrace should contain header")
	}
	if !strings.Contains(trace, "TestStackTrace") {
		t.Errorf("StackTrace should name the caller, got:\n%s", trace)
	}
}

func TestFaultHelpers(t *testing.T) {
	cf := ConfigurationFault("menu", "nowhere")
	if cf.Code != ErrCodeConfigurationFault || cf.Context["target"] != "nowhere" {
		t.Errorf("ConfigurationFault = %v", cf)
	}
	if cf.UserMessage == "" {
		t.Error("ConfigurationFault should carry a user message")
	}

	it := InvalidTransition("devices", "loaded", "bogus")
	if it.Code != ErrCodeInvalidTransition || it.Context["view"] != "loaded" {
		t.Errorf("InvalidTransition = %v", it)
	}

	closed := errors.New("closed")
	bu := BackendUnavailable(closed, "poll")
	if !errors.Is(bu, closed) || bu.Code != ErrCodeBackendUnavailable {
		t.Errorf("BackendUnavailable = %v", bu)
	}
	if len(bu.Remediation) == 0 {
		t.Error("BackendUnavailable should carry remediation")
	}
	if BackendUnavailable(nil, "init") == nil {
		t.Error("BackendUnavailable should not be nil without a cause")
	}
}

func TestUserMessage(t *testing.T) {
	inner := New(ErrCodeAPIRequest, "GET http://x/health").WithUserMessage("could not reach the dnet API")
	outer := Wrap(inner, ErrCodeAPIStatus, "load model")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), "boom"},
		{"message only", New(ErrCodeConfigInvalid, "port out of range").WithContext("field", "api.port"), "port out of range"},
		{"own user message", inner, "could not reach the dnet API"},
		{"nested user message", outer, "could not reach the dnet API"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
