package types

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestClassForStatus(t *testing.T) {
	tests := []struct {
		status int
		class  ErrorClass
		kind   ErrorKind
	}{
		{400, ClassBadRequest, KindPermanent},
		{401, ClassAuthentication, KindPermanent},
		{403, ClassAuthorization, KindPermanent},
		{404, ClassNotFound, KindPermanent},
		{408, ClassRequestTimeout, KindTransient},
		{422, ClassUnprocessable, KindPermanent},
		{429, ClassRateLimit, KindTransient},
		{500, ClassServer, KindTransient},
		{503, ClassServer, KindTransient},
		{599, ClassServer, KindTransient},
		{418, ClassUnknown, KindUnknown},
		{0, ClassUnknown, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			if got := ClassForStatus(tt.status); got != tt.class {
				t.Errorf("ClassForStatus(%d) = %v, want %v", tt.status, got, tt.class)
			}
			err := NewRemoteError(tt.status, "", "boom")
			if got := err.Kind(); got != tt.kind {
				t.Errorf("Kind() = %v, want %v", got, tt.kind)
			}
		})
	}
}

func TestRemoteErrorMessage(t *testing.T) {
	err := NewRemoteError(403, "insufficient_scope", "token lacks api scope")
	want := "remote error 403 [insufficient_scope]: token lacks api scope"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	cause := errors.New("read: connection reset")
	wrapped := NewRemoteError(502, "", "bad gateway").WithCause(cause)
	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is(wrapped, cause) = false, want true")
	}
}

func TestCircuitOpenError(t *testing.T) {
	next := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	err := &CircuitOpenError{Name: "gitlab", NextAttemptTime: next}

	if !errors.Is(err, ErrCircuitOpen) {
		t.Error("errors.Is(err, ErrCircuitOpen) = false")
	}
	if !strings.Contains(err.Error(), "circuit breaker is open") ||
		!strings.Contains(err.Error(), "temporarily unavailable") {
		t.Errorf("Error() = %q, missing breaker wording", err.Error())
	}
	if !IsCircuitOpen(fmt.Errorf("wrapped: %w", err)) {
		t.Error("IsCircuitOpen(wrapped) = false")
	}
}

func TestCancellationError(t *testing.T) {
	cancelled := NewCancellationError(context.Canceled)
	if !errors.Is(cancelled, ErrCancelled) {
		t.Error("cancelled should match ErrCancelled")
	}
	if errors.Is(cancelled, ErrTimeout) {
		t.Error("plain cancellation should not match ErrTimeout")
	}
	if !errors.Is(cancelled, context.Canceled) {
		t.Error("cancellation should unwrap to context.Canceled")
	}

	timeout := NewTimeoutError(2*time.Second, context.DeadlineExceeded)
	if !errors.Is(timeout, ErrCancelled) || !IsTimeout(timeout) {
		t.Error("timeout should match ErrCancelled and ErrTimeout")
	}
	if timeout.Error() != "operation timed out after 2s" {
		t.Errorf("Error() = %q", timeout.Error())
	}
}

func TestRetryExhaustedError(t *testing.T) {
	last := NewRemoteError(500, "", "internal")
	err := &RetryExhaustedError{Attempts: 3, Err: last}

	if !strings.Contains(err.Error(), "failed after 3 attempts") {
		t.Errorf("Error() = %q", err.Error())
	}
	var remote *RemoteError
	if !errors.As(err, &remote) || remote.StatusCode != 500 {
		t.Error("errors.As should reach the last remote error")
	}
}

func TestCombinedFailureError(t *testing.T) {
	primary := errors.New("primary exploded")
	fallback := errors.New("fallback exploded")
	err := &CombinedFailureError{Operation: "analyze project", PrimaryErr: primary, FallbackErr: fallback}

	msg := err.Error()
	for _, part := range []string{"primary exploded", "fallback exploded", "analyze project"} {
		if !strings.Contains(msg, part) {
			t.Errorf("Error() = %q, missing %q", msg, part)
		}
	}
	if !errors.Is(err, primary) || !errors.Is(err, fallback) {
		t.Error("combined error should unwrap to both causes")
	}
	if !IsCombinedFailure(err) {
		t.Error("IsCombinedFailure() = false")
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("projectId", "must be positive")
	if !IsValidation(err) {
		t.Error("IsValidation() = false")
	}
	if err.Error() != "validation failed on projectId: must be positive" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestParseCacheLevel(t *testing.T) {
	tests := map[string]CacheLevel{
		"memory-only":       LevelMemoryOnly,
		"redis-only":        LevelRedisOnly,
		"memory-then-redis": LevelMemoryThenRedis,
		"bogus":             LevelMemoryOnly,
	}
	for in, want := range tests {
		if got := ParseCacheLevel(in); got != want {
			t.Errorf("ParseCacheLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if !LevelMemoryThenRedis.IncludesMemory() || !LevelMemoryThenRedis.IncludesRedis() {
		t.Error("memory-then-redis should include both layers")
	}
}
