package resilience

import (
	"context"
	"errors"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/LavishGent/remoteguard/internal/types"
)

func TestTranslateError(t *testing.T) {
	//nolint:govet // Test table - alignment not critical
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"code wins over status", types.NewRemoteError(401, "TokenExpired", "expired"), "has expired"},
		{"code is case insensitive", types.NewRemoteError(404, "projectNotFound", ""), "project could not be found"},
		{"unknown code falls back to status", types.NewRemoteError(403, "Weird", ""), "Access denied"},
		{"401", types.NewRemoteError(401, "", ""), "Authentication failed"},
		{"404", types.NewRemoteError(404, "", ""), "not found"},
		{"429", types.NewRemoteError(429, "", ""), "Too many requests"},
		{"503", types.NewRemoteError(503, "", ""), "temporarily unavailable"},
		{"other 5xx uses class", types.NewRemoteError(507, "", ""), "server error"},
		{"exhausted wraps status", &types.RetryExhaustedError{Attempts: 3, Err: types.NewRemoteError(500, "", "")}, "internal error"},
		{"network", syscall.ECONNREFUSED, "network error"},
		{"timeout", types.NewTimeoutError(time.Second, context.DeadlineExceeded), "timed out"},
		{"circuit open", &types.CircuitOpenError{}, "repeated failures"},
		{"validation", types.NewValidationError("projectId", "must not be empty"), "Invalid input: must not be empty"},
		{"cancelled", context.Canceled, "cancelled"},
		{"unknown", errors.New("disk on fire"), "An unexpected error occurred: disk on fire"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TranslateError(tt.err); !strings.Contains(got, tt.contains) {
				t.Errorf("TranslateError() = %q, want it to contain %q", got, tt.contains)
			}
		})
	}

	if got := TranslateError(nil); got != "" {
		t.Errorf("TranslateError(nil) = %q, want empty", got)
	}
}
