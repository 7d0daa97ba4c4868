package resilience

import (
	"net/http"
	"strconv"
	"testing"
	"time"
)

func TestRateLimitInfo(t *testing.T) {
	if (RateLimitInfo{Remaining: 3}).IsExceeded() {
		t.Error("IsExceeded() = true with budget remaining")
	}
	if !(RateLimitInfo{Remaining: 0}).IsExceeded() {
		t.Error("IsExceeded() = false with no budget")
	}
	if got := (RateLimitInfo{ResetTime: 1700000000}).ResetAt(); got.Unix() != 1700000000 {
		t.Errorf("ResetAt() = %v", got)
	}
}

func TestRateLimitWait(t *testing.T) {
	now := time.Unix(1700000000, 0)

	//nolint:govet // Test table - alignment not critical
	tests := []struct {
		name string
		info RateLimitInfo
		want time.Duration
	}{
		{"budget remaining", RateLimitInfo{Remaining: 5, ResetTime: now.Unix() + 60}, 0},
		{"reset in future adds buffer", RateLimitInfo{Remaining: 0, ResetTime: now.Unix() + 60}, 65 * time.Second},
		{"reset long past", RateLimitInfo{Remaining: 0, ResetTime: now.Unix() - 60}, 0},
		{"reset just past within buffer", RateLimitInfo{Remaining: 0, ResetTime: now.Unix() - 2}, 3 * time.Second},
		{"capped at fifteen minutes", RateLimitInfo{Remaining: 0, ResetTime: now.Unix() + 3600}, 15 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rateLimitWait(tt.info, now); got != tt.want {
				t.Errorf("rateLimitWait() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractRateLimitInfo(t *testing.T) {
	t.Run("x-ratelimit headers", func(t *testing.T) {
		h := http.Header{}
		h.Set("X-RateLimit-Limit", "100")
		h.Set("X-RateLimit-Remaining", "7")
		h.Set("X-RateLimit-Reset", "1700000000")

		info := ExtractRateLimitInfo(h)
		if info.Limit != 100 || info.Remaining != 7 || info.ResetTime != 1700000000 {
			t.Errorf("ExtractRateLimitInfo() = %+v", info)
		}
	})

	t.Run("standard headers and case-insensitive keys", func(t *testing.T) {
		h := map[string][]string{
			"ratelimit-limit":     {"50"},
			"RATELIMIT-REMAINING": {" 0 "},
		}

		info := ExtractRateLimitInfo(h)
		if info.Limit != 50 || info.Remaining != 0 {
			t.Errorf("ExtractRateLimitInfo() = %+v", info)
		}
	})

	t.Run("missing and malformed", func(t *testing.T) {
		info := ExtractRateLimitInfo(map[string][]string{"X-RateLimit-Limit": {"lots"}})
		if info != (RateLimitInfo{}) {
			t.Errorf("ExtractRateLimitInfo() = %+v, want zero", info)
		}
	})
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("seconds", func(t *testing.T) {
		d, ok := parseRetryAfter(map[string][]string{"Retry-After": {"120"}}, now)
		if !ok || d != 2*time.Minute {
			t.Errorf("parseRetryAfter() = %v, %v", d, ok)
		}
	})

	t.Run("http date", func(t *testing.T) {
		at := now.Add(90 * time.Second).Format(http.TimeFormat)
		d, ok := parseRetryAfter(map[string][]string{"Retry-After": {at}}, now)
		if !ok || d != 90*time.Second {
			t.Errorf("parseRetryAfter() = %v, %v", d, ok)
		}
	})

	t.Run("date in the past", func(t *testing.T) {
		at := now.Add(-time.Minute).Format(http.TimeFormat)
		d, ok := parseRetryAfter(map[string][]string{"Retry-After": {at}}, now)
		if !ok || d != 0 {
			t.Errorf("parseRetryAfter() = %v, %v", d, ok)
		}
	})

	for _, v := range []string{"", "soon", strconv.Itoa(-5)} {
		t.Run("invalid "+v, func(t *testing.T) {
			if _, ok := parseRetryAfter(map[string][]string{"Retry-After": {v}}, now); ok {
				t.Errorf("parseRetryAfter(%q) ok = true", v)
			}
		})
	}
}
