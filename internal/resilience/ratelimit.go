package resilience

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	rateLimitResetBuffer = 5 * time.Second
	maxRateLimitWait     = 15 * time.Minute
)

// RateLimitInfo is the server's view of the caller's rate limit budget.
// ResetTime is a Unix timestamp in seconds.
type RateLimitInfo struct {
	ResetTime int64
	Limit     int
	Remaining int
}

// IsExceeded reports whether the budget is used up.
func (i RateLimitInfo) IsExceeded() bool {
	return i.Remaining <= 0
}

// ResetAt converts ResetTime, in Unix seconds, to a time.Time.
func (i RateLimitInfo) ResetAt() time.Time {
	return time.Unix(i.ResetTime, 0)
}

// HandleRateLimiting returns how long to wait before the next call.
// Zero while budget remains; otherwise until reset plus 5s, capped at 15 minutes.
func HandleRateLimiting(info RateLimitInfo) time.Duration {
	return rateLimitWait(info, time.Now())
}

func rateLimitWait(info RateLimitInfo, now time.Time) time.Duration {
	if info.Remaining > 0 {
		return 0
	}
	wait := info.ResetAt().Add(rateLimitResetBuffer).Sub(now)
	if wait < 0 {
		return 0
	}
	if wait > maxRateLimitWait {
		return maxRateLimitWait
	}
	return wait
}

// ExtractRateLimitInfo reads X-RateLimit-* headers, falling back to RateLimit-*.
// Missing or non-numeric values become zero.
func ExtractRateLimitInfo(headers map[string][]string) RateLimitInfo {
	return RateLimitInfo{
		Limit:     headerInt(headers, "X-RateLimit-Limit", "RateLimit-Limit"),
		Remaining: headerInt(headers, "X-RateLimit-Remaining", "RateLimit-Remaining"),
		ResetTime: int64(headerInt(headers, "X-RateLimit-Reset", "RateLimit-Reset")),
	}
}

// ParseRetryAfter reads Retry-After as delay seconds or an HTTP date.
func ParseRetryAfter(headers map[string][]string) (time.Duration, bool) {
	return parseRetryAfter(headers, time.Now())
}

func parseRetryAfter(headers map[string][]string, now time.Time) (time.Duration, bool) {
	v := headerValue(headers, "Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	at, err := http.ParseTime(v)
	if err != nil {
		return 0, false
	}
	if d := at.Sub(now); d > 0 {
		return d, true
	}
	return 0, true
}

func headerInt(headers map[string][]string, names ...string) int {
	v := headerValue(headers, names...)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// headerValue returns the first value of the first present header, matching names case-insensitively.
func headerValue(headers map[string][]string, names ...string) string {
	for _, name := range names {
		for key, values := range headers {
			if strings.EqualFold(key, name) && len(values) > 0 {
				return strings.TrimSpace(values[0])
			}
		}
	}
	return ""
}
