package transport

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	baseBackoff       = 1000 * time.Millisecond
	maxBackoff        = 10000 * time.Millisecond
	defaultRetryAfter = 5000 * time.Millisecond
)

// Backoff returns the wait before the attempt following attempt:
// min(1s * 2^attempt, 10s).
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := baseBackoff
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// RetryAfter reads a Retry-After header given in whole seconds.
// Absent or non-numeric values fall back to 5s.
func RetryAfter(h http.Header) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return defaultRetryAfter
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}
