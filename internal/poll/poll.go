// Package poll repeatedly invokes a probe until it reports a finished value
// or a deadline passes, backing off exponentially between probes.
package poll

import (
	"context"
	"fmt"
	"time"

	"verifyctl/internal/clock"
)

const (
	DefaultInitialDelay = 1000 * time.Millisecond
	DefaultMaxDelay     = 10000 * time.Millisecond
)

// Options configures Until. Zero delays get defaults; Timeout is required.
type Options struct {
	// Label names the operation in timeout errors.
	Label        string
	Timeout      time.Duration
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Clock        clock.Clock
}

// TimeoutError is returned when the deadline passes without a finished value.
type TimeoutError struct {
	Label   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Label == "" {
		return fmt.Sprintf("poll timed out after %s", e.Timeout)
	}
	return fmt.Sprintf("%s: timed out after %s", e.Label, e.Timeout)
}

// Until calls probe until done reports true for a non-nil result.
//
// A nil result means "not ready yet". An error from probe stops polling and
// is returned as is, unless it was caused by the poll's own deadline, in
// which case a *TimeoutError is returned instead.
func Until[T any](ctx context.Context, probe func(context.Context) (*T, error), done func(*T) bool, opts Options) (*T, error) {
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = DefaultInitialDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}
	if opts.MaxDelay < opts.InitialDelay {
		opts.MaxDelay = opts.InitialDelay
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}

	timeoutErr := &TimeoutError{Label: opts.Label, Timeout: opts.Timeout}
	deadline := opts.Clock.Now().Add(opts.Timeout)

	// The context deadline backs up the clock check so a probe blocked in
	// I/O cannot outlive the poll.
	pollCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	delay := opts.InitialDelay
	for {
		result, err := probe(pollCtx)
		if err != nil {
			if ctx.Err() == nil && pollCtx.Err() != nil {
				return nil, timeoutErr
			}
			return nil, err
		}
		if result != nil && done(result) {
			return result, nil
		}

		remaining := deadline.Sub(opts.Clock.Now())
		if remaining <= 0 {
			return nil, timeoutErr
		}

		wait := delay
		if wait > remaining {
			wait = remaining
		}
		if err := opts.Clock.Sleep(pollCtx, wait); err != nil {
			if ctx.Err() == nil {
				return nil, timeoutErr
			}
			return nil, ctx.Err()
		}

		delay *= 2
		if delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}
}
