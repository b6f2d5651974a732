// Package logstream drains a run's append-only remote log through an opaque
// continuation cursor. Failures are never fatal to the caller.
package logstream

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"verifyctl/internal/logger"
	"verifyctl/pkg/api"
)

// Doer is the subset of the transport client the streamer needs.
type Doer interface {
	Do(ctx context.Context, method, path string, body, out any) error
}

// Options configures a Streamer.
type Options struct {
	// Enabled controls whether fetched lines are passed to emit.
	Enabled bool
	Logger  *slog.Logger
	// MaxBatches bounds a single Drain call (default: 50).
	MaxBatches int
}

// Streamer fetches log batches and emits each new line once, in order.
type Streamer struct {
	doer    Doer
	emit    func(api.LogLine)
	enabled bool
	logger  *slog.Logger
	batches int

	// highest sequence number emitted so far; -1 before the first line.
	lastSeq int64
}

// New creates a streamer. emit may be nil when streaming is disabled.
func New(doer Doer, emit func(api.LogLine), opts Options) *Streamer {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.MaxBatches <= 0 {
		opts.MaxBatches = 50
	}
	if emit == nil {
		opts.Enabled = false
	}
	return &Streamer{
		doer:    doer,
		emit:    emit,
		enabled: opts.Enabled,
		logger:  opts.Logger,
		batches: opts.MaxBatches,
		lastSeq: -1,
	}
}

// Path returns the logs endpoint for runID positioned after cursor.
func Path(runID, cursor string) string {
	p := fmt.Sprintf("/verify/runs/%s/logs", url.PathEscape(runID))
	if cursor != "" {
		p += "?cursor=" + url.QueryEscape(cursor)
	}
	return p
}

// Next fetches the batch after cursor and returns the cursor to use next time.
// On any failure the given cursor is returned unchanged and done is false.
func (s *Streamer) Next(ctx context.Context, runID, cursor string) (string, bool) {
	var batch api.LogsResponse
	if err := s.doer.Do(ctx, http.MethodGet, Path(runID, cursor), nil, &batch); err != nil {
		s.logger.Debug("log fetch failed", "run_id", runID, "cursor", cursor, "error", err)
		return cursor, false
	}

	for _, line := range batch.Lines {
		if line.Seq <= s.lastSeq {
			continue
		}
		s.lastSeq = line.Seq
		if s.enabled {
			s.emit(line)
		}
	}

	next := batch.NextCursor
	if next == "" {
		next = cursor
	}
	return next, batch.Done
}

// Drain calls Next until the log reports done, the cursor stops moving,
// or the batch limit is hit. It returns the final cursor.
func (s *Streamer) Drain(ctx context.Context, runID, cursor string) (string, bool) {
	for i := 0; i < s.batches; i++ {
		next, done := s.Next(ctx, runID, cursor)
		if done {
			return next, true
		}
		if next == cursor {
			return next, false
		}
		cursor = next
	}
	return cursor, false
}
