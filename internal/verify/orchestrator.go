// Package verify submits a verification run, follows it to a terminal state
// and turns the result into a typed outcome and exit code.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"verifyctl/internal/clock"
	"verifyctl/internal/logger"
	"verifyctl/internal/logstream"
	"verifyctl/internal/poll"
	"verifyctl/internal/transport"
	"verifyctl/pkg/api"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// RunsPath is the collection endpoint runs are submitted to.
const RunsPath = "/verify/runs"

// RunPath returns the status endpoint of a run.
func RunPath(runID string) string {
	return fmt.Sprintf("%s/%s", RunsPath, url.PathEscape(runID))
}

// ResultPath returns the result endpoint of a run.
func ResultPath(runID string) string {
	return RunPath(runID) + "/result"
}

// Doer issues a single API call. *transport.Client implements it.
type Doer interface {
	Do(ctx context.Context, method, path string, body, out any) error
}

// Reporter receives progress while a run is being followed.
type Reporter interface {
	Submitted(runID string, creditsEstimated float64)
	StatusChanged(run api.RunResponse)
	LogLine(line api.LogLine)
}

// NopReporter ignores all progress.
type NopReporter struct{}

func (NopReporter) Submitted(string, float64)     {}
func (NopReporter) StatusChanged(api.RunResponse) {}
func (NopReporter) LogLine(api.LogLine)           {}

// Options configures an Orchestrator.
type Options struct {
	Logger     *slog.Logger
	Reporter   Reporter
	StreamLogs bool

	PollTimeout      time.Duration // default: 10m
	PollInitialDelay time.Duration // default: 1s
	PollMaxDelay     time.Duration // default: 10s

	Clock clock.Clock
}

// Outcome is the interpreted end state of a run.
type Outcome struct {
	RunID      string         `json:"runId"`
	Status     api.RunStatus  `json:"status"`
	Passed     bool           `json:"passed"`
	ReasonCode api.ReasonCode `json:"reasonCode,omitempty"`
	Message    string         `json:"message,omitempty"`
	Result     *api.RunResult `json:"result,omitempty"`
	DurationMs int64          `json:"durationMs"`
	ExitCode   int            `json:"-"`
}

// Orchestrator drives one run per call to Run.
type Orchestrator struct {
	doer Doer
	opts Options
}

// New creates an orchestrator on top of doer.
func New(doer Doer, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Reporter == nil {
		opts.Reporter = NopReporter{}
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 10 * time.Minute
	}
	if opts.PollInitialDelay <= 0 {
		opts.PollInitialDelay = poll.DefaultInitialDelay
	}
	if opts.PollMaxDelay <= 0 {
		opts.PollMaxDelay = poll.DefaultMaxDelay
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	return &Orchestrator{doer: doer, opts: opts}
}

// Run submits sub once, follows the run until it is terminal, and fetches
// its result unless it was rejected.
func (o *Orchestrator) Run(ctx context.Context, sub Submission) (*Outcome, error) {
	ctx, span := otel.Tracer("verifyctl/verify").Start(ctx, "verify.run")
	defer span.End()

	start := o.opts.Clock.Now()

	var submitted api.SubmitRunResponse
	if err := o.doer.Do(ctx, http.MethodPost, RunsPath, sub.request(), &submitted); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("submit run: %w", err)
	}

	runID := submitted.RunID
	log := o.opts.Logger.With("run_id", runID)
	span.SetAttributes(attribute.String("run.id", runID))
	log.Debug("run submitted", "credits_estimated", submitted.CreditsEstimated)
	o.opts.Reporter.Submitted(runID, submitted.CreditsEstimated)

	run, err := o.follow(ctx, log, runID, submitted.Status, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("run.status", string(run.Status)))

	outcome := &Outcome{
		RunID:      runID,
		Status:     run.Status,
		ReasonCode: run.ReasonCode,
		DurationMs: o.opts.Clock.Now().Sub(start).Milliseconds(),
	}
	if run.DurationMs != nil {
		outcome.DurationMs = *run.DurationMs
	}

	if run.Status == api.StatusRejected {
		log.Debug("run rejected", "reason", run.ReasonCode)
		outcome.Message = RejectionMessage(run.ReasonCode)
		outcome.ExitCode = ExitFailure
		return outcome, nil
	}

	var result api.RunResult
	if err := o.doer.Do(ctx, http.MethodGet, ResultPath(runID), nil, &result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("fetch result for run %s: %w", runID, err)
	}

	outcome.Result = &result
	outcome.Passed = result.Passed
	outcome.Message = result.Summary
	if result.Passed {
		outcome.ExitCode = ExitOK
	} else {
		outcome.ExitCode = ExitFailure
	}
	return outcome, nil
}

// follow polls the run status, draining logs on every tick, until the run is terminal.
func (o *Orchestrator) follow(ctx context.Context, log *slog.Logger, runID string, initial api.RunStatus, start time.Time) (*api.RunResponse, error) {
	streamer := logstream.New(o.doer, o.opts.Reporter.LogLine, logstream.Options{
		Enabled: o.opts.StreamLogs,
		Logger:  log,
	})

	cursor := ""
	lastStatus := initial

	probe := func(ctx context.Context) (*api.RunResponse, error) {
		var run api.RunResponse
		err := o.doer.Do(ctx, http.MethodGet, RunPath(runID), nil, &run)

		// Logs are drained even when the status call failed.
		cursor, _ = streamer.Next(ctx, runID, cursor)

		if err != nil {
			var netErr *transport.NetworkError
			if errors.As(err, &netErr) {
				log.Debug("status poll failed, will retry", "error", err)
				return nil, nil
			}
			return nil, err
		}

		if run.Status != lastStatus {
			log.Debug("run status changed", "from", lastStatus, "to", run.Status)
			lastStatus = run.Status
			o.opts.Reporter.StatusChanged(run)
		}
		return &run, nil
	}

	run, err := poll.Until(ctx, probe, func(r *api.RunResponse) bool { return r.Status.Terminal() }, poll.Options{
		Label:        "run " + runID,
		Timeout:      o.opts.PollTimeout,
		InitialDelay: o.opts.PollInitialDelay,
		MaxDelay:     o.opts.PollMaxDelay,
		Clock:        o.opts.Clock,
	})
	if err != nil {
		var timeoutErr *poll.TimeoutError
		if errors.As(err, &timeoutErr) {
			return nil, &RunTimeoutError{
				RunID:   runID,
				Elapsed: o.opts.Clock.Now().Sub(start),
				Err:     timeoutErr,
			}
		}
		return nil, fmt.Errorf("poll run %s: %w", runID, err)
	}

	if o.opts.StreamLogs {
		streamer.Drain(ctx, runID, cursor)
	}
	return run, nil
}
