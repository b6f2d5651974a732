package cmd

import (
	"context"
	"net/http"

	"verifyctl/internal/logstream"
	"verifyctl/internal/poll"
	"verifyctl/internal/verify"
	"verifyctl/pkg/api"

	"github.com/spf13/cobra"
)

func newLogsCommand(a *app) *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs <run-id>",
		Short: "Print logs for a run",
		Long:  `Print the log lines a run has produced so far. With --follow, keep polling until the run's log is complete.`,
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.logs(cmd.Context(), args[0], follow)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	return cmd
}

func (a *app) logs(ctx context.Context, runID string, follow bool) error {
	client, err := a.client()
	if err != nil {
		return a.fail(err, runID)
	}

	// The streamer swallows fetch errors, so make sure the run is reachable first.
	var run api.RunResponse
	if err := client.Do(ctx, http.MethodGet, verify.RunPath(runID), nil, &run); err != nil {
		return a.fail(err, runID)
	}

	var lines []api.LogLine
	emit := func(line api.LogLine) {
		lines = append(lines, line)
		if !a.cfg.JSON {
			a.sink.LogLine(line)
		}
	}
	streamer := logstream.New(client, emit, logstream.Options{Enabled: true, Logger: a.log})

	cursor, done := streamer.Drain(ctx, runID, "")

	if follow && !done {
		probe := func(ctx context.Context) (*string, error) {
			var finished bool
			cursor, finished = streamer.Next(ctx, runID, cursor)
			if !finished {
				return nil, nil
			}
			return &cursor, nil
		}
		_, err := poll.Until(ctx, probe, func(*string) bool { return true }, poll.Options{
			Label:        "logs for run " + runID,
			Timeout:      a.cfg.PollTimeout,
			InitialDelay: a.cfg.PollInitialDelay,
			MaxDelay:     a.cfg.PollMaxDelay,
		})
		if err != nil {
			return a.fail(err, runID)
		}
	}

	if a.cfg.JSON || len(lines) == 0 {
		a.sink.Logs(runID, lines)
	}
	return nil
}
