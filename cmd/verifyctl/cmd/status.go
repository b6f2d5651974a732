package cmd

import (
	"net/http"

	"verifyctl/internal/verify"
	"verifyctl/pkg/api"

	"github.com/spf13/cobra"
)

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <run-id>",
		Short: "Get status of a run",
		Long:  `Retrieve the current state of a verification run (queued, running, success, failed, timeout, rejected), its rejection reason if any, and timestamps.`,
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := args[0]

			client, err := a.client()
			if err != nil {
				return a.fail(err, runID)
			}

			var run api.RunResponse
			if err := client.Do(cmd.Context(), http.MethodGet, verify.RunPath(runID), nil, &run); err != nil {
				return a.fail(err, runID)
			}

			a.sink.Run(run)
			return nil
		},
	}
}
