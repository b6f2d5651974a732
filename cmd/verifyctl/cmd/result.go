package cmd

import (
	"net/http"

	"verifyctl/internal/verify"
	"verifyctl/pkg/api"

	"github.com/spf13/cobra"
)

func newResultCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "result <run-id>",
		Short: "Show the result of a finished run",
		Long:  `Fetch the structured result of a finished run: overall verdict, summary, individual checks and credits used. Exits 1 when the run did not pass.`,
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := args[0]

			client, err := a.client()
			if err != nil {
				return a.fail(err, runID)
			}

			var result api.RunResult
			if err := client.Do(cmd.Context(), http.MethodGet, verify.ResultPath(runID), nil, &result); err != nil {
				return a.fail(err, runID)
			}
			if result.RunID == "" {
				result.RunID = runID
			}

			a.sink.Result(result)
			if !result.Passed {
				return &exitError{code: verify.ExitFailure}
			}
			return nil
		},
	}
}
