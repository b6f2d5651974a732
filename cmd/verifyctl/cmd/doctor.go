package cmd

import (
	"net/http"
	"time"

	"verifyctl/internal/auth"

	"github.com/spf13/cobra"
)

// HealthPath is the service health endpoint.
const HealthPath = "/health"

func newDoctorCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and connectivity",
		Long:  `Verify that an API token is configured and that the verification service answers its health check. The token is shown only as a short hash fingerprint.`,
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return a.fail(err, "")
			}

			start := time.Now()
			if err := client.Do(cmd.Context(), http.MethodGet, HealthPath, nil, nil); err != nil {
				return a.fail(err, "")
			}

			a.sink.Health(a.cfg.URL, auth.Fingerprint(a.cfg.Token), time.Since(start))
			return nil
		},
	}
}
