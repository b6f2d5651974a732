package cmd

import (
	"net/http"

	"verifyctl/pkg/api"

	"github.com/spf13/cobra"
)

// BalancePath is the account credit endpoint.
const BalancePath = "/account/balance"

func newBalanceCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show remaining account credits",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return a.fail(err, "")
			}

			var balance api.BalanceResponse
			if err := client.Do(cmd.Context(), http.MethodGet, BalancePath, nil, &balance); err != nil {
				return a.fail(err, "")
			}

			a.sink.Balance(balance.Credits)
			return nil
		},
	}
}
