package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/sheikh-saqib/batch-settlement-ledger/internal/config"
)

func newStatusCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the tier and the open batch of the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			current, err := a.ledger.CurrentBatch(cmd.Context())
			if err != nil {
				return err
			}
			account, err := a.ledger.BatchAccount(cmd.Context(), current.Number)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"tier":    a.ledger.Tier(),
				"current": current,
				"account": account,
			})
		},
	}
}
