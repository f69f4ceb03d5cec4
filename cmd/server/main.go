package main

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	log.SetPrefix("batchledger ")
	log.SetFlags(log.LstdFlags | log.LUTC)

	var configPath string
	root := &cobra.Command{
		Use:           "batchledger",
		Short:         "Batch entry ledger with referral commissions and settlement hand-off",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")

	root.AddCommand(
		newServeCommand(&configPath),
		newMigrateCommand(&configPath),
		newStatusCommand(&configPath),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		log.Printf("error: %v", err)
		os.Exit(1)
	}
}
