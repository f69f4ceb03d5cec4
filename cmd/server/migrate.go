package main

import (
	"errors"
	"log"

	"github.com/spf13/cobra"

	"github.com/sheikh-saqib/batch-settlement-ledger/internal/config"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/storage/postgres"
)

func newMigrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Store != config.StorePostgres {
				return errors.New("migrate: only the postgres store needs a schema")
			}

			db, err := postgres.Open(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.NewPostgresBatchStore(db).Migrate(cmd.Context()); err != nil {
				return err
			}
			log.Printf("migrate: schema up to date")
			return nil
		},
	}
}
