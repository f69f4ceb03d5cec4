package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sheikh-saqib/batch-settlement-ledger/internal/api"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/config"
)

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var (
				faucet  api.Faucet
				rotator api.Rotator
			)
			if cfg.DevFaucet {
				faucet, rotator = a.custodian, a.authority
				log.Printf("dev faucet and authority rotation enabled")
			}

			srv := &http.Server{
				Addr:              cfg.ListenAddr,
				Handler:           api.NewServer(a.ledger, faucet, rotator).Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Printf("Starting server on %s (tier %s)", cfg.ListenAddr, cfg.Tier.Label)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			log.Printf("shutting down")
			return srv.Shutdown(shutdownCtx)
		},
	}
}
