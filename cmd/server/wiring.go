package main

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/sheikh-saqib/batch-settlement-ledger/internal/api"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/authority"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/config"
	custodianmem "github.com/sheikh-saqib/batch-settlement-ledger/internal/custodian/memory"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/events/kafka"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/events/logging"
	interfaces "github.com/sheikh-saqib/batch-settlement-ledger/internal/interfaces"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/ledger"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/storage/bolt"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/storage/postgres"
)

// funds is a custodian the dev faucet can also credit.
type funds interface {
	interfaces.FundsCustodian
	api.Faucet
}

// app is the assembled service and everything that must be closed with it.
type app struct {
	ledger    *ledger.Ledger
	custodian funds
	authority *authority.Registry
	closers   []io.Closer
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Printf("close: %v", err)
		}
	}
}

// openStore opens the batch store and the custodian that keeps its funds in
// the same database, so batches and the pool's holdings survive a restart
// together.
func openStore(ctx context.Context, cfg config.Config) (interfaces.BatchStore, funds, io.Closer, error) {
	switch cfg.Store {
	case config.StoreBolt:
		store, err := bolt.Open(cfg.BoltPath)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Printf("store: bolt at %s", cfg.BoltPath)
		return store, bolt.NewCustodian(store, cfg.PoolAccount), store, nil
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Printf("store: postgres")
		return postgres.NewPostgresBatchStore(db), postgres.NewPostgresCustodian(db, cfg.PoolAccount), db, nil
	default:
		log.Printf("store: memory")
		return memory.NewMemoryBatchStore(), custodianmem.NewCustodian(cfg.PoolAccount), nil, nil
	}
}

func buildApp(ctx context.Context, cfg config.Config) (*app, error) {
	tier, err := cfg.Tier.Model()
	if err != nil {
		return nil, err
	}

	a := &app{authority: authority.NewRegistry(cfg.Authority)}

	store, custodian, closer, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.custodian = custodian
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	var (
		publisher interfaces.EventPublisher
		notifier  interfaces.SettlementNotifier
	)
	if len(cfg.KafkaBrokers) > 0 {
		p := kafka.NewPublisher(cfg.KafkaBrokers)
		n := kafka.NewSettlementNotifier(cfg.KafkaBrokers)
		a.closers = append(a.closers, p, n)
		publisher, notifier = p, n
		log.Printf("events: kafka %v", cfg.KafkaBrokers)
	} else {
		publisher = logging.NewPublisher(nil)
		notifier = authority.NewRecorder()
		log.Printf("events: log only, settlements recorded in process")
	}

	a.ledger, err = ledger.NewLedger(tier, ledger.Deps{
		Store:     store,
		Custodian: a.custodian,
		Authority: a.authority,
		Notifier:  notifier,
		Publisher: publisher,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build ledger: %w", err)
	}
	return a, nil
}
