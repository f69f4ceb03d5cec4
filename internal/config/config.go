// Package config loads ledger settings. Values come from built-in defaults,
// then an optional TOML file, then the environment (a .env file in the
// working directory is read first when present).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/batch-settlement-ledger/internal/models"
)

const (
	StoreMemory   = "memory"
	StoreBolt     = "bolt"
	StorePostgres = "postgres"
)

// Config is the full runtime configuration
type Config struct {
	ListenAddr   string   `toml:"listen_addr" env:"LEDGER_LISTEN_ADDR"`
	Store        string   `toml:"store" env:"LEDGER_STORE"`
	BoltPath     string   `toml:"bolt_path" env:"LEDGER_BOLT_PATH"`
	DatabaseURL  string   `toml:"database_url" env:"DATABASE_URL"`
	KafkaBrokers []string `toml:"kafka_brokers" env:"KAFKA_BROKERS" envSeparator:","`
	Authority    string   `toml:"settlement_authority" env:"LEDGER_SETTLEMENT_AUTHORITY"`
	PoolAccount  string   `toml:"pool_account" env:"LEDGER_POOL_ACCOUNT"`
	DevFaucet    bool     `toml:"dev_faucet" env:"LEDGER_DEV_FAUCET"`
	Tier         Tier     `toml:"tier"`
}

// Tier holds the deployment constants as text so amounts stay exact.
type Tier struct {
	Label      string `toml:"label" env:"LEDGER_TIER_LABEL"`
	EntryFee   string `toml:"entry_fee" env:"LEDGER_ENTRY_FEE"`
	Commission string `toml:"commission" env:"LEDGER_COMMISSION"`
	Capacity   int    `toml:"capacity" env:"LEDGER_CAPACITY"`
	MinimumNet string `toml:"minimum_net" env:"LEDGER_MINIMUM_NET"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:  ":8080",
		Store:       StoreMemory,
		BoltPath:    "data/ledger.db",
		PoolAccount: "ledger-pool",
		Tier: Tier{
			Label:      "standard",
			EntryFee:   "10",
			Commission: "0.75",
			Capacity:   100,
			MinimumNet: "900",
		},
	}
}

// Load builds the configuration. tomlPath may be empty.
func Load(tomlPath string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := Default()
	if tomlPath != "" {
		if _, err := toml.DecodeFile(tomlPath, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode %s: %w", tomlPath, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration and returns the first problem found.
func Validate(cfg Config) error {
	if _, _, err := net.SplitHostPort(cfg.ListenAddr); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidListenAddr, err)
	}
	switch cfg.Store {
	case StoreMemory:
	case StoreBolt:
		if cfg.BoltPath == "" {
			return ErrEmptyBoltPath
		}
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return ErrMissingDatabaseURL
		}
	default:
		return ErrUnknownStore
	}
	if cfg.PoolAccount == "" {
		return ErrEmptyPoolAccount
	}
	if cfg.Authority == cfg.PoolAccount {
		return ErrAuthorityIsPool
	}
	tier, err := cfg.Tier.Model()
	if err != nil {
		return err
	}
	return tier.Validate()
}

// Model parses the tier amounts.
func (t Tier) Model() (models.Tier, error) {
	fee, err := parseAmount("entry_fee", t.EntryFee)
	if err != nil {
		return models.Tier{}, err
	}
	commission, err := parseAmount("commission", t.Commission)
	if err != nil {
		return models.Tier{}, err
	}
	minimum, err := parseAmount("minimum_net", t.MinimumNet)
	if err != nil {
		return models.Tier{}, err
	}
	return models.Tier{
		Label:      t.Label,
		EntryFee:   fee,
		Commission: commission,
		Capacity:   t.Capacity,
		MinimumNet: minimum,
	}, nil
}

func parseAmount(name, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s=%q", ErrInvalidAmount, name, value)
	}
	return d, nil
}
