package config

import "errors"

var (
	// ErrInvalidListenAddr indicates the listen address is not host:port.
	ErrInvalidListenAddr = errors.New("config: invalid listen address")

	// ErrUnknownStore indicates the store backend is not recognized.
	ErrUnknownStore = errors.New("config: invalid store (must be \"memory\", \"bolt\", or \"postgres\")")

	// ErrMissingDatabaseURL indicates the postgres store was selected without a DSN.
	ErrMissingDatabaseURL = errors.New("config: DATABASE_URL is required for the postgres store")

	// ErrEmptyBoltPath indicates the bolt store was selected without a file path.
	ErrEmptyBoltPath = errors.New("config: bolt path must not be empty")

	// ErrEmptyPoolAccount indicates the custodian pool account is empty.
	ErrEmptyPoolAccount = errors.New("config: pool account must not be empty")

	// ErrAuthorityIsPool indicates the settlement authority is the pool itself.
	ErrAuthorityIsPool = errors.New("config: settlement authority must not be the pool account")

	// ErrInvalidAmount indicates a tier amount is not a decimal number.
	ErrInvalidAmount = errors.New("config: invalid tier amount")
)
