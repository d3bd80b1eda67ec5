package types

import (
	"errors"
	"time"
)

// Config holds backend selection and parameters for DocumentStore attach and
// for the live bindings built on top of it.
type Config struct {
	Backend      string      `json:"backend" yaml:"backend" mapstructure:"backend"`
	DataDir      string      `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	SyncStrategy string      `json:"sync_strategy" yaml:"sync_strategy" mapstructure:"sync_strategy"`
	WatchFiles   bool        `json:"watch_files" yaml:"watch_files" mapstructure:"watch_files"`
	Retry        RetryConfig `json:"retry" yaml:"retry" mapstructure:"retry"`
}

// RetryConfig controls how a live binding re-subscribes after a subscription
// failure. MaxAttempts of zero disables re-subscription.
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay" yaml:"initial_delay" mapstructure:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay" yaml:"max_delay" mapstructure:"max_delay"`
	Multiplier   float64       `json:"multiplier" yaml:"multiplier" mapstructure:"multiplier"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// Sync strategies for persisting the JSONL source of truth.
const (
	SyncImmediate = "immediate"
	SyncOnClose   = "on_close"
)

// DefaultRetryConfig is used when no retry section is configured.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:  5,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     30 * time.Second,
	Multiplier:   2,
}

// Config validation errors.
var (
	ErrBackendEmpty        = errors.New("backend must not be empty")
	ErrBackendUnknown      = errors.New("unknown backend")
	ErrSyncStrategyUnknown = errors.New("unknown sync strategy")
	ErrRetryInvalid        = errors.New("retry settings must not be negative")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	switch c.SyncStrategy {
	case "", SyncImmediate, SyncOnClose:
	default:
		return ErrSyncStrategyUnknown
	}
	r := c.Retry
	if r.MaxAttempts < 0 || r.InitialDelay < 0 || r.MaxDelay < 0 || r.Multiplier < 0 {
		return ErrRetryInvalid
	}
	return nil
}

// GetSyncStrategy returns the configured strategy, defaulting to immediate.
func (c Config) GetSyncStrategy() string {
	if c.SyncStrategy == "" {
		return SyncImmediate
	}
	return c.SyncStrategy
}
