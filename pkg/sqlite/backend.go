// Package sqlite provides the public API for the SQLite document store.
// This package exposes the factory function for creating SQLite backends
// while keeping implementation details internal.
package sqlite

import (
	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/showcase/internal/sqlite"
	"github.com/mesh-intelligence/showcase/pkg/types"
)

// Option configures a backend created by NewBackend.
type Option = sqlite.Option

// WithLogger sets the logger used by the backend.
func WithLogger(log zerolog.Logger) Option {
	return sqlite.WithLogger(log)
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	backend := sqlite.NewBackend()
//	err := backend.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".showcase-data",
//	})
//	defer backend.Detach()
func NewBackend(opts ...Option) types.Backend {
	return sqlite.NewBackend(opts...)
}
