package cli

import (
	"fmt"

	"github.com/mesh-intelligence/showcase/internal/content"
	"github.com/mesh-intelligence/showcase/internal/defaults"
	"github.com/mesh-intelligence/showcase/internal/live"
	"github.com/mesh-intelligence/showcase/internal/paths"
	"github.com/mesh-intelligence/showcase/internal/session"
	"github.com/mesh-intelligence/showcase/pkg/sqlite"
	"github.com/mesh-intelligence/showcase/pkg/types"
)

// workspace is an attached document store with the content store and
// editor built on it. The caller must Close it.
type workspace struct {
	dataDir string
	backend types.Backend
	content *content.Store
	editor  *session.Editor
}

// open resolves the data directory and attaches the store. The file watcher
// runs only when watch is set and the configuration enables it.
func (a *app) open(watch bool) (*workspace, error) {
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, a.settings.Store.DataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}

	cfg := a.settings.Store
	cfg.DataDir = dataDir
	cfg.WatchFiles = cfg.WatchFiles && watch
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	bundle, err := defaults.Load()
	if err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	backend := sqlite.NewBackend(sqlite.WithLogger(a.log))
	if err := backend.Attach(cfg); err != nil {
		return nil, fmt.Errorf("attach backend: %w", err)
	}

	cs := content.New(backend, bundle,
		content.WithLogger(a.log),
		content.WithBindingOptions(live.WithRetry(cfg.Retry), live.WithLogger(a.log)),
	)
	return &workspace{
		dataDir: dataDir,
		backend: backend,
		content: cs,
		editor:  session.New(backend, cs, session.WithLogger(a.log)),
	}, nil
}

// Close releases the subscriptions and detaches the store.
func (w *workspace) Close() error {
	w.content.Close()
	return w.backend.Detach()
}
