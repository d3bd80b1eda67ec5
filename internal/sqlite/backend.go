// Package sqlite implements the SQLite Document Store for the showcase
// content layer: SQLite is the query engine, documents.jsonl in DataDir is
// the source of truth, and committed writes are pushed to subscribers.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/showcase/internal/logging"
	"github.com/mesh-intelligence/showcase/pkg/types"
)

// Compile-time interface check.
var _ types.Backend = (*Backend)(nil)

// Backend implements types.DocumentStore on SQLite.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	log      zerolog.Logger

	subs      *registry
	dispatch  *dispatcher
	watcher   *fileWatcher
	persisted []byte // JSONL content last written or loaded by this process
	dirty     bool   // unpersisted writes under the on_close strategy
	jsonlPath string
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger used by the backend.
func WithLogger(log zerolog.Logger) Option {
	return func(b *Backend) {
		b.log = logging.Component(log, "sqlite")
	}
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		log:  zerolog.Nop(),
		subs: newRegistry(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach initializes the backend with the given configuration.
// Creates DataDir if it does not exist, builds a fresh in-memory SQLite
// database, and loads documents.jsonl into it. When WatchFiles is set,
// changes written to documents.jsonl by another process are reloaded and
// pushed to subscribers.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}

	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	// The database is an in-memory cache of documents.jsonl. A single
	// connection keeps the in-memory database alive for the attach lifetime.
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, documentsDDL); err != nil {
		db.Close()
		return fmt.Errorf("creating schema: %w", err)
	}

	jsonlPath := filepath.Join(dataDir, documentsJSONL)
	content, err := os.ReadFile(jsonlPath)
	if err != nil && !os.IsNotExist(err) {
		db.Close()
		return fmt.Errorf("reading %s: %w", documentsJSONL, err)
	}
	if os.IsNotExist(err) {
		if err := writeFileAtomic(jsonlPath, nil); err != nil {
			db.Close()
			return fmt.Errorf("initializing %s: %w", documentsJSONL, err)
		}
		content = nil
	}
	records, err := parseJSONL(content)
	if err != nil {
		db.Close()
		return fmt.Errorf("parsing %s: %w", documentsJSONL, err)
	}
	n, err := loadDocuments(ctx, db, records)
	if err != nil {
		db.Close()
		return fmt.Errorf("load JSONL: %w", err)
	}

	b.db = db
	b.config = config
	b.jsonlPath = jsonlPath
	b.persisted = content
	b.dirty = false
	b.dispatch = newDispatcher()

	if config.WatchFiles {
		w, err := newFileWatcher(dataDir, documentsJSONL, b.onFileChanged, b.log)
		if err != nil {
			b.dispatch.close()
			db.Close()
			return fmt.Errorf("watching %s: %w", dataDir, err)
		}
		b.watcher = w
	}

	b.attached = true
	b.log.Debug().Str("data_dir", dataDir).Int("documents", n).Msg("attached")
	return nil
}

// Detach releases all resources held by the backend. Pending on_close writes
// are persisted, every subscription is dropped, and the database is closed.
// After Detach, all operations return ErrStoreDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	if !b.attached {
		b.mu.Unlock()
		return nil
	}
	b.attached = false
	dispatch := b.dispatch
	watcher := b.watcher
	b.dispatch = nil
	b.watcher = nil
	b.mu.Unlock()

	// Delivery tasks take the read lock; stop them before closing the db.
	if watcher != nil {
		watcher.stop()
	}
	b.subs.clear()
	dispatch.close()

	b.mu.Lock()
	defer b.mu.Unlock()

	var persistErr error
	if b.dirty {
		persistErr = b.persistLocked(context.Background(), b.db)
	}
	if err := b.db.Close(); err != nil && persistErr == nil {
		persistErr = err
	}
	b.db = nil
	if persistErr != nil {
		return fmt.Errorf("detach: %w", persistErr)
	}
	b.log.Debug().Msg("detached")
	return nil
}

// Flush blocks until every subscriber notification caused by writes made
// before the call has been delivered. It must not be called from inside a
// subscription callback.
func (b *Backend) Flush() {
	b.mu.RLock()
	d := b.dispatch
	b.mu.RUnlock()
	if d != nil {
		d.flush()
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Backend) Subscribers() int {
	return b.subs.count()
}

// generateID generates a new UUID v7 for item IDs.
func generateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}

// beforeCommitLocked persists the JSONL file from tx according to the sync
// strategy. The caller must hold b.mu for writing.
func (b *Backend) beforeCommitLocked(ctx context.Context, tx *sql.Tx) error {
	if b.config.GetSyncStrategy() == types.SyncOnClose {
		b.dirty = true
		return nil
	}
	return b.persistLocked(ctx, tx)
}

// restoreLocked puts back the file content persisted before a transaction
// that failed to commit.
func (b *Backend) restoreLocked(previous []byte) {
	if b.config.GetSyncStrategy() == types.SyncOnClose {
		return
	}
	if err := writeFileAtomic(b.jsonlPath, previous); err != nil {
		b.log.Error().Err(err).Msg("restoring documents.jsonl after failed commit")
		return
	}
	b.persisted = previous
}

// persistLocked rewrites documents.jsonl from q.
func (b *Backend) persistLocked(ctx context.Context, q execer) error {
	records, err := dumpDocuments(ctx, q)
	if err != nil {
		return err
	}
	content := encodeJSONL(records)
	if err := writeFileAtomic(b.jsonlPath, content); err != nil {
		return fmt.Errorf("persisting %s: %w", documentsJSONL, err)
	}
	b.persisted = content
	b.dirty = false
	return nil
}
