// This file implements the document and item operations of
// types.DocumentStore.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/showcase/internal/docutil"
	"github.com/mesh-intelligence/showcase/pkg/types"
)

// GetDocument reads one document. The bool is false when it does not exist.
func (b *Backend) GetDocument(ctx context.Context, path types.Path) (types.Document, bool, error) {
	if path.Collection == "" || path.ID == "" {
		return nil, false, types.ErrInvalidPath
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, false, types.ErrStoreDetached
	}
	return b.getLocked(ctx, b.db, path)
}

// SetDocument writes the document at path, creating it when absent. With
// Merge the given fields overlay the stored ones.
func (b *Backend) SetDocument(ctx context.Context, path types.Path, doc types.Document, opts types.SetOptions) error {
	if path.Collection == "" || path.ID == "" {
		return types.ErrInvalidPath
	}
	if doc == nil {
		return types.ErrInvalidData
	}

	if err := b.write(ctx, func(tx *sql.Tx, now string) error {
		existing, exists, err := b.getLocked(ctx, tx, path)
		if err != nil {
			return err
		}
		next := docutil.Clone(doc)
		if opts.Merge && exists {
			next = docutil.Merge(existing, doc)
		}
		if exists {
			return updateBody(ctx, tx, path, next, now)
		}
		return insertBody(ctx, tx, path, next, now)
	}); err != nil {
		return err
	}
	b.notify(path.Collection, path.ID)
	return nil
}

// AddItem inserts doc as a new item and returns its generated UUID v7.
func (b *Backend) AddItem(ctx context.Context, collection string, doc types.Document) (string, error) {
	if err := types.ValidateCollection(collection); err != nil {
		return "", err
	}
	if doc == nil {
		return "", types.ErrInvalidData
	}

	id := generateID()
	path := types.Path{Collection: collection, ID: id}
	if err := b.write(ctx, func(tx *sql.Tx, now string) error {
		return insertBody(ctx, tx, path, docutil.Clone(doc), now)
	}); err != nil {
		return "", err
	}
	b.notify(collection, id)
	return id, nil
}

// UpdateItem merges partial into the stored item.
// Returns ErrNotFound if no item exists with that ID.
func (b *Backend) UpdateItem(ctx context.Context, collection, id string, partial types.Document) error {
	if id == "" {
		return types.ErrInvalidID
	}
	if err := b.write(ctx, func(tx *sql.Tx, now string) error {
		return b.mergeLocked(ctx, tx, types.Path{Collection: collection, ID: id}, partial, now)
	}); err != nil {
		return err
	}
	b.notify(collection, id)
	return nil
}

// ApplyBatch merges every write in one transaction; if any write fails no
// write is applied.
func (b *Backend) ApplyBatch(ctx context.Context, writes []types.Write) error {
	if len(writes) == 0 {
		return nil
	}
	for _, w := range writes {
		if w.ID == "" {
			return types.ErrInvalidID
		}
	}
	if err := b.write(ctx, func(tx *sql.Tx, now string) error {
		for _, w := range writes {
			path := types.Path{Collection: w.Collection, ID: w.ID}
			if err := b.mergeLocked(ctx, tx, path, w.Fields, now); err != nil {
				return fmt.Errorf("batch write %s: %w", path, err)
			}
		}
		return nil
	}); err != nil {
		return err
	}

	changed := make(map[string][]string)
	for _, w := range writes {
		changed[w.Collection] = append(changed[w.Collection], w.ID)
	}
	for collection, ids := range changed {
		b.notify(collection, ids...)
	}
	return nil
}

// DeleteItem removes the item.
// Returns ErrNotFound if no item exists with that ID.
func (b *Backend) DeleteItem(ctx context.Context, collection, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	if err := b.write(ctx, func(tx *sql.Tx, _ string) error {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM documents WHERE collection = ? AND doc_id = ?", collection, id)
		if err != nil {
			return fmt.Errorf("deleting %s/%s: %w", collection, id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return types.ErrNotFound
		}
		return nil
	}); err != nil {
		return err
	}
	b.notify(collection, id)
	return nil
}

// ListItems returns every item of the collection in storage order.
func (b *Backend) ListItems(ctx context.Context, collection string) ([]types.Item, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	return b.listLocked(ctx, collection)
}

// write runs fn inside a transaction under the write lock. Under the
// immediate strategy documents.jsonl is rewritten from the transaction
// before it commits, so a write that fails to persist leaves neither the
// database nor the file changed.
func (b *Backend) write(ctx context.Context, fn func(tx *sql.Tx, now string) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrStoreDetached
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}
	previous := b.persisted
	if err := b.beforeCommitLocked(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		b.restoreLocked(previous)
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// mergeLocked overlays partial onto the stored document at path.
func (b *Backend) mergeLocked(ctx context.Context, tx *sql.Tx, path types.Path, partial types.Document, now string) error {
	existing, exists, err := b.getLocked(ctx, tx, path)
	if err != nil {
		return err
	}
	if !exists {
		return types.ErrNotFound
	}
	return updateBody(ctx, tx, path, docutil.Merge(existing, partial), now)
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (b *Backend) getLocked(ctx context.Context, q queryer, path types.Path) (types.Document, bool, error) {
	var body string
	err := q.QueryRowContext(ctx,
		"SELECT body FROM documents WHERE collection = ? AND doc_id = ?",
		path.Collection, path.ID,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting %s: %w", path, err)
	}
	doc, err := decodeBody(body)
	if err != nil {
		return nil, false, fmt.Errorf("decoding %s: %w", path, err)
	}
	return doc, true, nil
}

func (b *Backend) listLocked(ctx context.Context, collection string) ([]types.Item, error) {
	rows, err := b.db.QueryContext(ctx,
		"SELECT doc_id, body FROM documents WHERE collection = ? ORDER BY rowid", collection)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", collection, err)
	}
	defer rows.Close()

	items := []types.Item{}
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", collection, err)
		}
		doc, err := decodeBody(body)
		if err != nil {
			return nil, fmt.Errorf("decoding %s/%s: %w", collection, id, err)
		}
		items = append(items, types.ItemFromDocument(id, doc))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", collection, err)
	}
	return items, nil
}

func insertBody(ctx context.Context, tx *sql.Tx, path types.Path, doc types.Document, now string) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidData, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO documents (collection, doc_id, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		path.Collection, path.ID, string(body), now, now,
	); err != nil {
		return fmt.Errorf("inserting %s: %w", path, err)
	}
	return nil
}

func updateBody(ctx context.Context, tx *sql.Tx, path types.Path, doc types.Document, now string) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidData, err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE documents SET body = ?, updated_at = ? WHERE collection = ? AND doc_id = ?",
		string(body), now, path.Collection, path.ID,
	); err != nil {
		return fmt.Errorf("updating %s: %w", path, err)
	}
	return nil
}

func decodeBody(body string) (types.Document, error) {
	var doc types.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = types.Document{}
	}
	return doc, nil
}
