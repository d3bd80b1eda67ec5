// This file loads documents.jsonl into SQLite and dumps it back.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// loadDocuments replaces the contents of the documents table with the given
// JSONL records inside one transaction: either every record loads or the
// table is left as it was. Records that are malformed, lack a collection or
// id, or whose body is not a JSON object are skipped. Unknown fields are
// ignored.
func loadDocuments(ctx context.Context, db *sql.DB, records []json.RawMessage) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return 0, fmt.Errorf("clearing documents: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR REPLACE INTO documents (collection, doc_id, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("preparing document insert: %w", err)
	}
	defer stmt.Close()

	loaded := 0
	for _, rec := range records {
		var d documentJSON
		if err := json.Unmarshal(rec, &d); err != nil {
			continue
		}
		if d.Collection == "" || d.DocID == "" {
			continue
		}
		var body map[string]any
		if err := json.Unmarshal(d.Body, &body); err != nil || body == nil {
			continue
		}
		if _, err := stmt.ExecContext(ctx, d.Collection, d.DocID, string(d.Body), d.CreatedAt, d.UpdatedAt); err != nil {
			return 0, fmt.Errorf("loading %s/%s: %w", d.Collection, d.DocID, err)
		}
		loaded++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing load transaction: %w", err)
	}
	return loaded, nil
}

// dumpDocuments returns every stored document as JSONL records in storage
// order.
func dumpDocuments(ctx context.Context, q execer) ([]json.RawMessage, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT collection, doc_id, body, created_at, updated_at FROM documents ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var records []json.RawMessage
	for rows.Next() {
		var d documentJSON
		var body string
		if err := rows.Scan(&d.Collection, &d.DocID, &body, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		d.Body = json.RawMessage(body)
		rec, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("encoding %s/%s: %w", d.Collection, d.DocID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return records, nil
}
