// Package sqlite implements the SQLite Document Store for the showcase
// content layer.
// This file holds the schema DDL.
package sqlite

// documentsDDL creates the single documents table. Every collection, the
// config singletons included, shares this table; body holds the document
// as a JSON object.
const documentsDDL = `CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    doc_id TEXT NOT NULL,
    body TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (collection, doc_id)
);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents (collection);`

// documentsJSONL is the source-of-truth file inside DataDir.
const documentsJSONL = "documents.jsonl"

