// Document and item entities exchanged with the Document Store.
package types

import (
	"encoding/json"
	"math"
	"strings"
)

// FieldOrder is the reserved document field holding an item's manual order key.
const FieldOrder = "order"

// Document is a mapping of string keys to JSON-compatible values.
type Document map[string]any

// Path addresses a single document: a collection name and a document ID.
type Path struct {
	Collection string
	ID         string
}

// String renders the path as "collection/id".
func (p Path) String() string {
	return p.Collection + "/" + p.ID
}

// ParsePath parses "collection/id". Returns ErrInvalidPath when either part is
// missing.
func ParsePath(s string) (Path, error) {
	collection, id, ok := strings.Cut(s, "/")
	if !ok || collection == "" || id == "" || strings.Contains(id, "/") {
		return Path{}, ErrInvalidPath
	}
	return Path{Collection: collection, ID: id}, nil
}

// DocumentSnapshot is one emission of a document subscription. Exists is
// false when the document has never been written.
type DocumentSnapshot struct {
	Path   Path
	Exists bool
	Data   Document
}

// Item is one member of a named collection.
type Item struct {
	// ID is assigned by the store on insert and never changes.
	ID string

	// Order is the manual order key; nil when the stored document has no
	// order field (items written before ordering existed).
	Order *int

	// Fields is the collection-specific payload, without id and order.
	Fields Document
}

// OrderOr returns the stored order value, or fallback when none is stored.
func (i Item) OrderOr(fallback int) int {
	if i.Order == nil {
		return fallback
	}
	return *i.Order
}

// String returns a string field of the payload, or "" when absent or not a
// string.
func (i Item) String(field string) string {
	s, _ := i.Fields[field].(string)
	return s
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// ItemFromDocument splits a stored document into an Item. A non-integral or
// non-numeric order value is treated as absent.
func ItemFromDocument(id string, doc Document) Item {
	item := Item{ID: id, Fields: make(Document, len(doc))}
	for k, v := range doc {
		if k == FieldOrder {
			if n, ok := toInt(v); ok {
				item.Order = IntPtr(n)
			}
			continue
		}
		if k == "id" {
			continue
		}
		item.Fields[k] = v
	}
	return item
}

// Document returns the stored form of the item: its fields plus the order key
// when set.
func (i Item) Document() Document {
	doc := make(Document, len(i.Fields)+1)
	for k, v := range i.Fields {
		doc[k] = v
	}
	if i.Order != nil {
		doc[FieldOrder] = *i.Order
	}
	return doc
}

// toInt converts JSON-decoded numbers to int.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}
