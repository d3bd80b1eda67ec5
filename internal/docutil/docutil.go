// Package docutil copies and merges JSON-compatible documents.
package docutil

import "github.com/mesh-intelligence/showcase/pkg/types"

// Clone returns a deep copy of doc. Nested maps and slices are copied so the
// result shares no mutable state with doc. A nil doc yields an empty one.
func Clone(doc types.Document) types.Document {
	out := make(types.Document, len(doc))
	for k, v := range doc {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies a JSON-compatible value. Nested maps of any key set
// are normalized to map[string]any and slices to []any.
func CloneValue(v any) any {
	switch t := v.(type) {
	case types.Document:
		return map[string]any(Clone(t))
	case map[string]any:
		return map[string]any(Clone(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	case int64:
		return int(t)
	default:
		return v
	}
}

// Merge returns base overlaid with patch: top-level keys in patch replace
// those in base, keys absent from patch are kept. Neither input is modified.
func Merge(base, patch types.Document) types.Document {
	out := Clone(base)
	for k, v := range patch {
		out[k] = CloneValue(v)
	}
	return out
}

// Items deep-copies a slice of items.
func Items(items []types.Item) []types.Item {
	out := make([]types.Item, len(items))
	for i, it := range items {
		out[i] = types.Item{ID: it.ID, Fields: Clone(it.Fields)}
		if it.Order != nil {
			out[i].Order = types.IntPtr(*it.Order)
		}
	}
	return out
}
