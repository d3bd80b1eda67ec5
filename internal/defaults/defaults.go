// Package defaults provides the bundled fallback content rendered while the
// document store holds nothing for an entity. The bundle is read-only: every
// accessor returns a deep copy.
package defaults

import (
	_ "embed"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/mesh-intelligence/showcase/internal/docutil"
	"github.com/mesh-intelligence/showcase/pkg/types"
)

//go:embed defaults.toml
var bundled []byte

// profileKey is the top-level table holding the profile document.
const profileKey = "profile"

// Bundle is a parsed set of default content.
type Bundle struct {
	profile     types.Document
	collections map[string][]types.Item
}

var loadBundled = sync.OnceValues(func() (*Bundle, error) {
	return Parse(bundled)
})

// Load returns the bundle compiled into the binary.
func Load() (*Bundle, error) {
	return loadBundled()
}

// MustLoad is Load for callers that treat a broken bundle as a build error.
func MustLoad() *Bundle {
	b, err := Load()
	if err != nil {
		panic(err)
	}
	return b
}

// Parse decodes a TOML bundle. The profile table becomes the profile
// document; every array of tables becomes a collection whose items are
// ordered by position. Items without an id get "default-<collection>-<n>".
func Parse(data []byte) (*Bundle, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding defaults: %w", err)
	}

	b := &Bundle{
		profile:     types.Document{},
		collections: make(map[string][]types.Item),
	}
	for key, value := range raw {
		if key == profileKey {
			doc, ok := value.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("defaults: %s must be a table", profileKey)
			}
			b.profile = docutil.Clone(doc)
			continue
		}
		if err := types.ValidateCollection(key); err != nil {
			return nil, fmt.Errorf("defaults: %q: %w", key, err)
		}
		rows, ok := tables(value)
		if !ok {
			return nil, fmt.Errorf("defaults: %s must be an array of tables", key)
		}
		items := make([]types.Item, 0, len(rows))
		for i, row := range rows {
			doc := docutil.Clone(row)
			id, _ := doc["id"].(string)
			if id == "" {
				id = fmt.Sprintf("default-%s-%d", key, i+1)
			}
			item := types.ItemFromDocument(id, doc)
			if item.Order == nil {
				item.Order = types.IntPtr(i)
			}
			items = append(items, item)
		}
		b.collections[key] = items
	}
	return b, nil
}

// tables accepts both shapes the decoder produces for an array of tables.
func tables(v any) ([]map[string]any, bool) {
	switch t := v.(type) {
	case []map[string]any:
		return t, true
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, e := range t {
			m, ok := e.(map[string]any)
			if !ok {
				return nil, false
			}
			out = append(out, m)
		}
		return out, true
	default:
		return nil, false
	}
}

// ProfileDocument returns a copy of the default profile document.
func (b *Bundle) ProfileDocument() types.Document {
	return docutil.Clone(b.profile)
}

// Profile returns the default profile with typed accessors.
func (b *Bundle) Profile() types.ProfileConfig {
	return types.ProfileConfig{Fields: b.ProfileDocument()}
}

// Items returns a copy of the default items of collection in bundle order.
// Unknown collections yield an empty, non-nil slice.
func (b *Bundle) Items(collection string) []types.Item {
	items, ok := b.collections[collection]
	if !ok {
		return []types.Item{}
	}
	return docutil.Items(items)
}

// Has reports whether the bundle carries defaults for collection.
func (b *Bundle) Has(collection string) bool {
	_, ok := b.collections[collection]
	return ok
}

// IsDefault reports whether id names a default item of collection.
func (b *Bundle) IsDefault(collection, id string) bool {
	return slices.ContainsFunc(b.collections[collection], func(it types.Item) bool {
		return it.ID == id
	})
}

// Collections returns the bundled collection names, sorted.
func (b *Bundle) Collections() []string {
	names := make([]string, 0, len(b.collections))
	for name := range b.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
