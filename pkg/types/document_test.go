package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemFromDocument(t *testing.T) {
	tests := []struct {
		name      string
		doc       Document
		wantOrder *int
		wantKeys  []string
	}{
		{
			name:      "float order from JSON decoding",
			doc:       Document{"title": "a", "order": float64(3)},
			wantOrder: IntPtr(3),
			wantKeys:  []string{"title"},
		},
		{
			name:      "json.Number order",
			doc:       Document{"title": "a", "order": json.Number("7")},
			wantOrder: IntPtr(7),
			wantKeys:  []string{"title"},
		},
		{
			name:      "missing order",
			doc:       Document{"title": "a"},
			wantOrder: nil,
			wantKeys:  []string{"title"},
		},
		{
			name:      "fractional order is treated as absent",
			doc:       Document{"order": 1.5},
			wantOrder: nil,
			wantKeys:  []string{},
		},
		{
			name:      "string order is treated as absent",
			doc:       Document{"order": "1"},
			wantOrder: nil,
			wantKeys:  []string{},
		},
		{
			name:      "id field is dropped from payload",
			doc:       Document{"id": float64(1), "title": "a", "order": 0},
			wantOrder: IntPtr(0),
			wantKeys:  []string{"title"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := ItemFromDocument("x", tt.doc)
			assert.Equal(t, "x", item.ID)
			assert.Equal(t, tt.wantOrder, item.Order)
			keys := make([]string, 0, len(item.Fields))
			for k := range item.Fields {
				keys = append(keys, k)
			}
			assert.ElementsMatch(t, tt.wantKeys, keys)
		})
	}
}

func TestItemDocumentRoundTrip(t *testing.T) {
	item := Item{ID: "a", Order: IntPtr(2), Fields: Document{"title": "t"}}
	doc := item.Document()
	assert.Equal(t, Document{"title": "t", "order": 2}, doc)

	back := ItemFromDocument("a", doc)
	assert.Equal(t, item, back)

	noOrder := Item{ID: "b", Fields: Document{"title": "u"}}
	assert.NotContains(t, noOrder.Document(), FieldOrder)
	assert.Equal(t, 4, noOrder.OrderOr(4))
	assert.Equal(t, 2, item.OrderOr(4))
}

func TestParsePath(t *testing.T) {
	p, err := ParsePath("config/profile")
	require.NoError(t, err)
	assert.Equal(t, ProfilePath, p)
	assert.Equal(t, "config/profile", p.String())

	for _, bad := range []string{"", "config", "/profile", "config/", "a/b/c"} {
		_, err := ParsePath(bad)
		assert.ErrorIs(t, err, ErrInvalidPath, "path %q", bad)
	}
}

func TestValidateCollection(t *testing.T) {
	for _, name := range StandardCollections {
		assert.NoError(t, ValidateCollection(name))
	}
	assert.NoError(t, ValidateCollection("press-kit"))
	for _, bad := range []string{"", "config", "Projects", "1st", "a/b"} {
		assert.ErrorIs(t, ValidateCollection(bad), ErrInvalidCollection, "name %q", bad)
	}
}

func TestReorderError(t *testing.T) {
	cause := errors.New("disk full")
	err := error(&ReorderError{
		Collection: "projects",
		Applied:    []string{"a"},
		Pending:    []string{"b"},
		Err:        cause,
	})

	assert.ErrorIs(t, err, ErrPartialReorder)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrWriteFailed)
	assert.Contains(t, err.Error(), "applied [a], pending [b]")

	var re *ReorderError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "projects", re.Collection)
}
