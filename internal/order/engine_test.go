package order

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/showcase/internal/live"
	"github.com/mesh-intelligence/showcase/internal/sqlite"
	"github.com/mesh-intelligence/showcase/pkg/types"
)

// sequentialStore records UpdateItem calls and cannot batch.
type sequentialStore struct {
	types.DocumentStore

	mu      sync.Mutex
	writes  []types.Write
	calls   int
	failAt  int // 1-based call that fails; 0 never fails
	failErr error
}

func (s *sequentialStore) UpdateItem(_ context.Context, collection, id string, partial types.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.calls == s.failAt {
		return s.failErr
	}
	s.writes = append(s.writes, types.Write{Collection: collection, ID: id, Fields: partial})
	return nil
}

// batchStore records batches.
type batchStore struct {
	sequentialStore
	batches  [][]types.Write
	batchErr error
}

func (b *batchStore) ApplyBatch(_ context.Context, writes []types.Write) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.batchErr != nil {
		return b.batchErr
	}
	b.batches = append(b.batches, writes)
	return nil
}

func items(orders ...*int) []types.Item {
	out := make([]types.Item, len(orders))
	for i, o := range orders {
		out[i] = types.Item{ID: string(rune('a' + i)), Order: o}
	}
	return out
}

var p = types.IntPtr

func TestSwapWrites(t *testing.T) {
	tests := []struct {
		name  string
		items []types.Item
		a     int
		b     int
		want  []types.Write
	}{
		{
			name:  "exchanges stored keys",
			items: items(p(0), p(4), p(9)),
			a:     0,
			b:     2,
			want: []types.Write{
				orderWrite("projects", "a", 9),
				orderWrite("projects", "c", 0),
			},
		},
		{
			name:  "missing keys fall back to position",
			items: items(p(0), nil, nil),
			a:     1,
			b:     2,
			want: []types.Write{
				orderWrite("projects", "b", 2),
				orderWrite("projects", "c", 1),
			},
		},
		{
			name:  "equal keys reindex in swapped order",
			items: items(p(1), p(1)),
			a:     0,
			b:     1,
			want: []types.Write{
				orderWrite("projects", "b", 0),
				orderWrite("projects", "a", 1),
			},
		},
		{
			name:  "key that would not pass an unordered item reindexes",
			items: items(p(0), p(5), nil),
			a:     1,
			b:     2,
			want: []types.Write{
				orderWrite("projects", "a", 0),
				orderWrite("projects", "c", 1),
				orderWrite("projects", "b", 2),
			},
		},
		{
			name:  "same position writes nothing",
			items: items(p(0), p(1)),
			a:     1,
			b:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SwapWrites("projects", tt.items, tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOutOfRange_NoWrites(t *testing.T) {
	ctx := context.Background()
	store := &sequentialStore{}
	e := New(store)
	list := items(p(0), p(1), p(2))

	tests := []struct {
		name string
		run  func() error
	}{
		{"swap negative", func() error { return e.Swap(ctx, "crew", list, -1, 0) }},
		{"swap past end", func() error { return e.Swap(ctx, "crew", list, 0, 3) }},
		{"move up past end", func() error { return e.MoveUp(ctx, "crew", list, 3) }},
		{"move down negative", func() error { return e.MoveDown(ctx, "crew", list, -1) }},
		{"move up in empty", func() error { return e.MoveUp(ctx, "crew", nil, 0) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), types.ErrOutOfRange)
		})
	}
	assert.Zero(t, store.calls)
}

func TestMove_BoundariesAreNoOps(t *testing.T) {
	ctx := context.Background()
	store := &batchStore{}
	e := New(store)
	list := items(p(0), p(1), p(2))

	require.NoError(t, e.MoveUp(ctx, "clip", list, 0))
	require.NoError(t, e.MoveDown(ctx, "clip", list, 2))
	assert.Empty(t, store.batches)
	assert.Zero(t, store.calls)

	require.NoError(t, e.MoveUp(ctx, "clip", list, 1))
	require.NoError(t, e.MoveDown(ctx, "clip", list, 1))
	require.Len(t, store.batches, 2)
	assert.Equal(t, []types.Write{orderWrite("clip", "a", 1), orderWrite("clip", "b", 0)}, store.batches[0])
	assert.Equal(t, []types.Write{orderWrite("clip", "b", 2), orderWrite("clip", "c", 1)}, store.batches[1])
}

func TestReindex_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := &sequentialStore{}
	e := New(store)
	list := items(p(3), p(3), nil, p(10))

	require.NoError(t, e.Reindex(ctx, "visual", list))
	first := append([]types.Write(nil), store.writes...)
	store.writes = nil
	require.NoError(t, e.Reindex(ctx, "visual", list))

	assert.Equal(t, first, store.writes)
	for i, w := range first {
		assert.Equal(t, types.Document{"order": i}, w.Fields)
	}
}

func TestSequentialFailures(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("quota exceeded")
	list := items(p(0), p(1))

	t.Run("first write fails cleanly", func(t *testing.T) {
		store := &sequentialStore{failAt: 1, failErr: cause}
		err := New(store).Swap(ctx, "projects", list, 0, 1)
		assert.ErrorIs(t, err, types.ErrWriteFailed)
		assert.ErrorIs(t, err, cause)
		assert.False(t, IsPartial(err))
		assert.Empty(t, store.writes)
	})

	t.Run("second write fails partially", func(t *testing.T) {
		store := &sequentialStore{failAt: 2, failErr: cause}
		err := New(store).Swap(ctx, "projects", list, 0, 1)
		require.True(t, IsPartial(err))

		var rerr *types.ReorderError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, "projects", rerr.Collection)
		assert.Equal(t, []string{"a"}, rerr.Applied)
		assert.Equal(t, []string{"b"}, rerr.Pending)
		assert.ErrorIs(t, err, types.ErrWriteFailed)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("cancelled context stops remaining writes", func(t *testing.T) {
		store := &sequentialStore{}
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := New(store).Reindex(cctx, "projects", list)
		assert.ErrorIs(t, err, types.ErrWriteFailed)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, store.calls)
	})
}

func TestBatchFailureIsClean(t *testing.T) {
	store := &batchStore{batchErr: errors.New("aborted")}
	err := New(store).Swap(context.Background(), "projects", items(p(0), p(1)), 0, 1)
	assert.ErrorIs(t, err, types.ErrWriteFailed)
	assert.False(t, IsPartial(err))
	assert.Zero(t, store.calls)
}

func newBackend(t *testing.T) *sqlite.Backend {
	t.Helper()
	b := sqlite.NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { b.Detach() })
	return b
}

func rendered(t *testing.T, b *sqlite.Backend, collection string) []types.Item {
	t.Helper()
	list, err := b.ListItems(context.Background(), collection)
	require.NoError(t, err)
	live.SortItems(list)
	return list
}

func renderedIDs(list []types.Item) []string {
	out := make([]string, len(list))
	for i, it := range list {
		out[i] = it.ID
	}
	return out
}

func TestSwap_ScenarioOnStore(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	byOrder := map[int]string{}
	for _, o := range []int{2, 0, 1} {
		id, err := b.AddItem(ctx, "projects", types.Document{"order": o})
		require.NoError(t, err)
		byOrder[o] = id
	}

	before := rendered(t, b, "projects")
	assert.Equal(t, []string{byOrder[0], byOrder[1], byOrder[2]}, renderedIDs(before))

	e := New(b)
	require.NoError(t, e.Swap(ctx, "projects", before, 0, 2))
	after := rendered(t, b, "projects")
	assert.Equal(t, []string{byOrder[2], byOrder[1], byOrder[0]}, renderedIDs(after))

	// Swapping the same neighbors twice restores the rendered order.
	require.NoError(t, e.Swap(ctx, "projects", after, 0, 1))
	require.NoError(t, e.Swap(ctx, "projects", rendered(t, b, "projects"), 0, 1))
	assert.Equal(t, renderedIDs(after), renderedIDs(rendered(t, b, "projects")))
}

func TestReindex_RepairsDriftOnStore(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	for _, doc := range []types.Document{
		{"order": 5}, {"order": 5}, {"title": "legacy"}, {"order": -2},
	} {
		_, err := b.AddItem(ctx, "crew", doc)
		require.NoError(t, err)
	}

	before := rendered(t, b, "crew")
	e := New(b)
	require.NoError(t, e.Reindex(ctx, "crew", before))

	after := rendered(t, b, "crew")
	assert.Equal(t, renderedIDs(before), renderedIDs(after), "rendered order is preserved")
	for i, it := range after {
		require.NotNil(t, it.Order)
		assert.Equal(t, i, *it.Order)
	}

	require.NoError(t, e.Reindex(ctx, "crew", after))
	assert.Equal(t, after, rendered(t, b, "crew"))
}

func TestSwap_AlwaysExchangesRenderedPositions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		orders []any
		move   func(e *Engine, list []types.Item) error
		want   []int // original rendered positions, in the new rendered order
	}{
		{
			name:   "move down onto an unordered item",
			orders: []any{0, 5, nil},
			move:   func(e *Engine, list []types.Item) error { return e.MoveDown(ctx, "visual", list, 1) },
			want:   []int{0, 2, 1},
		},
		{
			name:   "move down between equal keys",
			orders: []any{1, 1},
			move:   func(e *Engine, list []types.Item) error { return e.MoveDown(ctx, "visual", list, 0) },
			want:   []int{1, 0},
		},
		{
			name:   "swap across duplicates",
			orders: []any{2, 2, 2, 7},
			move:   func(e *Engine, list []types.Item) error { return e.Swap(ctx, "visual", list, 0, 2) },
			want:   []int{2, 1, 0, 3},
		},
		{
			name:   "swap two unordered items",
			orders: []any{nil, nil},
			move:   func(e *Engine, list []types.Item) error { return e.Swap(ctx, "visual", list, 0, 1) },
			want:   []int{1, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend(t)
			for _, o := range tt.orders {
				doc := types.Document{"title": "x"}
				if o != nil {
					doc["order"] = o
				}
				_, err := b.AddItem(ctx, "visual", doc)
				require.NoError(t, err)
			}
			before := rendered(t, b, "visual")
			require.NoError(t, tt.move(New(b), before))

			want := make([]string, len(tt.want))
			for i, pos := range tt.want {
				want[i] = before[pos].ID
			}
			assert.Equal(t, want, renderedIDs(rendered(t, b, "visual")))
		})
	}
}
