// Tests for subscriptions and change delivery.
package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/showcase/pkg/types"
)

// recorder collects emissions from one subscription.
type recorder struct {
	mu     sync.Mutex
	docs   []types.DocumentSnapshot
	lists  [][]types.Item
	errors []error
}

func (r *recorder) onDoc(s types.DocumentSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, s)
}

func (r *recorder) onItems(items []types.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists = append(r.lists, items)
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

func (r *recorder) snapshot() ([]types.DocumentSnapshot, [][]types.Item, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.DocumentSnapshot(nil), r.docs...),
		append([][]types.Item(nil), r.lists...),
		append([]error(nil), r.errors...)
}

func TestSubscribeCollection_InitialAndUpdates(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	_, err := b.AddItem(ctx, "projects", types.Document{"title": "first"})
	require.NoError(t, err)

	rec := &recorder{}
	unsub, err := b.SubscribeCollection("projects", rec.onItems, rec.onError)
	require.NoError(t, err)
	defer unsub()
	b.Flush()

	_, lists, _ := rec.snapshot()
	require.Len(t, lists, 1, "current value is emitted on subscribe")
	assert.Len(t, lists[0], 1)

	_, err = b.AddItem(ctx, "projects", types.Document{"title": "second"})
	require.NoError(t, err)
	_, err = b.AddItem(ctx, "visual", types.Document{"title": "other collection"})
	require.NoError(t, err)
	b.Flush()

	_, lists, errs := rec.snapshot()
	require.Len(t, lists, 2, "writes to other collections are not delivered")
	assert.Len(t, lists[1], 2)
	assert.Empty(t, errs)
}

func TestSubscribeDocument_FiltersByID(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	rec := &recorder{}
	unsub, err := b.SubscribeDocument(types.ProfilePath, rec.onDoc, rec.onError)
	require.NoError(t, err)
	defer unsub()
	b.Flush()

	docs, _, _ := rec.snapshot()
	require.Len(t, docs, 1)
	assert.False(t, docs[0].Exists)

	require.NoError(t, b.SetDocument(ctx, types.Path{Collection: "config", ID: "other"}, types.Document{"x": 1}, types.SetOptions{}))
	require.NoError(t, b.SetDocument(ctx, types.ProfilePath, types.Document{"siteTitle": "studio"}, types.SetOptions{Merge: true}))
	b.Flush()

	docs, _, _ = rec.snapshot()
	require.Len(t, docs, 2)
	assert.True(t, docs[1].Exists)
	assert.Equal(t, "studio", docs[1].Data["siteTitle"])
}

func TestUnsubscribe_StopsDeliveryAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	rec := &recorder{}
	unsub, err := b.SubscribeCollection("clip", rec.onItems, rec.onError)
	require.NoError(t, err)
	b.Flush()
	assert.Equal(t, 1, b.Subscribers())

	unsub()
	unsub()
	assert.Equal(t, 0, b.Subscribers())

	_, err = b.AddItem(ctx, "clip", types.Document{"title": "late"})
	require.NoError(t, err)
	b.Flush()

	_, lists, _ := rec.snapshot()
	assert.Len(t, lists, 1)
}

func TestSubscribe_ListenerMayWrite(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	var once sync.Once
	done := make(chan struct{})
	unsub, err := b.SubscribeCollection("crew", func(items []types.Item) {
		if len(items) == 1 {
			once.Do(func() {
				_, err := b.AddItem(ctx, "crew", types.Document{"title": "from listener"})
				assert.NoError(t, err)
				close(done)
			})
		}
	}, nil)
	require.NoError(t, err)
	defer unsub()

	_, err = b.AddItem(ctx, "crew", types.Document{"title": "seed"})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("listener write did not complete")
	}
	b.Flush()
	items, err := b.ListItems(ctx, "crew")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestSubscribe_ReceivesCopies(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	_, err := b.AddItem(ctx, "projects", types.Document{"title": "a"})
	require.NoError(t, err)

	first := &recorder{}
	second := &recorder{}
	u1, err := b.SubscribeCollection("projects", first.onItems, nil)
	require.NoError(t, err)
	defer u1()
	u2, err := b.SubscribeCollection("projects", second.onItems, nil)
	require.NoError(t, err)
	defer u2()
	b.Flush()

	_, l1, _ := first.snapshot()
	_, l2, _ := second.snapshot()
	l1[0][0].Fields["title"] = "mutated"
	assert.Equal(t, "a", l2[0][0].String("title"))
}

func TestWatchFiles_ReloadsExternalWrites(t *testing.T) {
	if testing.Short() {
		t.Skip("waits on the file watcher")
	}
	dir := t.TempDir()
	ctx := context.Background()

	watching := attachAt(t, dir, types.SyncImmediate, true)
	rec := &recorder{}
	unsub, err := watching.SubscribeCollection("projects", rec.onItems, rec.onError)
	require.NoError(t, err)
	defer unsub()
	watching.Flush()

	// A second process writes the same data directory.
	writer := attachAt(t, dir, types.SyncImmediate, false)
	id, err := writer.AddItem(ctx, "projects", types.Document{"title": "remote"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, lists, _ := rec.snapshot()
		last := lists[len(lists)-1]
		return len(last) == 1 && last[0].ID == id
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatchFiles_IgnoresOwnWrites(t *testing.T) {
	if testing.Short() {
		t.Skip("waits on the file watcher")
	}
	dir := t.TempDir()
	ctx := context.Background()

	b := attachAt(t, dir, types.SyncImmediate, true)
	rec := &recorder{}
	unsub, err := b.SubscribeCollection("projects", rec.onItems, rec.onError)
	require.NoError(t, err)
	defer unsub()

	_, err = b.AddItem(ctx, "projects", types.Document{"title": "local"})
	require.NoError(t, err)

	// Give the watcher time to see the rename of our own write.
	time.Sleep(4 * reloadDebounce)
	b.Flush()

	_, lists, errs := rec.snapshot()
	assert.Len(t, lists, 2, "initial emission plus one for the write")
	assert.Empty(t, errs)
}
