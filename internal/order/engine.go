// Package order reorders collection items by rewriting their order keys.
//
// Every operation takes the collection's items in rendered order (see
// live.SortItems) and translates positions in that sequence into order-key
// writes. Writes go through types.BatchWriter when the store supports it, so
// they apply atomically; otherwise they are issued one at a time and a
// partial failure is reported as a *types.ReorderError.
//
// Two reorders of the same collection must be serialized by the caller.
package order

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/showcase/internal/live"
	"github.com/mesh-intelligence/showcase/internal/logging"
	"github.com/mesh-intelligence/showcase/internal/metrics"
	"github.com/mesh-intelligence/showcase/pkg/types"
)

// Engine issues reorder writes against a document store.
type Engine struct {
	docs types.DocumentStore
	log  zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used by the engine.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = logging.Component(log, "order")
	}
}

// New returns an engine writing to docs.
func New(docs types.DocumentStore, opts ...Option) *Engine {
	e := &Engine{docs: docs, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SwapWrites returns the writes that exchange the items at positions a and
// b. Usually that is an exchange of their two order keys, with an item
// without a stored key contributing its position. When exchanging keys
// would not exchange the rendered positions, as with equal keys or a key
// moved past an unordered item, the writes instead reindex the whole
// collection in its swapped order. Swapping a position with itself needs
// no writes.
func SwapWrites(collection string, items []types.Item, a, b int) ([]types.Write, error) {
	if err := checkIndex(items, a); err != nil {
		return nil, err
	}
	if err := checkIndex(items, b); err != nil {
		return nil, err
	}
	if a == b {
		return nil, nil
	}

	swapped := slices.Clone(items)
	swapped[a], swapped[b] = swapped[b], swapped[a]

	first, second := items[a], items[b]
	writes := []types.Write{
		orderWrite(collection, first.ID, second.OrderOr(b)),
		orderWrite(collection, second.ID, first.OrderOr(a)),
	}
	if rendersAs(items, writes, swapped) {
		return writes, nil
	}
	return ReindexWrites(collection, swapped), nil
}

// rendersAs reports whether applying writes to items yields want in
// rendered order.
func rendersAs(items []types.Item, writes []types.Write, want []types.Item) bool {
	keys := make(map[string]int, len(writes))
	for _, w := range writes {
		keys[w.ID] = w.Fields[types.FieldOrder].(int)
	}
	got := make([]types.Item, len(items))
	for i, it := range items {
		got[i] = types.Item{ID: it.ID, Order: it.Order}
		if k, ok := keys[it.ID]; ok {
			got[i].Order = types.IntPtr(k)
		}
	}
	live.SortItems(got)
	for i := range got {
		if got[i].ID != want[i].ID {
			return false
		}
	}
	return true
}

// ReindexWrites returns one write per item assigning order = position.
func ReindexWrites(collection string, items []types.Item) []types.Write {
	writes := make([]types.Write, len(items))
	for i, it := range items {
		writes[i] = orderWrite(collection, it.ID, i)
	}
	return writes
}

// Swap exchanges the order keys of the items at rendered positions a and b.
// Returns ErrOutOfRange, without writing, when either position is outside
// items.
func (e *Engine) Swap(ctx context.Context, collection string, items []types.Item, a, b int) error {
	writes, err := SwapWrites(collection, items, a, b)
	if err != nil {
		return err
	}
	err = e.apply(ctx, collection, writes)
	metrics.RecordWrite("swap", err)
	if err == nil && len(writes) > 0 {
		e.log.Debug().Str("collection", collection).Int("a", a).Int("b", b).Msg("swapped")
	}
	return err
}

// MoveUp moves the item at index one position toward the front. It is a
// no-op at index 0.
func (e *Engine) MoveUp(ctx context.Context, collection string, items []types.Item, index int) error {
	if err := checkIndex(items, index); err != nil {
		return err
	}
	if index == 0 {
		return nil
	}
	return e.Swap(ctx, collection, items, index-1, index)
}

// MoveDown moves the item at index one position toward the end. It is a
// no-op at the last index.
func (e *Engine) MoveDown(ctx context.Context, collection string, items []types.Item, index int) error {
	if err := checkIndex(items, index); err != nil {
		return err
	}
	if index == len(items)-1 {
		return nil
	}
	return e.Swap(ctx, collection, items, index, index+1)
}

// Reindex rewrites order = 0..n-1 over items in their rendered order. It
// repairs duplicate, missing, or sparse keys and is idempotent.
func (e *Engine) Reindex(ctx context.Context, collection string, items []types.Item) error {
	err := e.apply(ctx, collection, ReindexWrites(collection, items))
	metrics.RecordWrite("reindex", err)
	if err == nil {
		e.log.Info().Str("collection", collection).Int("items", len(items)).Msg("reindexed")
	}
	return err
}

// apply issues writes atomically when the store can batch them, one at a
// time otherwise.
func (e *Engine) apply(ctx context.Context, collection string, writes []types.Write) error {
	if len(writes) == 0 {
		return nil
	}
	if bw, ok := e.docs.(types.BatchWriter); ok {
		if err := bw.ApplyBatch(ctx, writes); err != nil {
			e.log.Error().Err(err).Str("collection", collection).Msg("reorder batch failed")
			return fmt.Errorf("%w: %w", types.ErrWriteFailed, err)
		}
		return nil
	}

	for i, w := range writes {
		err := ctx.Err()
		if err == nil {
			err = e.docs.UpdateItem(ctx, w.Collection, w.ID, w.Fields)
		}
		if err == nil {
			continue
		}
		err = fmt.Errorf("%w: %w", types.ErrWriteFailed, err)
		if i == 0 {
			e.log.Error().Err(err).Str("collection", collection).Msg("reorder failed")
			return err
		}
		rerr := &types.ReorderError{
			Collection: collection,
			Applied:    ids(writes[:i]),
			Pending:    ids(writes[i:]),
			Err:        err,
		}
		metrics.RecordPartialReorder(collection)
		e.log.Error().Err(err).Str("collection", collection).
			Strs("applied", rerr.Applied).Strs("pending", rerr.Pending).
			Msg("reorder partially applied; reindex to repair")
		return rerr
	}
	return nil
}

func checkIndex(items []types.Item, i int) error {
	if i < 0 || i >= len(items) {
		return fmt.Errorf("%w: %d not in [0, %d)", types.ErrOutOfRange, i, len(items))
	}
	return nil
}

func orderWrite(collection, id string, order int) types.Write {
	return types.Write{
		Collection: collection,
		ID:         id,
		Fields:     types.Document{types.FieldOrder: order},
	}
}

func ids(writes []types.Write) []string {
	out := make([]string, len(writes))
	for i, w := range writes {
		out[i] = w.ID
	}
	return out
}

// IsPartial reports whether err left a collection partially reordered.
func IsPartial(err error) bool {
	return errors.Is(err, types.ErrPartialReorder)
}
