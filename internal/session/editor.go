// Package session implements the admin editing surface: drafts of one
// entity that stay local until committed, item deletion, and the reorder
// entry points for collections.
package session

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/showcase/internal/content"
	"github.com/mesh-intelligence/showcase/internal/docutil"
	"github.com/mesh-intelligence/showcase/internal/logging"
	"github.com/mesh-intelligence/showcase/internal/metrics"
	"github.com/mesh-intelligence/showcase/internal/order"
	"github.com/mesh-intelligence/showcase/pkg/types"
)

// Editor opens drafts against the rendered content and writes them to the
// document store.
type Editor struct {
	docs    types.DocumentStore
	content *content.Store
	engine  *order.Engine
	log     zerolog.Logger
}

// Option configures an Editor.
type Option func(*Editor)

// WithLogger sets the logger used by the editor and its order engine.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Editor) {
		e.log = logging.Component(log, "session")
		e.engine = order.New(e.docs, order.WithLogger(log))
	}
}

// New returns an editor reading through cs and writing to docs.
func New(docs types.DocumentStore, cs *content.Store, opts ...Option) *Editor {
	e := &Editor{
		docs:    docs,
		content: cs,
		engine:  order.New(docs),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open returns a draft holding a deep copy of the entity's rendered value:
// the remote document when there is one, the bundled default otherwise.
// Editing a default item commits it as a new remote item, and editing the
// default profile commits every field.
func (e *Editor) Open(ctx context.Context, entity Entity) (*Draft, error) {
	d := &Draft{
		editor: e,
		entity: entity,
		state:  StateOpen,
		dirty:  make(map[string]bool),
	}

	e.settle()
	switch {
	case entity.IsProfile():
		view, err := e.content.AwaitProfile(ctx)
		if err != nil {
			return nil, err
		}
		d.insert = view.FromDefaults
		d.fields = docutil.Clone(view.Profile.Fields)

	case entity.ID == "":
		if err := types.ValidateCollection(entity.Collection); err != nil {
			return nil, err
		}
		d.insert = true
		d.fields = types.Document{}

	default:
		view, err := e.content.AwaitCollection(ctx, entity.Collection)
		if err != nil {
			return nil, err
		}
		item, ok := find(view.Items, entity.ID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", types.ErrNotFound, entity)
		}
		d.insert = view.FromDefaults
		d.fields = docutil.Clone(item.Fields)
	}

	e.log.Debug().Str("entity", entity.String()).Bool("insert", d.insert).Msg("draft opened")
	return d, nil
}

// Delete removes an item from the store. Default items cannot be deleted,
// whether or not they are currently rendered.
func (e *Editor) Delete(ctx context.Context, collection, id string) error {
	e.settle()
	view, err := e.content.AwaitCollection(ctx, collection)
	if err != nil {
		return err
	}
	if view.FromDefaults || e.content.Defaults().IsDefault(collection, id) {
		return types.ErrDefaultsReadOnly
	}
	err = e.docs.DeleteItem(ctx, collection, id)
	metrics.RecordWrite("delete", err)
	if err != nil {
		e.log.Error().Err(err).Str("collection", collection).Str("id", id).Msg("delete failed")
		return fmt.Errorf("%w: %w", types.ErrWriteFailed, err)
	}
	e.log.Info().Str("collection", collection).Str("id", id).Msg("deleted")
	return nil
}

// Swap exchanges the items at rendered positions a and b.
func (e *Editor) Swap(ctx context.Context, collection string, a, b int) error {
	items, err := e.remoteItems(ctx, collection)
	if err != nil {
		return err
	}
	return e.engine.Swap(ctx, collection, items, a, b)
}

// MoveUp moves the item at rendered position index one step toward the
// front.
func (e *Editor) MoveUp(ctx context.Context, collection string, index int) error {
	items, err := e.remoteItems(ctx, collection)
	if err != nil {
		return err
	}
	return e.engine.MoveUp(ctx, collection, items, index)
}

// MoveDown moves the item at rendered position index one step toward the
// end.
func (e *Editor) MoveDown(ctx context.Context, collection string, index int) error {
	items, err := e.remoteItems(ctx, collection)
	if err != nil {
		return err
	}
	return e.engine.MoveDown(ctx, collection, items, index)
}

// Reindex rewrites the order keys of collection to 0..n-1 in rendered
// order.
func (e *Editor) Reindex(ctx context.Context, collection string) error {
	items, err := e.remoteItems(ctx, collection)
	if err != nil {
		return err
	}
	return e.engine.Reindex(ctx, collection, items)
}

// remoteItems returns the rendered remote items of collection. Reorders
// apply to remote items only.
func (e *Editor) remoteItems(ctx context.Context, collection string) ([]types.Item, error) {
	e.settle()
	view, err := e.content.AwaitCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if view.FromDefaults {
		return nil, types.ErrDefaultsReadOnly
	}
	return view.Items, nil
}

// settle waits until the store has delivered the notifications of earlier
// writes, so the rendered content reflects them.
func (e *Editor) settle() {
	if f, ok := e.docs.(interface{ Flush() }); ok {
		f.Flush()
	}
}

func find(items []types.Item, id string) (types.Item, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return types.Item{}, false
}
