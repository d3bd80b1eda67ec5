package session

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/mesh-intelligence/showcase/internal/docutil"
	"github.com/mesh-intelligence/showcase/internal/metrics"
	"github.com/mesh-intelligence/showcase/pkg/types"
)

// State is the lifecycle state of a draft.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateCommitting
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateCommitting:
		return "committing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Entity names what a draft edits.
type Entity struct {
	Collection string // empty for the profile
	ID         string // empty for a new item
}

// Profile is the singleton profile document.
func Profile() Entity { return Entity{} }

// Item is an existing item of collection.
func Item(collection, id string) Entity { return Entity{Collection: collection, ID: id} }

// NewItem is an item not yet inserted into collection.
func NewItem(collection string) Entity { return Entity{Collection: collection} }

// IsProfile reports whether e is the profile.
func (e Entity) IsProfile() bool { return e.Collection == "" }

func (e Entity) String() string {
	switch {
	case e.IsProfile():
		return types.ProfilePath.String()
	case e.ID == "":
		return e.Collection + "/(new)"
	default:
		return e.Collection + "/" + e.ID
	}
}

// Draft is a locally owned copy of one entity. Changes stay local until
// Commit; remote updates to the entity never reach an open draft.
type Draft struct {
	editor *Editor
	entity Entity
	insert bool // commit writes every field: a new item, or an entity rendered from defaults

	mu     sync.Mutex
	state  State
	fields types.Document
	dirty  map[string]bool
}

// Entity returns what the draft edits.
func (d *Draft) Entity() Entity {
	return d.entity
}

// State returns the draft's lifecycle state.
func (d *Draft) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Get returns a copy of the draft value of field.
func (d *Draft) Get(field string) (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.fields[field]
	return docutil.CloneValue(v), ok
}

// Fields returns a copy of every draft field.
func (d *Draft) Fields() types.Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	return docutil.Clone(d.fields)
}

// Changed returns the fields set since the draft was opened, sorted.
func (d *Draft) Changed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.changedLocked()
}

// Set changes one field locally. The id and order fields are reserved:
// identity is assigned by the store and order by the reorder operations.
func (d *Draft) Set(field string, value any) error {
	if field == "" || field == "id" || field == types.FieldOrder {
		return fmt.Errorf("%w: %q", types.ErrReservedField, field)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.editableLocked(); err != nil {
		return err
	}
	d.fields[field] = docutil.CloneValue(value)
	d.dirty[field] = true
	return nil
}

// Commit writes the draft. An existing entity receives a merge write of
// the changed fields only, so fields changed remotely since Open are kept.
// A new item, or an item rendered from defaults, is inserted with every
// draft field and order appended at the end of the collection. A profile
// rendered from defaults is written with every draft field. On success the draft closes and the returned
// ID names the written entity. On failure the draft stays open and
// unchanged so the commit can be retried. A commit while another is in
// flight returns ErrCommitInFlight.
func (d *Draft) Commit(ctx context.Context) (string, error) {
	d.mu.Lock()
	if err := d.editableLocked(); err != nil {
		d.mu.Unlock()
		return "", err
	}
	d.state = StateCommitting
	fields := docutil.Clone(d.fields)
	changed := d.changedLocked()
	d.mu.Unlock()

	id, err := d.write(ctx, fields, changed)
	metrics.RecordWrite("commit", err)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.state = StateOpen
		d.editor.log.Error().Err(err).Str("entity", d.entity.String()).Msg("commit failed")
		return "", fmt.Errorf("%w: %w", types.ErrWriteFailed, err)
	}
	d.closeLocked()
	d.editor.log.Info().Str("entity", d.entity.String()).Strs("fields", changed).Msg("committed")
	return id, nil
}

// Discard abandons the draft without writing. It is idempotent, but a
// draft cannot be discarded while its commit is in flight.
func (d *Draft) Discard() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateCommitting {
		return types.ErrCommitInFlight
	}
	d.closeLocked()
	return nil
}

func (d *Draft) write(ctx context.Context, fields types.Document, changed []string) (string, error) {
	docs := d.editor.docs
	switch {
	case d.entity.IsProfile():
		patch := fields
		if !d.insert {
			if len(changed) == 0 {
				return types.ProfilePath.ID, nil
			}
			patch = pick(fields, changed)
		}
		return types.ProfilePath.ID, docs.SetDocument(ctx, types.ProfilePath, patch, types.SetOptions{Merge: true})

	case d.insert:
		existing, err := docs.ListItems(ctx, d.entity.Collection)
		if err != nil {
			return "", err
		}
		fields[types.FieldOrder] = len(existing)
		return docs.AddItem(ctx, d.entity.Collection, fields)

	default:
		if len(changed) == 0 {
			return d.entity.ID, nil
		}
		return d.entity.ID, docs.UpdateItem(ctx, d.entity.Collection, d.entity.ID, pick(fields, changed))
	}
}

func (d *Draft) editableLocked() error {
	switch d.state {
	case StateOpen:
		return nil
	case StateCommitting:
		return types.ErrCommitInFlight
	default:
		return types.ErrDraftClosed
	}
}

func (d *Draft) changedLocked() []string {
	out := make([]string, 0, len(d.dirty))
	for f := range d.dirty {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

func (d *Draft) closeLocked() {
	d.state = StateClosed
	d.fields = nil
	d.dirty = nil
}

func pick(doc types.Document, keys []string) types.Document {
	out := make(types.Document, len(keys))
	for _, k := range keys {
		out[k] = doc[k]
	}
	return out
}
