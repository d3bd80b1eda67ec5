// This file implements SubscribeDocument, SubscribeCollection, and change
// notification.
package sqlite

import (
	"context"
	"fmt"
	"slices"

	"github.com/mesh-intelligence/showcase/internal/docutil"
	"github.com/mesh-intelligence/showcase/pkg/types"
)

// SubscribeDocument registers listeners for the document at path. The
// current value is delivered first, then a fresh snapshot after each write
// to the document. Deliveries run on the backend's dispatcher goroutine in
// write order.
func (b *Backend) SubscribeDocument(path types.Path, onNext func(types.DocumentSnapshot), onError func(error)) (types.Unsubscribe, error) {
	if path.Collection == "" || path.ID == "" {
		return nil, types.ErrInvalidPath
	}
	if onNext == nil {
		return nil, types.ErrInvalidData
	}
	return b.subscribe(&subscription{
		collection: path.Collection,
		docID:      path.ID,
		onDoc:      onNext,
		onError:    onError,
	})
}

// SubscribeCollection registers listeners for every item of collection.
func (b *Backend) SubscribeCollection(collection string, onNext func([]types.Item), onError func(error)) (types.Unsubscribe, error) {
	if err := types.ValidateCollection(collection); err != nil {
		return nil, err
	}
	if onNext == nil {
		return nil, types.ErrInvalidData
	}
	return b.subscribe(&subscription{
		collection: collection,
		onItems:    onNext,
		onError:    onError,
	})
}

func (b *Backend) subscribe(sub *subscription) (types.Unsubscribe, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	b.subs.add(sub)
	d := b.dispatch
	d.enqueue(func() { b.deliver([]*subscription{sub}) })

	b.log.Debug().Str("collection", sub.collection).Str("doc_id", sub.docID).Str("sub", sub.id).Msg("subscribed")

	return func() {
		if sub.cancelled.Load() {
			return
		}
		b.subs.remove(sub)
		b.log.Debug().Str("sub", sub.id).Msg("unsubscribed")
	}, nil
}

// notify schedules delivery to the subscribers affected by a write to
// collection. Collection subscribers always receive a snapshot; document
// subscribers only when their document is among ids. An empty ids list
// targets every document subscriber of the collection.
func (b *Backend) notify(collection string, ids ...string) {
	b.mu.RLock()
	d := b.dispatch
	b.mu.RUnlock()
	if d == nil {
		return
	}

	d.enqueue(func() {
		var targets []*subscription
		for _, sub := range b.subs.forCollection(collection) {
			if sub.docID == "" || len(ids) == 0 || slices.Contains(ids, sub.docID) {
				targets = append(targets, sub)
			}
		}
		b.deliver(targets)
	})
}

// notifyAll schedules delivery to every subscriber, used after a reload.
func (b *Backend) notifyAll() {
	for _, collection := range b.subs.collections() {
		b.notify(collection)
	}
}

// notifyError schedules err to every subscriber's error listener.
func (b *Backend) notifyError(err error) {
	b.mu.RLock()
	d := b.dispatch
	b.mu.RUnlock()
	if d == nil {
		return
	}

	d.enqueue(func() {
		for _, collection := range b.subs.collections() {
			for _, sub := range b.subs.forCollection(collection) {
				if !sub.cancelled.Load() && sub.onError != nil {
					sub.onError(err)
				}
			}
		}
	})
}

// deliver reads the current state for each subscription and invokes its
// listener. Runs on the dispatcher goroutine.
func (b *Backend) deliver(targets []*subscription) {
	if len(targets) == 0 {
		return
	}
	ctx := context.Background()

	type result struct {
		sub   *subscription
		snap  types.DocumentSnapshot
		items []types.Item
		err   error
	}
	results := make([]result, 0, len(targets))

	b.mu.RLock()
	if !b.attached {
		b.mu.RUnlock()
		return
	}
	lists := make(map[string][]types.Item)
	for _, sub := range targets {
		r := result{sub: sub}
		if sub.docID != "" {
			path := types.Path{Collection: sub.collection, ID: sub.docID}
			doc, exists, err := b.getLocked(ctx, b.db, path)
			r.snap = types.DocumentSnapshot{Path: path, Exists: exists, Data: doc}
			r.err = err
		} else {
			items, ok := lists[sub.collection]
			if !ok {
				var err error
				items, err = b.listLocked(ctx, sub.collection)
				if err != nil {
					r.err = err
				} else {
					lists[sub.collection] = items
				}
			}
			r.items = items
		}
		results = append(results, r)
	}
	b.mu.RUnlock()

	for _, r := range results {
		if r.sub.cancelled.Load() {
			continue
		}
		switch {
		case r.err != nil:
			if r.sub.onError != nil {
				r.sub.onError(fmt.Errorf("%w: %w", types.ErrSubscriptionFailed, r.err))
			}
		case r.sub.onDoc != nil:
			if r.snap.Exists {
				r.snap.Data = docutil.Clone(r.snap.Data)
			}
			r.sub.onDoc(r.snap)
		default:
			r.sub.onItems(docutil.Items(r.items))
		}
	}
}
