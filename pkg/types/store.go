package types

import "context"

// DocumentStore is the persistence collaborator consumed by the content
// layer. Implementations must be safe for concurrent use.
type DocumentStore interface {
	// GetDocument reads one document. The bool is false when the document
	// does not exist.
	GetDocument(ctx context.Context, path Path) (Document, bool, error)

	// SetDocument writes a document, creating it if absent. With
	// SetOptions.Merge the given fields overlay the stored ones; otherwise
	// the stored document is replaced.
	SetDocument(ctx context.Context, path Path, doc Document, opts SetOptions) error

	// AddItem inserts a new item into the collection and returns the
	// identifier assigned by the store.
	AddItem(ctx context.Context, collection string, doc Document) (string, error)

	// UpdateItem merges partial into the stored item.
	// Returns ErrNotFound if no item exists with that ID.
	UpdateItem(ctx context.Context, collection, id string, partial Document) error

	// DeleteItem removes the item.
	// Returns ErrNotFound if no item exists with that ID.
	DeleteItem(ctx context.Context, collection, id string) error

	// ListItems returns every item of the collection in storage order.
	ListItems(ctx context.Context, collection string) ([]Item, error)

	// SubscribeDocument registers listeners for one document. The current
	// value is emitted first, then again after every change, in change
	// order. Listeners run outside any store lock and may call back into
	// the store. The returned Unsubscribe is idempotent.
	SubscribeDocument(path Path, onNext func(DocumentSnapshot), onError func(error)) (Unsubscribe, error)

	// SubscribeCollection registers listeners for a whole collection with
	// the same contract as SubscribeDocument. Emitted items are in storage
	// order; callers sort.
	SubscribeCollection(collection string, onNext func([]Item), onError func(error)) (Unsubscribe, error)
}

// Backend is a DocumentStore with an attach lifecycle.
type Backend interface {
	DocumentStore
	BatchWriter

	// Attach initializes the backend with the given configuration.
	// Returns ErrAlreadyAttached if already attached.
	Attach(config Config) error

	// Detach releases all resources. After Detach every operation returns
	// ErrStoreDetached.
	Detach() error

	// Flush blocks until every notification caused by earlier writes has
	// been delivered.
	Flush()
}

// BatchWriter is implemented by stores that can apply several item updates
// atomically: either every write is applied or none is.
type BatchWriter interface {
	ApplyBatch(ctx context.Context, writes []Write) error
}

// Write is one merge update of an item inside a batch.
type Write struct {
	Collection string
	ID         string
	Fields     Document
}

// SetOptions controls SetDocument.
type SetOptions struct {
	Merge bool
}

// Unsubscribe detaches a listener. Calling it more than once is a no-op.
type Unsubscribe func()
