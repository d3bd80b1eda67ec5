package types

import (
	"errors"
	"fmt"
	"strings"
)

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("document store is detached")
	ErrAlreadyAttached = errors.New("document store is already attached")
)

// Document operation errors.
var (
	ErrNotFound          = errors.New("document not found")
	ErrInvalidID         = errors.New("invalid document ID")
	ErrInvalidPath       = errors.New("invalid document path")
	ErrInvalidCollection = errors.New("invalid collection name")
	ErrInvalidData       = errors.New("invalid document data")
)

// Synchronization and reorder errors.
var (
	ErrSubscriptionFailed = errors.New("subscription failed")
	ErrBindingClosed      = errors.New("live binding is closed")
	ErrContentClosed      = errors.New("content store is closed")
	ErrWriteFailed        = errors.New("write failed")
	ErrOutOfRange         = errors.New("index out of range")
	ErrPartialReorder     = errors.New("reorder partially applied")
	ErrDefaultsReadOnly   = errors.New("collection is rendered from defaults and is read-only")
)

// Edit session errors.
var (
	ErrDraftClosed    = errors.New("draft is closed")
	ErrCommitInFlight = errors.New("commit already in flight")
	ErrReservedField  = errors.New("field is reserved and cannot be edited")
)

// ReorderError reports a multi-document reorder in which some writes were
// applied and others were not. The collection's order keys are inconsistent
// until a reindex runs.
type ReorderError struct {
	Collection string
	Applied    []string // IDs whose order write succeeded.
	Pending    []string // IDs whose order write was not applied.
	Err        error    // The write failure that stopped the reorder.
}

func (e *ReorderError) Error() string {
	return fmt.Sprintf("%s: collection %s: applied [%s], pending [%s]: %v",
		ErrPartialReorder, e.Collection,
		strings.Join(e.Applied, ", "), strings.Join(e.Pending, ", "), e.Err)
}

// Unwrap exposes both ErrPartialReorder and the underlying write failure.
func (e *ReorderError) Unwrap() []error {
	return []error{ErrPartialReorder, e.Err}
}
