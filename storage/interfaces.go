package storage

import (
	"context"
	"time"

	"github.com/poiesic/docai/core"
)

// DocumentStore persists document records. Implementations must be
// thread-safe; per-entity serialization is achieved through the
// compare-and-set write, never through locks held by callers.
type DocumentStore interface {
	// CreateDocument stores a new document record.
	// Returns ErrAlreadyExists if the ID is taken.
	CreateDocument(ctx context.Context, d *core.Document) error

	// GetDocument retrieves a document by ID.
	// Returns ErrNotFound if the record doesn't exist.
	GetDocument(ctx context.Context, id string) (*core.Document, error)

	// CompareAndSetDocument replaces the stored record only if its current
	// status still equals expected. Returns ErrConcurrentModification when
	// another writer got there first, ErrNotFound if the record is missing.
	CompareAndSetDocument(ctx context.Context, expected core.DocumentStatus, d *core.Document) error

	// ListDocumentsCreatedBefore retrieves documents created at or before
	// cutoff, ordered by (created_at, id). The inclusive bound lets the
	// association resolver apply its own tie-break on equal timestamps.
	ListDocumentsCreatedBefore(ctx context.Context, cutoff time.Time) ([]core.Document, error)
}

// QueryStore persists query records.
type QueryStore interface {
	// CreateQuery stores a new query record.
	// Returns ErrAlreadyExists if the ID is taken.
	CreateQuery(ctx context.Context, q *core.Query) error

	// GetQuery retrieves a query by ID.
	// Returns ErrNotFound if the record doesn't exist.
	GetQuery(ctx context.Context, id string) (*core.Query, error)

	// CompareAndSetQuery replaces the stored record only if its current
	// status still equals expected.
	CompareAndSetQuery(ctx context.Context, expected core.QueryStatus, q *core.Query) error
}

// EntityStore combines document and query persistence.
type EntityStore interface {
	DocumentStore
	QueryStore

	// Close releases the storage backend.
	Close() error
}

// BlobStore holds opaque artifacts: raw uploads and page images. Keys are
// hierarchical paths like "raw/<docID>" or "pages/<docID>/<n>".
type BlobStore interface {
	// Put stores data under key and returns its location.
	// Returns ErrUnavailable on transient backend failure.
	Put(ctx context.Context, key string, data []byte) (string, error)

	// Get retrieves the data stored under key.
	// Returns ErrNotFound if no blob exists at key.
	Get(ctx context.Context, key string) ([]byte, error)
}
