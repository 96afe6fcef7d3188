// Package memory provides the in-memory reference implementation of the
// entity and blob stores. It mirrors the semantics of the Badger-backed
// implementation exactly, including compare-and-set behavior, and is the
// store of choice for tests and single-process experiments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/poiesic/docai/core"
	"github.com/poiesic/docai/storage"
)

// Store is an in-memory EntityStore. All records are deep-copied on the way
// in and out so callers can never mutate stored state directly.
type Store struct {
	mu        sync.RWMutex
	documents map[string]*core.Document
	queries   map[string]*core.Query
	closed    bool
}

var _ storage.EntityStore = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		documents: make(map[string]*core.Document),
		queries:   make(map[string]*core.Query),
	}
}

// CreateDocument stores a new document record.
func (s *Store) CreateDocument(ctx context.Context, d *core.Document) error {
	if err := core.ValidateDocument(d); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	if _, ok := s.documents[d.ID]; ok {
		return fmt.Errorf("%w: document %s", storage.ErrAlreadyExists, d.ID)
	}
	s.documents[d.ID] = d.Clone()
	return nil
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrStorageClosed
	}
	d, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", storage.ErrNotFound, id)
	}
	return d.Clone(), nil
}

// CompareAndSetDocument replaces the stored record if its status still
// matches expected.
func (s *Store) CompareAndSetDocument(ctx context.Context, expected core.DocumentStatus, d *core.Document) error {
	if err := core.ValidateDocument(d); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	current, ok := s.documents[d.ID]
	if !ok {
		return fmt.Errorf("%w: document %s", storage.ErrNotFound, d.ID)
	}
	if current.Status != expected {
		return fmt.Errorf("%w: document %s is %q, expected %q",
			storage.ErrConcurrentModification, d.ID, current.Status, expected)
	}
	s.documents[d.ID] = d.Clone()
	return nil
}

// ListDocumentsCreatedBefore retrieves documents created at or before
// cutoff, ordered by (created_at, id).
func (s *Store) ListDocumentsCreatedBefore(ctx context.Context, cutoff time.Time) ([]core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrStorageClosed
	}
	var out []core.Document
	for _, d := range s.documents {
		if !d.CreatedAt.After(cutoff) {
			out = append(out, *d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CreateQuery stores a new query record.
func (s *Store) CreateQuery(ctx context.Context, q *core.Query) error {
	if err := core.ValidateQuery(q); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	if _, ok := s.queries[q.ID]; ok {
		return fmt.Errorf("%w: query %s", storage.ErrAlreadyExists, q.ID)
	}
	s.queries[q.ID] = q.Clone()
	return nil
}

// GetQuery retrieves a query by ID.
func (s *Store) GetQuery(ctx context.Context, id string) (*core.Query, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrStorageClosed
	}
	q, ok := s.queries[id]
	if !ok {
		return nil, fmt.Errorf("%w: query %s", storage.ErrNotFound, id)
	}
	return q.Clone(), nil
}

// CompareAndSetQuery replaces the stored record if its status still matches
// expected.
func (s *Store) CompareAndSetQuery(ctx context.Context, expected core.QueryStatus, q *core.Query) error {
	if err := core.ValidateQuery(q); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	current, ok := s.queries[q.ID]
	if !ok {
		return fmt.Errorf("%w: query %s", storage.ErrNotFound, q.ID)
	}
	if current.Status != expected {
		return fmt.Errorf("%w: query %s is %q, expected %q",
			storage.ErrConcurrentModification, q.ID, current.Status, expected)
	}
	s.queries[q.ID] = q.Clone()
	return nil
}

// Close marks the store closed. Subsequent operations fail with
// ErrStorageClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// BlobStore is an in-memory blob store.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte

	// PutFunc and GetFunc, when set, intercept calls. Tests use them to
	// inject transient failures.
	PutFunc func(ctx context.Context, key string, data []byte) (string, error)
	GetFunc func(ctx context.Context, key string) ([]byte, error)
}

var _ storage.BlobStore = (*BlobStore)(nil)

// NewBlobStore creates an empty in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string][]byte)}
}

// Put stores data under key.
func (b *BlobStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	if b.PutFunc != nil {
		return b.PutFunc(ctx, key, data)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[key] = append([]byte(nil), data...)
	return key, nil
}

// Get retrieves the data stored under key.
func (b *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	if b.GetFunc != nil {
		return b.GetFunc(ctx, key)
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.blobs[key]
	if !ok {
		return nil, fmt.Errorf("%w: blob %s", storage.ErrNotFound, key)
	}
	return append([]byte(nil), data...), nil
}
