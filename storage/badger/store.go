// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package badger provides the BadgerDB-backed entity and blob stores.
package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docai/core"
	"github.com/poiesic/docai/storage"
)

// Store implements storage.EntityStore and storage.BlobStore on a shared
// Backend. Compare-and-set writes run in a single Badger transaction; a lost
// race surfaces as ErrConcurrentModification either through the status
// comparison or through Badger's own conflict detection at commit.
type Store struct {
	backend *Backend
}

var (
	_ storage.EntityStore = (*Store)(nil)
	_ storage.BlobStore   = (*Store)(nil)
)

// NewStore creates a store on the given backend.
func NewStore(backend *Backend) *Store {
	return &Store{backend: backend}
}

// CreateDocument stores a new document record and its created-at index entry.
func (s *Store) CreateDocument(ctx context.Context, d *core.Document) error {
	if err := core.ValidateDocument(d); err != nil {
		return err
	}
	key := makeDocumentKey(d.ID)
	return s.translate(s.backend.Update(func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		if err == nil {
			return fmt.Errorf("%w: document %s", storage.ErrAlreadyExists, d.ID)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := tx.Set(key, storage.MarshalDocument(d)); err != nil {
			return err
		}
		return tx.Set(makeDocumentDateKey(d.CreatedAt, d.ID), []byte(d.ID))
	}))
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	var doc *core.Document
	err := s.backend.View(func(tx *badger.Txn) error {
		var err error
		doc, err = getDocumentTx(tx, id)
		return err
	})
	if err != nil {
		return nil, s.translate(err)
	}
	return doc, nil
}

func getDocumentTx(tx *badger.Txn, id string) (*core.Document, error) {
	item, err := tx.Get(makeDocumentKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: document %s", storage.ErrNotFound, id)
		}
		return nil, err
	}
	var doc *core.Document
	err = item.Value(func(val []byte) error {
		doc, err = storage.UnmarshalDocument(val)
		return err
	})
	return doc, err
}

// CompareAndSetDocument replaces the record only if the stored status still
// equals expected.
func (s *Store) CompareAndSetDocument(ctx context.Context, expected core.DocumentStatus, d *core.Document) error {
	if err := core.ValidateDocument(d); err != nil {
		return err
	}
	return s.translate(s.backend.Update(func(tx *badger.Txn) error {
		current, err := getDocumentTx(tx, d.ID)
		if err != nil {
			return err
		}
		if current.Status != expected {
			return fmt.Errorf("%w: document %s is %q, expected %q",
				storage.ErrConcurrentModification, d.ID, current.Status, expected)
		}
		return tx.Set(makeDocumentKey(d.ID), storage.MarshalDocument(d))
	}))
}

// ListDocumentsCreatedBefore scans the created-at index up to and including
// cutoff and returns the matching documents ordered by (created_at, id).
func (s *Store) ListDocumentsCreatedBefore(ctx context.Context, cutoff time.Time) ([]core.Document, error) {
	var out []core.Document
	err := s.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentDatePrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		upper := documentDateKeyUpTo(cutoff)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			if bytes.Compare(key, upper) >= 0 {
				break
			}
			id := documentIDFromDateKey(key)
			if id == "" {
				continue
			}
			doc, err := getDocumentTx(tx, id)
			if err != nil {
				return err
			}
			out = append(out, *doc)
		}
		return nil
	})
	if err != nil {
		return nil, s.translate(err)
	}
	return out, nil
}

// CreateQuery stores a new query record.
func (s *Store) CreateQuery(ctx context.Context, q *core.Query) error {
	if err := core.ValidateQuery(q); err != nil {
		return err
	}
	key := makeQueryKey(q.ID)
	return s.translate(s.backend.Update(func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		if err == nil {
			return fmt.Errorf("%w: query %s", storage.ErrAlreadyExists, q.ID)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return tx.Set(key, storage.MarshalQuery(q))
	}))
}

// GetQuery retrieves a query by ID.
func (s *Store) GetQuery(ctx context.Context, id string) (*core.Query, error) {
	var q *core.Query
	err := s.backend.View(func(tx *badger.Txn) error {
		var err error
		q, err = getQueryTx(tx, id)
		return err
	})
	if err != nil {
		return nil, s.translate(err)
	}
	return q, nil
}

func getQueryTx(tx *badger.Txn, id string) (*core.Query, error) {
	item, err := tx.Get(makeQueryKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: query %s", storage.ErrNotFound, id)
		}
		return nil, err
	}
	var q *core.Query
	err = item.Value(func(val []byte) error {
		q, err = storage.UnmarshalQuery(val)
		return err
	})
	return q, err
}

// CompareAndSetQuery replaces the record only if the stored status still
// equals expected.
func (s *Store) CompareAndSetQuery(ctx context.Context, expected core.QueryStatus, q *core.Query) error {
	if err := core.ValidateQuery(q); err != nil {
		return err
	}
	return s.translate(s.backend.Update(func(tx *badger.Txn) error {
		current, err := getQueryTx(tx, q.ID)
		if err != nil {
			return err
		}
		if current.Status != expected {
			return fmt.Errorf("%w: query %s is %q, expected %q",
				storage.ErrConcurrentModification, q.ID, current.Status, expected)
		}
		return tx.Set(makeQueryKey(q.ID), storage.MarshalQuery(q))
	}))
}

// Put stores an artifact under key.
func (s *Store) Put(ctx context.Context, key string, data []byte) (string, error) {
	err := s.backend.Update(func(tx *badger.Txn) error {
		return tx.Set(makeBlobKey(key), data)
	})
	if err != nil {
		return "", s.translate(err)
	}
	return key, nil
}

// Get retrieves the artifact stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get(makeBlobKey(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: blob %s", storage.ErrNotFound, key)
			}
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, s.translate(err)
	}
	return data, nil
}

// Close closes the underlying backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// translate maps Badger-level failures onto the storage error taxonomy.
// Commit conflicts become ErrConcurrentModification so callers requeue the
// event; a closed database becomes ErrStorageClosed.
func (s *Store) translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrConflict):
		return fmt.Errorf("%w: %w", storage.ErrConcurrentModification, err)
	case errors.Is(err, badger.ErrDBClosed):
		return fmt.Errorf("%w: %w", storage.ErrStorageClosed, err)
	default:
		return err
	}
}
