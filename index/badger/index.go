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


// Package badger implements index.VectorIndex on a BadgerDB backend.
// Vectors are normalized on write, so search reduces to a dot product.
package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/poiesic/docai/index"
	"github.com/poiesic/docai/storage"
	storagebadger "github.com/poiesic/docai/storage/badger"
)

// Index implements index.VectorIndex on a shared Badger backend.
type Index struct {
	backend *storagebadger.Backend
}

var _ index.VectorIndex = (*Index)(nil)

// NewIndex creates a vector index on the given backend.
func NewIndex(backend *storagebadger.Backend) *Index {
	return &Index{backend: backend}
}

// PutPageVector stores the normalized embedding for a page under its
// document's prefix.
func (x *Index) PutPageVector(ctx context.Context, documentID, pageID string, vector []float32) error {
	if documentID == "" || pageID == "" {
		return fmt.Errorf("%w: document and page IDs are required", storage.ErrSerializationFailed)
	}
	data := encodeVector(index.NormalizeVector(vector))
	return x.backend.Update(func(tx *badgerdb.Txn) error {
		return tx.Set(makePageVectorKey(documentID, pageID), data)
	})
}

// PutQueryVector stores the normalized embedding for a query.
func (x *Index) PutQueryVector(ctx context.Context, queryID string, vector []float32) error {
	if queryID == "" {
		return fmt.Errorf("%w: query ID is required", storage.ErrSerializationFailed)
	}
	data := encodeVector(index.NormalizeVector(vector))
	return x.backend.Update(func(tx *badgerdb.Txn) error {
		return tx.Set(makeQueryVectorKey(queryID), data)
	})
}

// GetQueryVector retrieves a previously stored query embedding.
func (x *Index) GetQueryVector(ctx context.Context, queryID string) ([]float32, error) {
	var vector []float32
	err := x.backend.View(func(tx *badgerdb.Txn) error {
		item, err := tx.Get(makeQueryVectorKey(queryID))
		if err != nil {
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				return fmt.Errorf("%w: query vector %s", storage.ErrNotFound, queryID)
			}
			return err
		}
		return item.Value(func(val []byte) error {
			vector, err = decodeVector(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}

// Search scans the page vectors of the allowed documents and returns up to
// limit matches by cosine similarity, best first. Ties break on page ID so
// results are deterministic.
func (x *Index) Search(ctx context.Context, vector []float32, allowedDocumentIDs []string, limit int) ([]index.Match, error) {
	if limit <= 0 || len(allowedDocumentIDs) == 0 {
		return nil, nil
	}
	probe := index.NormalizeVector(vector)

	var matches []index.Match
	err := x.backend.View(func(tx *badgerdb.Txn) error {
		for _, docID := range allowedDocumentIDs {
			opts := badgerdb.DefaultIteratorOptions
			opts.Prefix = pageVectorPrefix(docID)
			iter := tx.NewIterator(opts)

			for iter.Rewind(); iter.Valid(); iter.Next() {
				item := iter.Item()
				pageID := pageIDFromVectorKey(item.Key(), docID)
				if pageID == "" {
					continue
				}
				var stored []float32
				err := item.Value(func(val []byte) error {
					var err error
					stored, err = decodeVector(val)
					return err
				})
				if err != nil {
					iter.Close()
					return err
				}
				matches = append(matches, index.Match{
					PageID:     pageID,
					DocumentID: docID,
					Score:      index.DotProduct(probe, stored),
				})
			}
			iter.Close()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(matches, func(a, b index.Match) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return strings.Compare(a.PageID, b.PageID)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Close closes the underlying backend.
func (x *Index) Close() error {
	return x.backend.Close()
}
