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

package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docai/storage"
	storagebadger "github.com/poiesic/docai/storage/badger"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	backend, err := storagebadger.OpenBackend("", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	return NewIndex(backend)
}

func TestIndex_SearchRankedBySimilarity(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	// Page vectors at known angles to the probe (1, 0).
	require.NoError(t, x.PutPageVector(ctx, "doc_1", "page_exact", []float32{1, 0}))
	require.NoError(t, x.PutPageVector(ctx, "doc_1", "page_close", []float32{1, 0.5}))
	require.NoError(t, x.PutPageVector(ctx, "doc_1", "page_orthogonal", []float32{0, 1}))

	matches, err := x.Search(ctx, []float32{1, 0}, []string{"doc_1"}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "page_exact", matches[0].PageID)
	assert.Equal(t, "page_close", matches[1].PageID)
	assert.Equal(t, "page_orthogonal", matches[2].PageID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-5)
	assert.Equal(t, "doc_1", matches[0].DocumentID)
}

func TestIndex_SearchHonorsAllowList(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, x.PutPageVector(ctx, "doc_1", "page_a", []float32{1, 0}))
	require.NoError(t, x.PutPageVector(ctx, "doc_2", "page_b", []float32{1, 0}))

	matches, err := x.Search(ctx, []float32{1, 0}, []string{"doc_1"}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "page_a", matches[0].PageID)

	// No allowed documents means no matches, regardless of what is stored.
	matches, err = x.Search(ctx, []float32{1, 0}, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestIndex_SearchLimitAndTieBreak(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	// Identical vectors: ordering falls back to page ID.
	require.NoError(t, x.PutPageVector(ctx, "doc_1", "page_b", []float32{1, 0}))
	require.NoError(t, x.PutPageVector(ctx, "doc_1", "page_a", []float32{1, 0}))
	require.NoError(t, x.PutPageVector(ctx, "doc_1", "page_c", []float32{1, 0}))

	matches, err := x.Search(ctx, []float32{1, 0}, []string{"doc_1"}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "page_a", matches[0].PageID)
	assert.Equal(t, "page_b", matches[1].PageID)
}

func TestIndex_PutOverwrites(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, x.PutPageVector(ctx, "doc_1", "page_a", []float32{0, 1}))
	require.NoError(t, x.PutPageVector(ctx, "doc_1", "page_a", []float32{1, 0}))

	matches, err := x.Search(ctx, []float32{1, 0}, []string{"doc_1"}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-5)
}

func TestIndex_QueryVectorRoundTrip(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, x.PutQueryVector(ctx, "query_1", []float32{3, 4}))

	v, err := x.GetQueryVector(ctx, "query_1")
	require.NoError(t, err)
	require.Len(t, v, 2)
	// Stored normalized.
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	_, err = x.GetQueryVector(ctx, "query_missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIndex_EmptyIDsRejected(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()

	assert.Error(t, x.PutPageVector(ctx, "", "page_a", []float32{1}))
	assert.Error(t, x.PutPageVector(ctx, "doc_1", "", []float32{1}))
	assert.Error(t, x.PutQueryVector(ctx, "", []float32{1}))
}
