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

package lifecycle

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docai/core"
)

func TestResolveTargets_StrictlyBefore(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q := &core.Query{ID: "query_5", Text: "q", CreatedAt: t0, Status: core.QueryCreated}

	candidates := []core.Document{
		{ID: "doc_a", CreatedAt: t0.Add(-2 * time.Minute)},
		{ID: "doc_b", CreatedAt: t0.Add(-time.Minute)},
		{ID: "doc_c", CreatedAt: t0.Add(time.Minute)}, // after the query
	}
	assert.Equal(t, []string{"doc_a", "doc_b"}, ResolveTargets(q, candidates))
}

func TestResolveTargets_EqualTimestampTieBreak(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q := &core.Query{ID: "m", Text: "q", CreatedAt: t0, Status: core.QueryCreated}

	candidates := []core.Document{
		{ID: "a", CreatedAt: t0}, // same instant, lesser ID: included
		{ID: "z", CreatedAt: t0}, // same instant, greater ID: excluded
	}
	assert.Equal(t, []string{"a"}, ResolveTargets(q, candidates))
}

func TestResolveTargets_OrderIndependent(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q := &core.Query{ID: "query_1", Text: "q", CreatedAt: t0, Status: core.QueryCreated}

	candidates := make([]core.Document, 20)
	for i := range candidates {
		candidates[i] = core.Document{
			ID:        core.NewDocumentID(),
			CreatedAt: t0.Add(-time.Duration(i%7+1) * time.Second),
		}
	}
	want := ResolveTargets(q, candidates)
	require.Len(t, want, 20)

	rng := rand.New(rand.NewSource(42))
	for range 10 {
		rng.Shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
		assert.Equal(t, want, ResolveTargets(q, candidates))
	}
}

func TestResolveTargets_Empty(t *testing.T) {
	q := &core.Query{ID: "query_1", Text: "q", CreatedAt: time.Now(), Status: core.QueryCreated}
	assert.Empty(t, ResolveTargets(q, nil))
}

func TestCheckIndexed_AllIndexed(t *testing.T) {
	lookup := func(id string) (core.DocumentStatus, error) {
		return core.DocumentIndexed, nil
	}
	gate, err := CheckIndexed([]string{"doc_1", "doc_2"}, lookup)
	require.NoError(t, err)
	assert.True(t, gate.Passed)
	assert.Empty(t, gate.PendingDocumentIDs)
}

func TestCheckIndexed_PendingSorted(t *testing.T) {
	statuses := map[string]core.DocumentStatus{
		"doc_z": core.DocumentIndexing,
		"doc_a": core.DocumentProcessing,
		"doc_m": core.DocumentIndexed,
	}
	lookup := func(id string) (core.DocumentStatus, error) {
		return statuses[id], nil
	}
	gate, err := CheckIndexed([]string{"doc_z", "doc_m", "doc_a"}, lookup)
	require.NoError(t, err)
	assert.False(t, gate.Passed)
	assert.Equal(t, []string{"doc_a", "doc_z"}, gate.PendingDocumentIDs)
}

func TestCheckIndexed_FailedDocumentBlocks(t *testing.T) {
	lookup := func(id string) (core.DocumentStatus, error) {
		return core.DocumentFailed, nil
	}
	gate, err := CheckIndexed([]string{"doc_1"}, lookup)
	require.NoError(t, err)
	assert.False(t, gate.Passed)
}

func TestCheckIndexed_LookupError(t *testing.T) {
	boom := errors.New("store offline")
	lookup := func(id string) (core.DocumentStatus, error) {
		return "", boom
	}
	_, err := CheckIndexed([]string{"doc_1"}, lookup)
	assert.ErrorIs(t, err, boom)
}

func TestCheckIndexed_EmptyTargetsPass(t *testing.T) {
	gate, err := CheckIndexed(nil, func(string) (core.DocumentStatus, error) {
		t.Fatal("lookup must not be called for an empty target set")
		return "", nil
	})
	require.NoError(t, err)
	assert.True(t, gate.Passed)
}

func TestCheckIndexed_MissingLookup(t *testing.T) {
	_, err := CheckIndexed([]string{"doc_1"}, nil)
	assert.ErrorIs(t, err, ErrMissingLookup)
}
