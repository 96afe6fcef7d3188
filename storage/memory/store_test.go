package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docai/core"
	"github.com/poiesic/docai/storage"
)

var storeBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newDocument(id string, createdAt time.Time) *core.Document {
	return &core.Document{
		ID:        id,
		FileName:  id + ".pdf",
		CreatedAt: createdAt,
		Status:    core.DocumentCreated,
	}
}

func TestStore_CreateAndGetDocument(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	d := newDocument("doc_1", storeBase)
	require.NoError(t, s.CreateDocument(ctx, d))

	// Mutating the caller's copy must not affect the stored record.
	d.FileName = "changed.pdf"

	got, err := s.GetDocument(ctx, "doc_1")
	require.NoError(t, err)
	assert.Equal(t, "doc_1.pdf", got.FileName)

	// Mutating the returned copy must not affect the stored record either.
	got.Status = core.DocumentFailed
	again, err := s.GetDocument(ctx, "doc_1")
	require.NoError(t, err)
	assert.Equal(t, core.DocumentCreated, again.Status)
}

func TestStore_CreateDocumentDuplicate(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.CreateDocument(ctx, newDocument("doc_1", storeBase)))
	err := s.CreateDocument(ctx, newDocument("doc_1", storeBase))
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestStore_GetDocumentNotFound(t *testing.T) {
	s := NewStore()
	_, err := s.GetDocument(context.Background(), "doc_missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_CompareAndSetDocument(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.CreateDocument(ctx, newDocument("doc_1", storeBase)))

	updated := newDocument("doc_1", storeBase)
	updated.Status = core.DocumentProcessing
	updated.Extra = map[string]string{"page_count": "2"}
	require.NoError(t, s.CompareAndSetDocument(ctx, core.DocumentCreated, updated))

	got, err := s.GetDocument(ctx, "doc_1")
	require.NoError(t, err)
	assert.Equal(t, core.DocumentProcessing, got.Status)

	// A second writer holding the stale status loses the race.
	stale := newDocument("doc_1", storeBase)
	stale.Status = core.DocumentProcessing
	stale.Extra = map[string]string{"page_count": "9"}
	err = s.CompareAndSetDocument(ctx, core.DocumentCreated, stale)
	assert.ErrorIs(t, err, storage.ErrConcurrentModification)

	got, err = s.GetDocument(ctx, "doc_1")
	require.NoError(t, err)
	assert.Equal(t, "2", got.Extra["page_count"])
}

func TestStore_CompareAndSetDocumentNotFound(t *testing.T) {
	s := NewStore()
	err := s.CompareAndSetDocument(context.Background(), core.DocumentCreated, newDocument("doc_x", storeBase))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_ListDocumentsCreatedBefore(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.CreateDocument(ctx, newDocument("doc_b", storeBase)))
	require.NoError(t, s.CreateDocument(ctx, newDocument("doc_a", storeBase)))
	require.NoError(t, s.CreateDocument(ctx, newDocument("doc_c", storeBase.Add(time.Minute))))
	require.NoError(t, s.CreateDocument(ctx, newDocument("doc_d", storeBase.Add(time.Hour))))

	// Cutoff is inclusive; ties are ordered by ID.
	docs, err := s.ListDocumentsCreatedBefore(ctx, storeBase.Add(time.Minute))
	require.NoError(t, err)
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	assert.Equal(t, []string{"doc_a", "doc_b", "doc_c"}, ids)
}

func TestStore_QueryLifecycle(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	q := &core.Query{ID: "query_1", Text: "what?", CreatedAt: storeBase, Status: core.QueryCreated}
	require.NoError(t, s.CreateQuery(ctx, q))

	err := s.CreateQuery(ctx, q)
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	updated := q.Clone()
	updated.Status = core.QueryProcessing
	require.NoError(t, s.CompareAndSetQuery(ctx, core.QueryCreated, updated))

	err = s.CompareAndSetQuery(ctx, core.QueryCreated, updated)
	assert.ErrorIs(t, err, storage.ErrConcurrentModification)

	got, err := s.GetQuery(ctx, "query_1")
	require.NoError(t, err)
	assert.Equal(t, core.QueryProcessing, got.Status)

	_, err = s.GetQuery(ctx, "query_missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_InvalidRecordRejected(t *testing.T) {
	s := NewStore()
	err := s.CreateDocument(context.Background(), &core.Document{ID: "doc_1", CreatedAt: storeBase, Status: core.DocumentCreated})
	assert.ErrorIs(t, err, core.ErrInvalidDocument)
}

func TestStore_Closed(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.CreateDocument(ctx, newDocument("doc_1", storeBase)))
	require.NoError(t, s.Close())

	_, err := s.GetDocument(ctx, "doc_1")
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	err = s.CreateDocument(ctx, newDocument("doc_2", storeBase))
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestBlobStore_RoundTrip(t *testing.T) {
	b := NewBlobStore()
	ctx := context.Background()

	key, err := b.Put(ctx, "raw/doc_1", []byte("%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, "raw/doc_1", key)

	data, err := b.Get(ctx, "raw/doc_1")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), data)

	// Returned bytes are a copy.
	data[0] = 'X'
	again, err := b.Get(ctx, "raw/doc_1")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), again)

	_, err = b.Get(ctx, "raw/doc_missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
