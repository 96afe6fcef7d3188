package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docai/core"
)

func TestDocumentSerialization_RoundTrip(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	in := &core.Document{
		ID:          "doc_1",
		FileName:    "report.pdf",
		CreatedAt:   t0,
		ProcessedAt: t0.Add(time.Minute),
		Status:      core.DocumentProcessed,
		Extra:       map[string]string{"page_count": "1"},
		Pages:       []core.Page{{ID: core.PageID("doc_1", 0), PageNumber: 0, ImagePath: "pages/doc_1/0"}},
	}

	out, err := UnmarshalDocument(MarshalDocument(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestQuerySerialization_RoundTrip(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	in := &core.Query{
		ID:                "query_1",
		Text:              "what changed?",
		CreatedAt:         t0,
		Status:            core.QueryCreated,
		TargetDocumentIDs: []string{"doc_1"},
	}

	out, err := UnmarshalQuery(MarshalQuery(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestUnmarshal_CorruptData(t *testing.T) {
	_, err := UnmarshalDocument([]byte{0xff})
	assert.ErrorIs(t, err, ErrSerializationFailed)

	_, err = UnmarshalQuery([]byte{0xff})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}
