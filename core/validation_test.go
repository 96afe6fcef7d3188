package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validationBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func validDocument() *Document {
	return &Document{
		ID:        "doc_1",
		FileName:  "a.pdf",
		CreatedAt: validationBase,
		Status:    DocumentCreated,
	}
}

func TestValidateDocument_OK(t *testing.T) {
	require.NoError(t, ValidateDocument(validDocument()))
}

func TestValidateDocument_MissingFields(t *testing.T) {
	d := validDocument()
	d.ID = ""
	assert.ErrorIs(t, ValidateDocument(d), ErrEmptyID)

	d = validDocument()
	d.FileName = ""
	assert.ErrorIs(t, ValidateDocument(d), ErrEmptyFileName)

	d = validDocument()
	d.Status = "sideways"
	assert.ErrorIs(t, ValidateDocument(d), ErrInvalidStatus)
}

func TestValidateDocument_PageNumbering(t *testing.T) {
	d := validDocument()
	d.Pages = []Page{
		{ID: PageID(d.ID, 0), PageNumber: 0},
		{ID: PageID(d.ID, 2), PageNumber: 2}, // gap
	}
	assert.ErrorIs(t, ValidateDocument(d), ErrNonContiguousPages)

	// Numbering must start at zero, not one.
	d.Pages = []Page{
		{ID: PageID(d.ID, 1), PageNumber: 1},
		{ID: PageID(d.ID, 2), PageNumber: 2},
	}
	assert.ErrorIs(t, ValidateDocument(d), ErrNonContiguousPages)

	d.Pages = []Page{
		{ID: PageID(d.ID, 0), PageNumber: 0},
		{ID: PageID(d.ID, 1), PageNumber: 1},
	}
	assert.NoError(t, ValidateDocument(d))
}

func TestValidateDocument_TimestampChain(t *testing.T) {
	// indexed_at set while processed_at unset
	d := validDocument()
	d.IndexedAt = validationBase.Add(time.Minute)
	assert.ErrorIs(t, ValidateDocument(d), ErrTimestampOrder)

	// indexed_at before processed_at
	d = validDocument()
	d.ProcessedAt = validationBase.Add(2 * time.Minute)
	d.IndexedAt = validationBase.Add(time.Minute)
	assert.ErrorIs(t, ValidateDocument(d), ErrTimestampOrder)

	// monotonic chain passes
	d = validDocument()
	d.ProcessedAt = validationBase.Add(time.Minute)
	d.IndexedAt = validationBase.Add(2 * time.Minute)
	assert.NoError(t, ValidateDocument(d))
}

func TestValidateQuery_TimestampChain(t *testing.T) {
	q := &Query{ID: "query_1", Text: "what?", CreatedAt: validationBase, Status: QueryCreated}
	require.NoError(t, ValidateQuery(q))

	q.AnsweredAt = validationBase.Add(time.Minute)
	assert.ErrorIs(t, ValidateQuery(q), ErrTimestampOrder)

	q.ProcessedAt = validationBase.Add(time.Second)
	q.IndexedAt = validationBase.Add(2 * time.Second)
	q.ContextRetrievedAt = validationBase.Add(3 * time.Second)
	assert.NoError(t, ValidateQuery(q))
}

func TestValidateQuery_MissingText(t *testing.T) {
	q := &Query{ID: "query_1", CreatedAt: validationBase, Status: QueryCreated}
	assert.ErrorIs(t, ValidateQuery(q), ErrEmptyQueryText)
}
