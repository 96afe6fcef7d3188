package core

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// DocumentStatus describes where a document is in its lifecycle.
type DocumentStatus string

const (
	DocumentCreated    DocumentStatus = "created"
	DocumentProcessing DocumentStatus = "processing"
	DocumentProcessed  DocumentStatus = "processed"
	DocumentIndexing   DocumentStatus = "indexing"
	DocumentIndexed    DocumentStatus = "indexed"
	DocumentFailed     DocumentStatus = "failed"
)

// documentRanks orders the forward document statuses. Failed is terminal and
// deliberately absent: it has no position on the forward path.
var documentRanks = map[DocumentStatus]int{
	DocumentCreated:    0,
	DocumentProcessing: 1,
	DocumentProcessed:  2,
	DocumentIndexing:   3,
	DocumentIndexed:    4,
}

// Rank returns the position of the status on the forward path, and whether
// the status is a forward status at all (failed and unknown values are not).
func (s DocumentStatus) Rank() (int, bool) {
	r, ok := documentRanks[s]
	return r, ok
}

// Terminal reports whether no further transitions are possible.
func (s DocumentStatus) Terminal() bool {
	return s == DocumentIndexed || s == DocumentFailed
}

// QueryStatus describes where a query is in its lifecycle.
type QueryStatus string

const (
	QueryCreated          QueryStatus = "created"
	QueryProcessing       QueryStatus = "processing"
	QueryProcessed        QueryStatus = "processed"
	QueryIndexing         QueryStatus = "indexing"
	QueryIndexed          QueryStatus = "indexed"
	QueryContextRetrieved QueryStatus = "context-retrieved"
	QueryAnswered         QueryStatus = "answered"
	QueryFailed           QueryStatus = "failed"
)

var queryRanks = map[QueryStatus]int{
	QueryCreated:          0,
	QueryProcessing:       1,
	QueryProcessed:        2,
	QueryIndexing:         3,
	QueryIndexed:          4,
	QueryContextRetrieved: 5,
	QueryAnswered:         6,
}

// Rank returns the position of the status on the forward path, and whether
// the status is a forward status at all.
func (s QueryStatus) Rank() (int, bool) {
	r, ok := queryRanks[s]
	return r, ok
}

// Terminal reports whether no further transitions are possible.
func (s QueryStatus) Terminal() bool {
	return s == QueryAnswered || s == QueryFailed
}

// Page is a single page of a document: an ordered artifact produced by
// conversion. PageNumber starts at 0 and is contiguous within a document.
type Page struct {
	ID         string
	PageNumber int
	ImagePath  string
}

// Document represents an ingested file and the pages derived from it.
// Pages is non-empty only once the document has reached processed.
type Document struct {
	ID          string
	FileName    string
	CreatedAt   time.Time
	ProcessedAt time.Time // zero until processed
	IndexedAt   time.Time // zero until indexed
	Status      DocumentStatus
	Extra       map[string]string
	Pages       []Page
}

// Query represents a question asked over the documents that existed when it
// was created. TargetDocumentIDs is frozen at processing time and never
// changes afterwards.
type Query struct {
	ID                 string
	Text               string
	CreatedAt          time.Time
	ProcessedAt        time.Time
	IndexedAt          time.Time
	ContextRetrievedAt time.Time
	AnsweredAt         time.Time
	Status             QueryStatus
	Extra              map[string]string
	TargetDocumentIDs  []string
	ContextPageIDs     []string
	Answer             string
}

// Minimal is a summary view of an entity for status listings.
type Minimal struct {
	ID        string
	Status    string
	UpdatedAt time.Time
}

// Minimal returns the summary view of the document. UpdatedAt is the most
// recent lifecycle timestamp.
func (d *Document) Minimal() Minimal {
	updated := d.CreatedAt
	if !d.ProcessedAt.IsZero() {
		updated = d.ProcessedAt
	}
	if !d.IndexedAt.IsZero() {
		updated = d.IndexedAt
	}
	return Minimal{ID: d.ID, Status: string(d.Status), UpdatedAt: updated}
}

// Minimal returns the summary view of the query.
func (q *Query) Minimal() Minimal {
	updated := q.CreatedAt
	for _, ts := range []time.Time{q.ProcessedAt, q.IndexedAt, q.ContextRetrievedAt, q.AnsweredAt} {
		if !ts.IsZero() {
			updated = ts
		}
	}
	return Minimal{ID: q.ID, Status: string(q.Status), UpdatedAt: updated}
}

// Clone returns a deep copy. Advance functions and stores operate on copies
// so callers never observe partial mutation.
func (d *Document) Clone() *Document {
	out := *d
	out.Extra = cloneMap(d.Extra)
	if d.Pages != nil {
		out.Pages = make([]Page, len(d.Pages))
		copy(out.Pages, d.Pages)
	}
	return &out
}

// Clone returns a deep copy of the query.
func (q *Query) Clone() *Query {
	out := *q
	out.Extra = cloneMap(q.Extra)
	if q.TargetDocumentIDs != nil {
		out.TargetDocumentIDs = append([]string(nil), q.TargetDocumentIDs...)
	}
	if q.ContextPageIDs != nil {
		out.ContextPageIDs = append([]string(nil), q.ContextPageIDs...)
	}
	return &out
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// NewDocumentID generates a unique document identifier.
func NewDocumentID() string {
	return "doc_" + uuid.NewString()
}

// NewQueryID generates a unique query identifier.
func NewQueryID() string {
	return "query_" + uuid.NewString()
}

// PageID derives the identifier for a page deterministically from its
// document and page number. Replaying a storage stage therefore regenerates
// the same IDs it produced the first time.
func PageID(documentID string, pageNumber int) string {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(documentID))
	var num [8]byte
	binary.LittleEndian.PutUint64(num[:], uint64(pageNumber))
	h.Write(num[:])
	sum := h.Sum(nil)
	return fmt.Sprintf("page_%016x", binary.LittleEndian.Uint64(sum))
}
