package core

import (
	"fmt"
	"time"
)

// ValidateDocument checks the structural invariants of a document: identity
// fields present, a known status, contiguous page numbering, and monotonic
// lifecycle timestamps. It does not verify transition legality; that is the
// state machine's job.
func ValidateDocument(d *Document) error {
	if d == nil {
		return ErrInvalidDocument
	}
	if d.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyID)
	}
	if d.FileName == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyFileName)
	}
	if _, ok := d.Status.Rank(); !ok && d.Status != DocumentFailed {
		return fmt.Errorf("%w: %w: %q", ErrInvalidDocument, ErrInvalidStatus, d.Status)
	}
	for i, p := range d.Pages {
		// Pages are numbered from 0 in document order.
		if p.PageNumber != i {
			return fmt.Errorf("%w: %w: page %d has number %d", ErrInvalidDocument, ErrNonContiguousPages, i, p.PageNumber)
		}
		if p.ID == "" {
			return fmt.Errorf("%w: %w: page %d", ErrInvalidDocument, ErrEmptyID, i)
		}
	}
	if err := checkTimestampChain(d.CreatedAt, []stampedField{
		{"processed_at", d.ProcessedAt},
		{"indexed_at", d.IndexedAt},
	}); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return nil
}

// ValidateQuery checks the structural invariants of a query.
func ValidateQuery(q *Query) error {
	if q == nil {
		return ErrInvalidQuery
	}
	if q.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, ErrEmptyID)
	}
	if q.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, ErrEmptyQueryText)
	}
	if _, ok := q.Status.Rank(); !ok && q.Status != QueryFailed {
		return fmt.Errorf("%w: %w: %q", ErrInvalidQuery, ErrInvalidStatus, q.Status)
	}
	if err := checkTimestampChain(q.CreatedAt, []stampedField{
		{"processed_at", q.ProcessedAt},
		{"indexed_at", q.IndexedAt},
		{"context_retrieved_at", q.ContextRetrievedAt},
		{"answered_at", q.AnsweredAt},
	}); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	return nil
}

type stampedField struct {
	label string
	at    time.Time
}

// checkTimestampChain verifies that lifecycle timestamps are set in order:
// a set timestamp implies all earlier ones are set, and each is monotonically
// at or after its predecessor.
func checkTimestampChain(createdAt time.Time, fields []stampedField) error {
	prev := createdAt
	prevLabel := "created_at"
	unset := false
	for _, f := range fields {
		if f.at.IsZero() {
			unset = true
			continue
		}
		if unset {
			return fmt.Errorf("%w: %s set with earlier stage unset", ErrTimestampOrder, f.label)
		}
		if f.at.Before(prev) {
			return fmt.Errorf("%w: %s before %s", ErrTimestampOrder, f.label, prevLabel)
		}
		prev = f.at
		prevLabel = f.label
	}
	return nil
}
