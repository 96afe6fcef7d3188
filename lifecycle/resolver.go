package lifecycle

import (
	"sort"

	"github.com/poiesic/docai/core"
)

// ResolveTargets computes the snapshot set of document IDs a query targets:
// every candidate created strictly before the query, with creation-time ties
// broken by ID ordering. The result is sorted by (created_at, id) and is
// independent of the order candidates are supplied in.
//
// The snapshot is taken exactly once, at query processing time; it is never
// enlarged or shrunk afterwards.
func ResolveTargets(q *core.Query, candidates []core.Document) []string {
	selected := make([]core.Document, 0, len(candidates))
	for _, d := range candidates {
		if d.CreatedAt.Before(q.CreatedAt) ||
			(d.CreatedAt.Equal(q.CreatedAt) && d.ID < q.ID) {
			selected = append(selected, d)
		}
	}
	sort.Slice(selected, func(i, j int) bool {
		if !selected[i].CreatedAt.Equal(selected[j].CreatedAt) {
			return selected[i].CreatedAt.Before(selected[j].CreatedAt)
		}
		return selected[i].ID < selected[j].ID
	})
	ids := make([]string, len(selected))
	for i, d := range selected {
		ids[i] = d.ID
	}
	return ids
}

// GateResult is the outcome of a gating check.
type GateResult struct {
	// Passed is true iff every target document is indexed.
	Passed bool
	// PendingDocumentIDs lists the targets that are not yet indexed, sorted,
	// for diagnostics and backoff decisions.
	PendingDocumentIDs []string
}

// StatusLookup reports the current status of a document.
type StatusLookup func(id string) (core.DocumentStatus, error)

// CheckIndexed evaluates the gating predicate: true iff every id in
// targetIDs currently has status indexed. The check reads a point-in-time
// snapshot and must be re-evaluated on every retry; callers must never cache
// the result, since documents keep indexing after the first check.
func CheckIndexed(targetIDs []string, lookup StatusLookup) (GateResult, error) {
	if lookup == nil {
		return GateResult{}, ErrMissingLookup
	}
	var pending []string
	for _, id := range targetIDs {
		status, err := lookup(id)
		if err != nil {
			return GateResult{}, err
		}
		if status != core.DocumentIndexed {
			pending = append(pending, id)
		}
	}
	sort.Strings(pending)
	return GateResult{Passed: len(pending) == 0, PendingDocumentIDs: pending}, nil
}
