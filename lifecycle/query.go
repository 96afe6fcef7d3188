package lifecycle

import (
	"fmt"
	"strings"

	"github.com/poiesic/docai/core"
)

// AdvanceQuery applies a lifecycle event to a query and returns the resulting
// query. The input is never mutated.
//
// Transition table:
//
//	created           --process_started---> processing
//	processing        --association_done--> processed
//	processed         --index_started-----> indexing
//	indexing          --embedding_done----> indexed
//	indexed           --gate_blocked------> indexed (no-op signal)
//	indexed           --context_retrieved-> context-retrieved
//	context-retrieved --answer_ready------> answered
//	<any non-terminal> --failure----------> failed
//
// context_retrieved requires gate proof: the orchestrator runs the gating
// check and sets Event.GatePassed. The machine never inspects other entities
// itself; it trusts the boolean it is handed.
func AdvanceQuery(q *core.Query, ev Event) (*core.Query, error) {
	if q == nil {
		return nil, core.ErrInvalidQuery
	}

	if ev.Tag == TagFailure {
		return failQuery(q, ev)
	}

	out := q.Clone()
	switch {
	case q.Status == core.QueryCreated && ev.Tag == TagProcessStarted:
		out.Status = core.QueryProcessing

	case q.Status == core.QueryProcessing && ev.Tag == TagAssociationDone:
		if ev.Now.IsZero() {
			return nil, ErrMissingTimestamp
		}
		out.Status = core.QueryProcessed
		out.ProcessedAt = ev.Now
		out.TargetDocumentIDs = append([]string(nil), ev.TargetDocumentIDs...)

	case q.Status == core.QueryProcessed && ev.Tag == TagIndexStarted:
		out.Status = core.QueryIndexing

	case q.Status == core.QueryIndexing && ev.Tag == TagEmbeddingDone:
		if ev.Now.IsZero() {
			return nil, ErrMissingTimestamp
		}
		out.Status = core.QueryIndexed
		out.IndexedAt = ev.Now

	case q.Status == core.QueryIndexed && ev.Tag == TagGateBlocked:
		// Not a regression and not progress: the orchestrator schedules a
		// delayed re-check. The query itself is untouched.
		return out, nil

	case q.Status == core.QueryIndexed && ev.Tag == TagContextRetrieved:
		if !ev.GatePassed {
			return nil, fmt.Errorf("%w: query %s", ErrGateNotPassed, q.ID)
		}
		if ev.Now.IsZero() {
			return nil, ErrMissingTimestamp
		}
		out.Status = core.QueryContextRetrieved
		out.ContextRetrievedAt = ev.Now
		out.ContextPageIDs = append([]string(nil), ev.ContextPageIDs...)

	case q.Status == core.QueryContextRetrieved && ev.Tag == TagAnswerReady:
		if ev.Now.IsZero() {
			return nil, ErrMissingTimestamp
		}
		out.Status = core.QueryAnswered
		out.AnsweredAt = ev.Now
		out.Answer = ev.Answer

	default:
		return nil, fmt.Errorf("%w: query %s cannot apply %q while %q",
			ErrInvalidTransition, q.ID, ev.Tag, q.Status)
	}

	if err := core.ValidateQuery(out); err != nil {
		return nil, err
	}
	return out, nil
}

func failQuery(q *core.Query, ev Event) (*core.Query, error) {
	if q.Status.Terminal() {
		return nil, fmt.Errorf("%w: query %s cannot fail while %q",
			ErrInvalidTransition, q.ID, q.Status)
	}
	out := q.Clone()
	setExtra(&out.Extra, ExtraFailedFrom, string(q.Status))
	setExtra(&out.Extra, ExtraFailReason, ev.Reason)
	if len(ev.PendingDocumentIDs) > 0 {
		setExtra(&out.Extra, ExtraPendingDocs, strings.Join(ev.PendingDocumentIDs, pendingDocsJoiner))
	}
	out.Status = core.QueryFailed
	return out, nil
}
