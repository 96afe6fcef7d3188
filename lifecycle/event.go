package lifecycle

import (
	"time"

	"github.com/poiesic/docai/core"
)

// Tag identifies a lifecycle event. Completion tags are applied after the
// corresponding collaborator call succeeded; claim tags mark a stage as
// underway before the call is made.
type Tag string

const (
	// Shared
	TagIndexStarted  Tag = "index_started"
	TagEmbeddingDone Tag = "embedding_done"
	TagFailure       Tag = "failure"

	// Document
	TagConversionDone Tag = "conversion_done"
	TagStorageDone    Tag = "storage_done"

	// Query
	TagProcessStarted   Tag = "process_started"
	TagAssociationDone  Tag = "association_done"
	TagGateBlocked      Tag = "gate_blocked"
	TagContextRetrieved Tag = "context_retrieved"
	TagAnswerReady      Tag = "answer_ready"
)

// Event is the input to an Advance call. Now is the transition time and is
// supplied by the caller so that applying the same event twice yields
// byte-identical results. Payload fields are read only by the tags that
// need them.
type Event struct {
	Tag Tag
	Now time.Time

	PageCount          int         // conversion_done
	Pages              []core.Page // storage_done
	TargetDocumentIDs  []string    // association_done
	GatePassed         bool        // context_retrieved: proof from the gating check
	ContextPageIDs     []string    // context_retrieved
	Answer             string      // answer_ready
	Reason             string      // failure
	PendingDocumentIDs []string    // failure after a gating timeout
}

// Extra keys written by the state machines.
const (
	ExtraPageCount    = "page_count"
	ExtraFailReason   = "failure_reason"
	ExtraFailedFrom   = "failed_from"
	ExtraPendingDocs  = "pending_documents"
	pendingDocsJoiner = ","
)
