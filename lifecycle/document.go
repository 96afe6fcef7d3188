package lifecycle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/poiesic/docai/core"
)

// AdvanceDocument applies a lifecycle event to a document and returns the
// resulting document. The input is never mutated. Events that are not legal
// from the current status return ErrInvalidTransition.
//
// Transition table:
//
//	created    --conversion_done--> processing
//	processing --storage_done-----> processed
//	processed  --index_started----> indexing
//	indexing   --embedding_done---> indexed
//	<any non-terminal> --failure--> failed
func AdvanceDocument(d *core.Document, ev Event) (*core.Document, error) {
	if d == nil {
		return nil, core.ErrInvalidDocument
	}

	if ev.Tag == TagFailure {
		return failDocument(d, ev)
	}

	out := d.Clone()
	switch {
	case d.Status == core.DocumentCreated && ev.Tag == TagConversionDone:
		out.Status = core.DocumentProcessing
		setExtra(&out.Extra, ExtraPageCount, strconv.Itoa(ev.PageCount))

	case d.Status == core.DocumentProcessing && ev.Tag == TagStorageDone:
		if ev.Now.IsZero() {
			return nil, ErrMissingTimestamp
		}
		out.Status = core.DocumentProcessed
		out.ProcessedAt = ev.Now
		out.Pages = make([]core.Page, len(ev.Pages))
		copy(out.Pages, ev.Pages)

	case d.Status == core.DocumentProcessed && ev.Tag == TagIndexStarted:
		out.Status = core.DocumentIndexing

	case d.Status == core.DocumentIndexing && ev.Tag == TagEmbeddingDone:
		if ev.Now.IsZero() {
			return nil, ErrMissingTimestamp
		}
		out.Status = core.DocumentIndexed
		out.IndexedAt = ev.Now

	default:
		return nil, fmt.Errorf("%w: document %s cannot apply %q while %q",
			ErrInvalidTransition, d.ID, ev.Tag, d.Status)
	}

	if err := core.ValidateDocument(out); err != nil {
		return nil, err
	}
	return out, nil
}

func failDocument(d *core.Document, ev Event) (*core.Document, error) {
	if d.Status.Terminal() {
		return nil, fmt.Errorf("%w: document %s cannot fail while %q",
			ErrInvalidTransition, d.ID, d.Status)
	}
	out := d.Clone()
	setExtra(&out.Extra, ExtraFailedFrom, string(d.Status))
	setExtra(&out.Extra, ExtraFailReason, ev.Reason)
	if len(ev.PendingDocumentIDs) > 0 {
		setExtra(&out.Extra, ExtraPendingDocs, strings.Join(ev.PendingDocumentIDs, pendingDocsJoiner))
	}
	out.Status = core.DocumentFailed
	return out, nil
}

func setExtra(m *map[string]string, key, value string) {
	if *m == nil {
		*m = make(map[string]string)
	}
	(*m)[key] = value
}
