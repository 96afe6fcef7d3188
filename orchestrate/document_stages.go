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


package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/poiesic/docai/core"
	"github.com/poiesic/docai/lifecycle"
	"github.com/poiesic/docai/queue"
	"github.com/poiesic/docai/storage"
)

// stagePlacement classifies where the entity stands relative to a stage.
type stagePlacement int

const (
	placeEarly    stagePlacement = iota // predecessor not finished yet
	placeReady                          // at the stage's input status
	placeProduced                       // exactly at the stage's output status
	placeBeyond                         // past the stage, or failed
)

// placeDocument compares a document's status against a stage's input and
// output ranks. Failed documents always place beyond: a failed entity never
// processes further events.
func placeDocument(s core.DocumentStatus, inputRank, producedRank int) stagePlacement {
	rank, ok := s.Rank()
	if !ok {
		return placeBeyond
	}
	switch {
	case rank < inputRank:
		return placeEarly
	case rank < producedRank:
		return placeReady
	case rank == producedRank:
		return placeProduced
	default:
		return placeBeyond
	}
}

// handleDocumentConversion runs created -> processing: load the raw upload,
// split it into page artifacts, record the page count.
func (o *Orchestrator) handleDocumentConversion(ctx context.Context, env queue.Envelope) (Outcome, error) {
	doc, err := o.entities.GetDocument(ctx, env.EntityID)
	if err != nil {
		return OutcomeRetried, err
	}

	inputRank, _ := core.DocumentCreated.Rank()
	producedRank, _ := core.DocumentProcessing.Rank()
	switch placeDocument(doc.Status, inputRank, producedRank) {
	case placeProduced:
		// Work is persisted but the successor envelope may have been lost;
		// re-publishing it is a no-op when it was not.
		if err := o.events.Enqueue(ctx, queue.NewEnvelope(queue.KindDocument, doc.ID, lifecycle.TagStorageDone)); err != nil {
			return OutcomeRetried, err
		}
		return OutcomeSkipped, nil
	case placeBeyond:
		return OutcomeSkipped, nil
	}

	raw, err := o.blobs.Get(ctx, rawBlobKey(doc.ID))
	if err != nil {
		return OutcomeRetried, err
	}

	cctx, cancel := o.callContext(ctx)
	result, err := o.converter.Convert(cctx, doc.FileName, raw)
	cancel()
	if err != nil {
		return OutcomeRetried, err
	}

	for i, page := range result.Pages {
		if _, err := o.blobs.Put(ctx, pageBlobKey(doc.ID, i), page); err != nil {
			return OutcomeRetried, fmt.Errorf("store page %d: %w", i, err)
		}
	}

	advanced, err := lifecycle.AdvanceDocument(doc, lifecycle.Event{
		Tag:       lifecycle.TagConversionDone,
		PageCount: result.PageCount,
	})
	if err != nil {
		return OutcomeRetried, err
	}
	if err := o.entities.CompareAndSetDocument(ctx, core.DocumentCreated, advanced); err != nil {
		if errors.Is(err, storage.ErrConcurrentModification) {
			return OutcomeRequeued, nil
		}
		return OutcomeRetried, err
	}

	if err := o.events.Enqueue(ctx, queue.NewEnvelope(queue.KindDocument, doc.ID, lifecycle.TagStorageDone)); err != nil {
		return OutcomeRetried, err
	}
	return OutcomeApplied, nil
}

// handleDocumentStorage runs processing -> processed: rebuild the
// deterministic page records from the recorded page count and verify every
// artifact exists. Page IDs derive from (document, page number), so a
// replay regenerates identical records.
func (o *Orchestrator) handleDocumentStorage(ctx context.Context, env queue.Envelope) (Outcome, error) {
	doc, err := o.entities.GetDocument(ctx, env.EntityID)
	if err != nil {
		return OutcomeRetried, err
	}

	inputRank, _ := core.DocumentProcessing.Rank()
	producedRank, _ := core.DocumentProcessed.Rank()
	switch placeDocument(doc.Status, inputRank, producedRank) {
	case placeEarly:
		return OutcomeRequeued, nil
	case placeProduced:
		if err := o.events.Enqueue(ctx, queue.NewEnvelope(queue.KindDocument, doc.ID, lifecycle.TagEmbeddingDone)); err != nil {
			return OutcomeRetried, err
		}
		return OutcomeSkipped, nil
	case placeBeyond:
		return OutcomeSkipped, nil
	}

	pageCount, err := strconv.Atoi(doc.Extra[lifecycle.ExtraPageCount])
	if err != nil || pageCount < 1 {
		return OutcomeRetried, fmt.Errorf("%w: document %s has no usable page count",
			lifecycle.ErrInvalidTransition, doc.ID)
	}

	pages := make([]core.Page, pageCount)
	for n := 0; n < pageCount; n++ {
		key := pageBlobKey(doc.ID, n)
		if _, err := o.blobs.Get(ctx, key); err != nil {
			return OutcomeRetried, fmt.Errorf("verify page artifact %d: %w", n, err)
		}
		pages[n] = core.Page{
			ID:         core.PageID(doc.ID, n),
			PageNumber: n,
			ImagePath:  key,
		}
	}

	advanced, err := lifecycle.AdvanceDocument(doc, lifecycle.Event{
		Tag:   lifecycle.TagStorageDone,
		Now:   o.now().UTC(),
		Pages: pages,
	})
	if err != nil {
		return OutcomeRetried, err
	}
	if err := o.entities.CompareAndSetDocument(ctx, core.DocumentProcessing, advanced); err != nil {
		if errors.Is(err, storage.ErrConcurrentModification) {
			return OutcomeRequeued, nil
		}
		return OutcomeRetried, err
	}

	if err := o.events.Enqueue(ctx, queue.NewEnvelope(queue.KindDocument, doc.ID, lifecycle.TagEmbeddingDone)); err != nil {
		return OutcomeRetried, err
	}
	return OutcomeApplied, nil
}

// handleDocumentEmbedding runs processed -> indexing -> indexed: claim the
// document, embed every page into the vector index, then mark it indexed.
// A crash after the claim resumes here with the claim already persisted;
// vector writes are idempotent so re-embedding is safe.
func (o *Orchestrator) handleDocumentEmbedding(ctx context.Context, env queue.Envelope) (Outcome, error) {
	doc, err := o.entities.GetDocument(ctx, env.EntityID)
	if err != nil {
		return OutcomeRetried, err
	}

	inputRank, _ := core.DocumentProcessed.Rank()
	producedRank, _ := core.DocumentIndexed.Rank()
	switch placeDocument(doc.Status, inputRank, producedRank) {
	case placeEarly:
		return OutcomeRequeued, nil
	case placeProduced, placeBeyond:
		return OutcomeSkipped, nil
	}

	if doc.Status == core.DocumentProcessed {
		claimed, err := lifecycle.AdvanceDocument(doc, lifecycle.Event{Tag: lifecycle.TagIndexStarted})
		if err != nil {
			return OutcomeRetried, err
		}
		if err := o.entities.CompareAndSetDocument(ctx, core.DocumentProcessed, claimed); err != nil {
			if errors.Is(err, storage.ErrConcurrentModification) {
				return OutcomeRequeued, nil
			}
			return OutcomeRetried, err
		}
		doc = claimed
	}

	texts := make([]string, len(doc.Pages))
	for i, page := range doc.Pages {
		data, err := o.blobs.Get(ctx, page.ImagePath)
		if err != nil {
			return OutcomeRetried, fmt.Errorf("load page artifact %d: %w", page.PageNumber, err)
		}
		texts[i] = pageSnippet(doc.FileName, page.PageNumber, data)
	}

	cctx, cancel := o.callContext(ctx)
	vectors, err := o.embedder.EmbedTexts(cctx, texts)
	cancel()
	if err != nil {
		return OutcomeRetried, err
	}
	if len(vectors) != len(doc.Pages) {
		return OutcomeRetried, fmt.Errorf("embedding result mismatch: expected %d, received %d",
			len(doc.Pages), len(vectors))
	}
	for i, page := range doc.Pages {
		if err := o.vectors.PutPageVector(ctx, doc.ID, page.ID, vectors[i]); err != nil {
			return OutcomeRetried, fmt.Errorf("index page %d: %w", page.PageNumber, err)
		}
	}

	advanced, err := lifecycle.AdvanceDocument(doc, lifecycle.Event{
		Tag: lifecycle.TagEmbeddingDone,
		Now: o.now().UTC(),
	})
	if err != nil {
		return OutcomeRetried, err
	}
	if err := o.entities.CompareAndSetDocument(ctx, core.DocumentIndexing, advanced); err != nil {
		if errors.Is(err, storage.ErrConcurrentModification) {
			return OutcomeRequeued, nil
		}
		return OutcomeRetried, err
	}
	return OutcomeApplied, nil
}
