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

	"github.com/poiesic/docai/core"
	"github.com/poiesic/docai/lifecycle"
	"github.com/poiesic/docai/queue"
	"github.com/poiesic/docai/storage"
)

// placeQuery compares a query's status against a stage's input and output
// ranks. Failed queries always place beyond.
func placeQuery(s core.QueryStatus, inputRank, producedRank int) stagePlacement {
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

// handleQueryAssociation runs created -> processing -> processed: claim the
// query, then freeze its target document snapshot. The snapshot holds every
// document created strictly before the query (ties broken by ID) and is
// never revisited afterwards.
func (o *Orchestrator) handleQueryAssociation(ctx context.Context, env queue.Envelope) (Outcome, error) {
	q, err := o.entities.GetQuery(ctx, env.EntityID)
	if err != nil {
		return OutcomeRetried, err
	}

	inputRank, _ := core.QueryCreated.Rank()
	producedRank, _ := core.QueryProcessed.Rank()
	switch placeQuery(q.Status, inputRank, producedRank) {
	case placeProduced:
		if err := o.events.Enqueue(ctx, queue.NewEnvelope(queue.KindQuery, q.ID, lifecycle.TagEmbeddingDone)); err != nil {
			return OutcomeRetried, err
		}
		return OutcomeSkipped, nil
	case placeBeyond:
		return OutcomeSkipped, nil
	}

	if q.Status == core.QueryCreated {
		claimed, err := lifecycle.AdvanceQuery(q, lifecycle.Event{Tag: lifecycle.TagProcessStarted})
		if err != nil {
			return OutcomeRetried, err
		}
		if err := o.entities.CompareAndSetQuery(ctx, core.QueryCreated, claimed); err != nil {
			if errors.Is(err, storage.ErrConcurrentModification) {
				return OutcomeRequeued, nil
			}
			return OutcomeRetried, err
		}
		q = claimed
	}

	candidates, err := o.entities.ListDocumentsCreatedBefore(ctx, q.CreatedAt)
	if err != nil {
		return OutcomeRetried, err
	}
	targets := lifecycle.ResolveTargets(q, candidates)

	advanced, err := lifecycle.AdvanceQuery(q, lifecycle.Event{
		Tag:               lifecycle.TagAssociationDone,
		Now:               o.now().UTC(),
		TargetDocumentIDs: targets,
	})
	if err != nil {
		return OutcomeRetried, err
	}
	if err := o.entities.CompareAndSetQuery(ctx, core.QueryProcessing, advanced); err != nil {
		if errors.Is(err, storage.ErrConcurrentModification) {
			return OutcomeRequeued, nil
		}
		return OutcomeRetried, err
	}

	if err := o.events.Enqueue(ctx, queue.NewEnvelope(queue.KindQuery, q.ID, lifecycle.TagEmbeddingDone)); err != nil {
		return OutcomeRetried, err
	}
	return OutcomeApplied, nil
}

// handleQueryEmbedding runs processed -> indexing -> indexed: claim the
// query, embed its text, store the vector for later retrieval.
func (o *Orchestrator) handleQueryEmbedding(ctx context.Context, env queue.Envelope) (Outcome, error) {
	q, err := o.entities.GetQuery(ctx, env.EntityID)
	if err != nil {
		return OutcomeRetried, err
	}

	inputRank, _ := core.QueryProcessed.Rank()
	producedRank, _ := core.QueryIndexed.Rank()
	switch placeQuery(q.Status, inputRank, producedRank) {
	case placeEarly:
		return OutcomeRequeued, nil
	case placeProduced:
		if err := o.events.Enqueue(ctx, queue.NewEnvelope(queue.KindQuery, q.ID, lifecycle.TagContextRetrieved)); err != nil {
			return OutcomeRetried, err
		}
		return OutcomeSkipped, nil
	case placeBeyond:
		return OutcomeSkipped, nil
	}

	if q.Status == core.QueryProcessed {
		claimed, err := lifecycle.AdvanceQuery(q, lifecycle.Event{Tag: lifecycle.TagIndexStarted})
		if err != nil {
			return OutcomeRetried, err
		}
		if err := o.entities.CompareAndSetQuery(ctx, core.QueryProcessed, claimed); err != nil {
			if errors.Is(err, storage.ErrConcurrentModification) {
				return OutcomeRequeued, nil
			}
			return OutcomeRetried, err
		}
		q = claimed
	}

	cctx, cancel := o.callContext(ctx)
	vector, err := o.embedder.EmbedText(cctx, q.Text)
	cancel()
	if err != nil {
		return OutcomeRetried, err
	}
	if err := o.vectors.PutQueryVector(ctx, q.ID, vector); err != nil {
		return OutcomeRetried, err
	}

	advanced, err := lifecycle.AdvanceQuery(q, lifecycle.Event{
		Tag: lifecycle.TagEmbeddingDone,
		Now: o.now().UTC(),
	})
	if err != nil {
		return OutcomeRetried, err
	}
	if err := o.entities.CompareAndSetQuery(ctx, core.QueryIndexing, advanced); err != nil {
		if errors.Is(err, storage.ErrConcurrentModification) {
			return OutcomeRequeued, nil
		}
		return OutcomeRetried, err
	}

	if err := o.events.Enqueue(ctx, queue.NewEnvelope(queue.KindQuery, q.ID, lifecycle.TagContextRetrieved)); err != nil {
		return OutcomeRetried, err
	}
	return OutcomeApplied, nil
}

// handleQueryRetrieval runs indexed -> context-retrieved. The gating check
// is re-evaluated against live document state on every delivery and is never
// cached: it must hold at the moment of this attempt. A blocked gate waits
// and re-checks until MaxGateWait (measured from the query's IndexedAt) has
// elapsed, then fails the query with the still-pending document IDs.
func (o *Orchestrator) handleQueryRetrieval(ctx context.Context, env queue.Envelope) (Outcome, error) {
	q, err := o.entities.GetQuery(ctx, env.EntityID)
	if err != nil {
		return OutcomeRetried, err
	}

	inputRank, _ := core.QueryIndexed.Rank()
	producedRank, _ := core.QueryContextRetrieved.Rank()
	switch placeQuery(q.Status, inputRank, producedRank) {
	case placeEarly:
		return OutcomeRequeued, nil
	case placeProduced:
		if err := o.events.Enqueue(ctx, queue.NewEnvelope(queue.KindQuery, q.ID, lifecycle.TagAnswerReady)); err != nil {
			return OutcomeRetried, err
		}
		return OutcomeSkipped, nil
	case placeBeyond:
		return OutcomeSkipped, nil
	}

	gate, err := lifecycle.CheckIndexed(q.TargetDocumentIDs, func(id string) (core.DocumentStatus, error) {
		doc, err := o.entities.GetDocument(ctx, id)
		if err != nil {
			return "", err
		}
		return doc.Status, nil
	})
	if err != nil {
		return OutcomeRetried, err
	}
	if !gate.Passed {
		if o.now().Sub(q.IndexedAt) >= o.cfg.MaxGateWait {
			reason := fmt.Sprintf("%v: %d document(s) pending", ErrGatingTimeout, len(gate.PendingDocumentIDs))
			o.failEntity(ctx, env, reason, gate.PendingDocumentIDs)
			return OutcomeEntityFailed, nil
		}
		return OutcomeGateBlocked, nil
	}

	var pageIDs []string
	if len(q.TargetDocumentIDs) > 0 {
		vector, err := o.vectors.GetQueryVector(ctx, q.ID)
		if err != nil {
			return OutcomeRetried, err
		}
		matches, err := o.vectors.Search(ctx, vector, q.TargetDocumentIDs, o.cfg.RetrievalLimit)
		if err != nil {
			return OutcomeRetried, err
		}
		pageIDs = make([]string, len(matches))
		for i, m := range matches {
			pageIDs[i] = m.PageID
		}
	}

	advanced, err := lifecycle.AdvanceQuery(q, lifecycle.Event{
		Tag:            lifecycle.TagContextRetrieved,
		Now:            o.now().UTC(),
		GatePassed:     true,
		ContextPageIDs: pageIDs,
	})
	if err != nil {
		return OutcomeRetried, err
	}
	if err := o.entities.CompareAndSetQuery(ctx, core.QueryIndexed, advanced); err != nil {
		if errors.Is(err, storage.ErrConcurrentModification) {
			return OutcomeRequeued, nil
		}
		return OutcomeRetried, err
	}

	if err := o.events.Enqueue(ctx, queue.NewEnvelope(queue.KindQuery, q.ID, lifecycle.TagAnswerReady)); err != nil {
		return OutcomeRetried, err
	}
	return OutcomeApplied, nil
}

// handleQueryAnswer runs context-retrieved -> answered: load the retrieved
// page artifacts and generate the final answer. Terminal stage.
func (o *Orchestrator) handleQueryAnswer(ctx context.Context, env queue.Envelope) (Outcome, error) {
	q, err := o.entities.GetQuery(ctx, env.EntityID)
	if err != nil {
		return OutcomeRetried, err
	}

	inputRank, _ := core.QueryContextRetrieved.Rank()
	producedRank, _ := core.QueryAnswered.Rank()
	switch placeQuery(q.Status, inputRank, producedRank) {
	case placeEarly:
		return OutcomeRequeued, nil
	case placeProduced, placeBeyond:
		return OutcomeSkipped, nil
	}

	snippets, err := o.loadContextSnippets(ctx, q)
	if err != nil {
		return OutcomeRetried, err
	}

	cctx, cancel := o.callContext(ctx)
	answer, err := o.generator.GenerateAnswer(cctx, q.Text, snippets)
	cancel()
	if err != nil {
		return OutcomeRetried, err
	}

	advanced, err := lifecycle.AdvanceQuery(q, lifecycle.Event{
		Tag:    lifecycle.TagAnswerReady,
		Now:    o.now().UTC(),
		Answer: answer,
	})
	if err != nil {
		return OutcomeRetried, err
	}
	if err := o.entities.CompareAndSetQuery(ctx, core.QueryContextRetrieved, advanced); err != nil {
		if errors.Is(err, storage.ErrConcurrentModification) {
			return OutcomeRequeued, nil
		}
		return OutcomeRetried, err
	}
	return OutcomeApplied, nil
}

// loadContextSnippets resolves a query's retrieved page IDs back to page
// artifacts via its target documents and derives the text snippets for
// answer generation, preserving retrieval order.
func (o *Orchestrator) loadContextSnippets(ctx context.Context, q *core.Query) ([]string, error) {
	if len(q.ContextPageIDs) == 0 {
		return nil, nil
	}

	type pageRef struct {
		fileName string
		page     core.Page
	}
	refs := make(map[string]pageRef, len(q.ContextPageIDs))
	for _, docID := range q.TargetDocumentIDs {
		doc, err := o.entities.GetDocument(ctx, docID)
		if err != nil {
			return nil, err
		}
		for _, page := range doc.Pages {
			refs[page.ID] = pageRef{fileName: doc.FileName, page: page}
		}
	}

	snippets := make([]string, 0, len(q.ContextPageIDs))
	for _, pageID := range q.ContextPageIDs {
		ref, ok := refs[pageID]
		if !ok {
			return nil, fmt.Errorf("context page %s not found among target documents", pageID)
		}
		data, err := o.blobs.Get(ctx, ref.page.ImagePath)
		if err != nil {
			return nil, fmt.Errorf("load context page %s: %w", pageID, err)
		}
		snippets = append(snippets, pageSnippet(ref.fileName, ref.page.PageNumber, data))
	}
	return snippets, nil
}
