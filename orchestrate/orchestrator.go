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
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/poiesic/docai/ai"
	"github.com/poiesic/docai/convert"
	"github.com/poiesic/docai/core"
	"github.com/poiesic/docai/index"
	"github.com/poiesic/docai/lifecycle"
	"github.com/poiesic/docai/queue"
	"github.com/poiesic/docai/storage"
)

// Outcome reports how a delivery was settled.
type Outcome int

const (
	// OutcomeApplied means the stage's work was done and persisted.
	OutcomeApplied Outcome = iota
	// OutcomeSkipped means the delivery was a duplicate of work already done.
	OutcomeSkipped
	// OutcomeRequeued means the envelope went back without consuming an
	// attempt: either a predecessor stage has not finished yet or a
	// compare-and-set write lost a race.
	OutcomeRequeued
	// OutcomeGateBlocked means the query's gating check did not pass and a
	// delayed re-check was scheduled.
	OutcomeGateBlocked
	// OutcomeRetried means a transient failure consumed an attempt.
	OutcomeRetried
	// OutcomeEntityFailed means the entity was moved to failed.
	OutcomeEntityFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeRequeued:
		return "requeued"
	case OutcomeGateBlocked:
		return "gate-blocked"
	case OutcomeRetried:
		return "retried"
	case OutcomeEntityFailed:
		return "entity-failed"
	default:
		return "unknown"
	}
}

// Orchestrator drives lifecycles by processing queue envelopes.
type Orchestrator struct {
	entities  storage.EntityStore
	blobs     storage.BlobStore
	events    queue.EventQueue
	vectors   index.VectorIndex
	converter convert.Converter
	embedder  ai.Embedder
	generator ai.Generator
	cfg       *Config
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the time source. Used by tests to drive gate
// timeouts deterministically.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator wires an orchestrator from its collaborators.
func NewOrchestrator(
	entities storage.EntityStore,
	blobs storage.BlobStore,
	events queue.EventQueue,
	vectors index.VectorIndex,
	converter convert.Converter,
	provider ai.Provider,
	cfg *Config,
	opts ...Option,
) (*Orchestrator, error) {
	if entities == nil {
		return nil, errors.New("entity store is required")
	}
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if events == nil {
		return nil, errors.New("event queue is required")
	}
	if vectors == nil {
		return nil, errors.New("vector index is required")
	}
	if converter == nil {
		return nil, errors.New("converter is required")
	}
	if provider == nil {
		return nil, errors.New("ai provider is required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		entities:  entities,
		blobs:     blobs,
		events:    events,
		vectors:   vectors,
		converter: converter,
		embedder:  provider.Embedder(),
		generator: provider.Generator(),
		cfg:       cfg,
		now:       time.Now,
		logger:    slog.Default().With("component", "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// rawBlobKey addresses a document's raw upload.
func rawBlobKey(documentID string) string {
	return "raw/" + documentID
}

// pageBlobKey addresses one page artifact of a document.
func pageBlobKey(documentID string, pageNumber int) string {
	return fmt.Sprintf("pages/%s/%d", documentID, pageNumber)
}

// CreateDocument registers an uploaded file and kicks off its pipeline.
// The raw content is stored first, then the record, then the first stage
// envelope; a crash between the last two leaves a created document that a
// re-submitted envelope can pick up.
func (o *Orchestrator) CreateDocument(ctx context.Context, fileName string, raw []byte) (*core.Document, error) {
	if strings.TrimSpace(fileName) == "" {
		return nil, core.ErrEmptyFileName
	}
	if len(raw) == 0 {
		return nil, convert.ErrEmptyInput
	}

	doc := &core.Document{
		ID:        core.NewDocumentID(),
		FileName:  fileName,
		CreatedAt: o.now().UTC(),
		Status:    core.DocumentCreated,
	}
	if _, err := o.blobs.Put(ctx, rawBlobKey(doc.ID), raw); err != nil {
		return nil, fmt.Errorf("store raw upload: %w", err)
	}
	if err := o.entities.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}
	if err := o.events.Enqueue(ctx, queue.NewEnvelope(queue.KindDocument, doc.ID, lifecycle.TagConversionDone)); err != nil {
		return nil, fmt.Errorf("enqueue first stage: %w", err)
	}

	o.logger.Info("document created", "document", doc.ID, "file", fileName)
	return doc, nil
}

// CreateQuery registers a question and kicks off its pipeline.
func (o *Orchestrator) CreateQuery(ctx context.Context, text string) (*core.Query, error) {
	if strings.TrimSpace(text) == "" {
		return nil, core.ErrEmptyQueryText
	}

	q := &core.Query{
		ID:        core.NewQueryID(),
		Text:      text,
		CreatedAt: o.now().UTC(),
		Status:    core.QueryCreated,
	}
	if err := o.entities.CreateQuery(ctx, q); err != nil {
		return nil, err
	}
	if err := o.events.Enqueue(ctx, queue.NewEnvelope(queue.KindQuery, q.ID, lifecycle.TagAssociationDone)); err != nil {
		return nil, fmt.Errorf("enqueue first stage: %w", err)
	}

	o.logger.Info("query created", "query", q.ID)
	return q, nil
}

// HandleDelivery processes one delivery end to end and settles it with the
// queue. The returned error reports the stage failure, if any, after the
// delivery has been settled.
func (o *Orchestrator) HandleDelivery(ctx context.Context, d *queue.Delivery) (Outcome, error) {
	env := d.Envelope
	out, stageErr := o.dispatch(ctx, env)

	// Permanent failures never consume attempts: the entity fails now.
	if out == OutcomeRetried && permanent(stageErr) {
		o.failEntity(ctx, env, stageErr.Error(), nil)
		out = OutcomeEntityFailed
	}

	switch out {
	case OutcomeApplied, OutcomeSkipped, OutcomeEntityFailed:
		if err := o.events.Ack(ctx, d.Receipt); err != nil && !errors.Is(err, queue.ErrUnknownReceipt) {
			return out, err
		}
	case OutcomeRequeued:
		if err := o.events.Requeue(ctx, d.Receipt, o.cfg.RequeueDelay); err != nil {
			return out, err
		}
	case OutcomeGateBlocked:
		if err := o.events.Requeue(ctx, d.Receipt, o.cfg.GateRetryDelay); err != nil {
			return out, err
		}
	case OutcomeRetried:
		if env.Attempt+1 >= o.cfg.MaxAttempts {
			reason := fmt.Sprintf("%v: %v", ErrAttemptsExhausted, stageErr)
			o.failEntity(ctx, env, reason, nil)
			out = OutcomeEntityFailed
			if err := o.events.Ack(ctx, d.Receipt); err != nil && !errors.Is(err, queue.ErrUnknownReceipt) {
				return out, err
			}
		} else {
			delay := retryDelay(o.cfg.RetryBaseDelay, o.cfg.MaxRetryDelay, env.Attempt+1)
			if err := o.events.Nack(ctx, d.Receipt, delay); err != nil {
				return out, err
			}
		}
	}

	if stageErr != nil {
		o.logger.Warn("stage did not complete",
			"kind", env.Kind, "entity", env.EntityID, "stage", env.Tag,
			"attempt", env.Attempt, "outcome", out.String(), "err", stageErr)
	} else {
		o.logger.Debug("stage settled",
			"kind", env.Kind, "entity", env.EntityID, "stage", env.Tag,
			"outcome", out.String())
	}
	return out, stageErr
}

// dispatch routes an envelope to its stage handler.
func (o *Orchestrator) dispatch(ctx context.Context, env queue.Envelope) (Outcome, error) {
	switch env.Kind {
	case queue.KindDocument:
		switch env.Tag {
		case lifecycle.TagConversionDone:
			return o.handleDocumentConversion(ctx, env)
		case lifecycle.TagStorageDone:
			return o.handleDocumentStorage(ctx, env)
		case lifecycle.TagEmbeddingDone:
			return o.handleDocumentEmbedding(ctx, env)
		}
	case queue.KindQuery:
		switch env.Tag {
		case lifecycle.TagAssociationDone:
			return o.handleQueryAssociation(ctx, env)
		case lifecycle.TagEmbeddingDone:
			return o.handleQueryEmbedding(ctx, env)
		case lifecycle.TagContextRetrieved:
			return o.handleQueryRetrieval(ctx, env)
		case lifecycle.TagAnswerReady:
			return o.handleQueryAnswer(ctx, env)
		}
	}
	return OutcomeRetried, fmt.Errorf("%w: %s/%s", ErrUnknownStage, env.Kind, env.Tag)
}

// failEntity moves the envelope's entity to failed with the given reason.
// Lost write races are retried a few times against fresh state; an entity
// that reached a terminal status in the meantime is left alone.
func (o *Orchestrator) failEntity(ctx context.Context, env queue.Envelope, reason string, pending []string) {
	ev := lifecycle.Event{Tag: lifecycle.TagFailure, Reason: reason, PendingDocumentIDs: pending}

	for i := 0; i < 3; i++ {
		var err error
		switch env.Kind {
		case queue.KindDocument:
			var doc *core.Document
			doc, err = o.entities.GetDocument(ctx, env.EntityID)
			if err != nil {
				break
			}
			if doc.Status.Terminal() {
				return
			}
			var failed *core.Document
			failed, err = lifecycle.AdvanceDocument(doc, ev)
			if err != nil {
				break
			}
			err = o.entities.CompareAndSetDocument(ctx, doc.Status, failed)
		case queue.KindQuery:
			var q *core.Query
			q, err = o.entities.GetQuery(ctx, env.EntityID)
			if err != nil {
				break
			}
			if q.Status.Terminal() {
				return
			}
			var failed *core.Query
			failed, err = lifecycle.AdvanceQuery(q, ev)
			if err != nil {
				break
			}
			err = o.entities.CompareAndSetQuery(ctx, q.Status, failed)
		}
		if err == nil {
			o.logger.Warn("entity failed", "kind", env.Kind, "entity", env.EntityID, "reason", reason)
			return
		}
		if !errors.Is(err, storage.ErrConcurrentModification) {
			o.logger.Error("could not record entity failure",
				"kind", env.Kind, "entity", env.EntityID, "err", err)
			return
		}
	}
	o.logger.Error("gave up recording entity failure after repeated write races",
		"kind", env.Kind, "entity", env.EntityID)
}

// callContext bounds one collaborator call.
func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.cfg.CallTimeout)
}

// pageSnippet derives the text used for embedding and answering from a page
// artifact. Textual artifacts are used as-is; binary artifacts fall back to
// a positional descriptor.
// TODO: extract page text via pdfcpu content extraction instead of the
// binary fallback.
func pageSnippet(fileName string, pageNumber int, data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return fmt.Sprintf("%s, page %d", fileName, pageNumber)
}
