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


// Package docai assembles the document question-answering pipeline: a
// Badger-backed entity and blob store, a vector index, an event queue, the
// conversion and AI collaborators, and the orchestrator that drives
// document and query lifecycles over them.
package docai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/docai/ai"
	"github.com/poiesic/docai/ai/openai"
	"github.com/poiesic/docai/convert"
	"github.com/poiesic/docai/convert/pdfcpu"
	"github.com/poiesic/docai/core"
	"github.com/poiesic/docai/index"
	indexbadger "github.com/poiesic/docai/index/badger"
	"github.com/poiesic/docai/orchestrate"
	"github.com/poiesic/docai/queue"
	queuememory "github.com/poiesic/docai/queue/memory"
	"github.com/poiesic/docai/storage"
	storagebadger "github.com/poiesic/docai/storage/badger"
)

// Engine owns the assembled pipeline.
type Engine struct {
	backend      *storagebadger.Backend
	store        *storagebadger.Store
	vectors      index.VectorIndex
	events       queue.EventQueue
	ownsQueue    bool
	provider     ai.Provider
	converter    convert.Converter
	orchestrator *orchestrate.Orchestrator
	worker       *orchestrate.Worker
	logger       *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	aiConfig     *ai.Config
	orchConfig   *orchestrate.Config
	queue        queue.EventQueue
	provider     ai.Provider
	converter    convert.Converter
	inMemory     bool
	orchestrator []orchestrate.Option
}

// WithAIConfig sets the AI provider configuration.
func WithAIConfig(cfg *ai.Config) EngineOption {
	return func(o *engineOptions) {
		o.aiConfig = cfg
	}
}

// WithOrchestratorConfig sets the orchestrator configuration.
func WithOrchestratorConfig(cfg *orchestrate.Config) EngineOption {
	return func(o *engineOptions) {
		o.orchConfig = cfg
	}
}

// WithQueue injects an event queue, e.g. a Redis Streams queue for
// multi-worker deployments. The default is an in-process queue. Injected
// queues are not closed by the engine.
func WithQueue(q queue.EventQueue) EngineOption {
	return func(o *engineOptions) {
		o.queue = q
	}
}

// WithProvider injects an AI provider, replacing the OpenAI-compatible
// default. Used by tests with the mock provider.
func WithProvider(p ai.Provider) EngineOption {
	return func(o *engineOptions) {
		o.provider = p
	}
}

// WithConverter injects a document converter, replacing the pdfcpu default.
func WithConverter(c convert.Converter) EngineOption {
	return func(o *engineOptions) {
		o.converter = c
	}
}

// WithInMemoryStorage keeps all Badger state in memory. Used by tests.
func WithInMemoryStorage() EngineOption {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// WithOrchestratorOptions forwards options to the orchestrator, e.g. a test
// clock.
func WithOrchestratorOptions(opts ...orchestrate.Option) EngineOption {
	return func(o *engineOptions) {
		o.orchestrator = append(o.orchestrator, opts...)
	}
}

// NewEngine opens the store at filePath and assembles the pipeline.
func NewEngine(filePath string, opts ...EngineOption) (*Engine, error) {
	options := &engineOptions{
		aiConfig:   ai.DefaultConfig(),
		orchConfig: orchestrate.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := storagebadger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}
	store := storagebadger.NewStore(backend)
	vectors := indexbadger.NewIndex(backend)

	events := options.queue
	ownsQueue := false
	if events == nil {
		events = queuememory.New()
		ownsQueue = true
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	converter := options.converter
	if converter == nil {
		converter = pdfcpu.NewConverter()
	}

	orchestrator, err := orchestrate.NewOrchestrator(
		store, store, events, vectors, converter, provider,
		options.orchConfig, options.orchestrator...)
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	worker, err := orchestrate.NewWorker(orchestrator)
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	return &Engine{
		backend:      backend,
		store:        store,
		vectors:      vectors,
		events:       events,
		ownsQueue:    ownsQueue,
		provider:     provider,
		converter:    converter,
		orchestrator: orchestrator,
		worker:       worker,
		logger:       slog.Default(),
	}, nil
}

// IngestDocument registers an uploaded file and starts its pipeline.
func (e *Engine) IngestDocument(ctx context.Context, fileName string, raw []byte) (*core.Document, error) {
	return e.orchestrator.CreateDocument(ctx, fileName, raw)
}

// Ask registers a question and starts its pipeline.
func (e *Engine) Ask(ctx context.Context, text string) (*core.Query, error) {
	return e.orchestrator.CreateQuery(ctx, text)
}

// Document retrieves a document by ID.
func (e *Engine) Document(ctx context.Context, id string) (*core.Document, error) {
	return e.store.GetDocument(ctx, id)
}

// Query retrieves a query by ID.
func (e *Engine) Query(ctx context.Context, id string) (*core.Query, error) {
	return e.store.GetQuery(ctx, id)
}

// Documents lists every document, ordered by creation time.
func (e *Engine) Documents(ctx context.Context) ([]core.Document, error) {
	return e.store.ListDocumentsCreatedBefore(ctx, time.Now().UTC())
}

// WaitForQuery polls a query until it reaches a terminal status or the
// context expires.
func (e *Engine) WaitForQuery(ctx context.Context, id string, poll time.Duration) (*core.Query, error) {
	if poll <= 0 {
		poll = 200 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		q, err := e.store.GetQuery(ctx, id)
		if err != nil {
			return nil, err
		}
		if q.Status.Terminal() {
			return q, nil
		}
		select {
		case <-ctx.Done():
			return q, fmt.Errorf("query %s still %s: %w", id, q.Status, ctx.Err())
		case <-ticker.C:
		}
	}
}

// StartWorker begins background envelope processing.
func (e *Engine) StartWorker() {
	e.worker.Start()
}

// StopWorker stops background processing and waits for in-flight stages.
func (e *Engine) StopWorker() {
	e.worker.Stop()
}

// RunWorker processes envelopes until the context is cancelled. Used by the
// dedicated worker command.
func (e *Engine) RunWorker(ctx context.Context) error {
	return e.worker.Run(ctx)
}

// Orchestrator exposes the underlying orchestrator, mainly for tests.
func (e *Engine) Orchestrator() *orchestrate.Orchestrator {
	return e.orchestrator
}

// Close stops the worker and releases every owned resource.
func (e *Engine) Close() error {
	e.worker.Stop()

	var errs []error
	if e.ownsQueue {
		if err := e.events.Close(); err != nil && !errors.Is(err, queue.ErrQueueClosed) {
			errs = append(errs, err)
		}
	}
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
		errs = append(errs, err)
	}
	if err := e.backend.Close(); err != nil && !errors.Is(err, storage.ErrStorageClosed) {
		e.logger.Error("error closing backend storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
