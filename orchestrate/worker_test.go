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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docai/core"
)

func TestWorker_ProcessesPipelinesInBackground(t *testing.T) {
	r := newTestRig(t, WithPoolSize(2))

	w, err := NewWorker(r.orch)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	ctx := context.Background()
	doc, err := r.orch.CreateDocument(ctx, "bg.pdf", []byte("raw"))
	require.NoError(t, err)
	q, err := r.orch.CreateQuery(ctx, "what is in bg.pdf?")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		d, err := r.entities.GetDocument(ctx, doc.ID)
		if err != nil || !d.Status.Terminal() {
			return false
		}
		got, err := r.entities.GetQuery(ctx, q.ID)
		return err == nil && got.Status.Terminal()
	}, 10*time.Second, 5*time.Millisecond)

	d, err := r.entities.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, core.DocumentIndexed, d.Status)

	got, err := r.entities.GetQuery(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, core.QueryAnswered, got.Status)
}

func TestWorker_StopIsIdempotentAndUnblocks(t *testing.T) {
	r := newTestRig(t)

	w, err := NewWorker(r.orch)
	require.NoError(t, err)
	w.Start()
	w.Start() // second start is a no-op

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_RunReturnsWhenQueueCloses(t *testing.T) {
	r := newTestRig(t)

	w, err := NewWorker(r.orch)
	require.NoError(t, err)

	errs := make(chan error, 1)
	go func() {
		errs <- w.Run(context.Background())
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, r.events.Close())

	select {
	case err := <-errs:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after queue close")
	}
}
