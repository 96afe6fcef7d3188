package orchestrate

import (
	"errors"

	"github.com/poiesic/docai/ai"
	"github.com/poiesic/docai/convert"
	"github.com/poiesic/docai/lifecycle"
	"github.com/poiesic/docai/queue"
	"github.com/poiesic/docai/storage"
)

var (
	// ErrGatingTimeout is recorded as the failure reason when a query's
	// target documents fail to index within MaxGateWait.
	ErrGatingTimeout = errors.New("gating timeout: target documents not indexed in time")

	// ErrAttemptsExhausted is recorded as the failure reason when a stage
	// runs out of transient retry attempts.
	ErrAttemptsExhausted = errors.New("retry attempts exhausted")

	// ErrUnknownStage indicates an envelope tag no handler accepts.
	ErrUnknownStage = errors.New("unknown stage tag")
)

// permanent reports whether an error can never succeed on retry. Permanent
// failures fail the entity immediately instead of consuming attempts. A
// missing record or blob counts: with a single store it cannot appear later.
func permanent(err error) bool {
	switch {
	case errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrGateNotPassed),
		errors.Is(err, convert.ErrUnsupportedFormat),
		errors.Is(err, convert.ErrCorruptInput),
		errors.Is(err, convert.ErrEmptyInput),
		errors.Is(err, ai.ErrContextTooLarge),
		errors.Is(err, ai.ErrEmptyInput),
		errors.Is(err, queue.ErrMalformedEnvelope),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, ErrUnknownStage):
		return true
	default:
		return false
	}
}
