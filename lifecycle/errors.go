package lifecycle

import "errors"

var (
	// ErrInvalidTransition indicates an event that is not legal from the
	// entity's current status. This is a programming or data corruption bug,
	// never a retryable condition.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrGateNotPassed indicates a context_retrieved event without gate
	// proof. The orchestrator must run the gating check first.
	ErrGateNotPassed = errors.New("gating check has not passed")

	// ErrMissingTimestamp indicates an event that stamps a lifecycle
	// timestamp was built without a transition time.
	ErrMissingTimestamp = errors.New("event timestamp required")

	// ErrMissingLookup indicates a gating check without a status lookup.
	ErrMissingLookup = errors.New("status lookup required")
)
