// Package lifecycle contains the pure state machines governing Document and
// Query progression, together with the association resolver and the gating
// check.
//
// Nothing in this package performs I/O. Advance functions are deterministic:
// given the same entity and event they always produce the same result, which
// makes replay under at-least-once delivery safe. All side effects
// (conversion, storage, embedding, generation) happen in the orchestrate
// package before an event reaches a state machine.
package lifecycle
