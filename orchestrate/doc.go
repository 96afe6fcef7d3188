// Package orchestrate drives document and query lifecycles through their
// stages. Stage handlers are triggered by queue envelopes, reload entity
// state from storage, call the collaborator for the stage, advance the
// state machine, and persist with compare-and-set. Handlers are idempotent:
// a redelivered envelope for work already done is acked without effect, and
// a lost compare-and-set race is silently requeued.
package orchestrate
