// Package mock provides deterministic test doubles for the ai interfaces.
// Behavior can be overridden per-test through function fields.
package mock
