// Package ai defines the interfaces and configuration for the AI services
// the pipeline depends on: text embedding and grounded answer generation.
// Concrete implementations live in subpackages (openai for real services,
// mock for tests).
package ai
