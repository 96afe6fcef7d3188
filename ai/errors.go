package ai

import "errors"

var (
	// ErrEmptyInput indicates a request with no text to process.
	ErrEmptyInput = errors.New("ai: empty input")

	// ErrContextTooLarge indicates the combined context exceeds the model's
	// window. Retrying with the same context cannot succeed.
	ErrContextTooLarge = errors.New("ai: context too large")

	// ErrNoAnswer indicates the model returned no usable completion.
	ErrNoAnswer = errors.New("ai: model returned no answer")
)
