package convert

import "context"

// Result is the outcome of a successful conversion. Pages are ordered by
// page number, starting at page 0.
type Result struct {
	PageCount int
	Pages     [][]byte
}

// Converter splits a raw document into per-page artifacts.
// Implementations must be thread-safe for concurrent use.
type Converter interface {
	// Convert processes raw file content. fileName is advisory, used for
	// format detection and diagnostics. Returns ErrUnsupportedFormat or
	// ErrCorruptInput for inputs that can never convert; any other error
	// may be transient and is worth retrying.
	Convert(ctx context.Context, fileName string, raw []byte) (*Result, error)
}
