// Package mock provides a deterministic test double for convert.Converter.
package mock

import (
	"context"
	"fmt"

	"github.com/poiesic/docai/convert"
)

// MockConverter is a test double for convert.Converter.
// It allows custom behavior injection via a function field.
type MockConverter struct {
	// ConvertFunc is called by Convert if set.
	// If nil, uses default deterministic behavior.
	ConvertFunc func(ctx context.Context, fileName string, raw []byte) (*convert.Result, error)

	// DefaultPageCount is the page count produced by the default behavior.
	// Zero means 3.
	DefaultPageCount int

	callCount int
}

var _ convert.Converter = (*MockConverter)(nil)

// NewMockConverter creates a mock converter with default deterministic behavior.
func NewMockConverter() *MockConverter {
	return &MockConverter{}
}

// Convert produces synthetic page artifacts derived from the file name.
func (m *MockConverter) Convert(ctx context.Context, fileName string, raw []byte) (*convert.Result, error) {
	m.callCount++

	if m.ConvertFunc != nil {
		return m.ConvertFunc(ctx, fileName, raw)
	}
	if len(raw) == 0 {
		return nil, convert.ErrEmptyInput
	}

	count := m.DefaultPageCount
	if count <= 0 {
		count = 3
	}
	pages := make([][]byte, count)
	for i := range pages {
		pages[i] = []byte(fmt.Sprintf("page %d of %s", i+1, fileName))
	}
	return &convert.Result{PageCount: count, Pages: pages}, nil
}

// CallCount returns the number of times Convert was called.
func (m *MockConverter) CallCount() int {
	return m.callCount
}

// Reset clears the call count and any injected behavior.
func (m *MockConverter) Reset() {
	m.callCount = 0
	m.ConvertFunc = nil
}
