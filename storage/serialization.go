package storage

import (
	"fmt"

	"github.com/poiesic/docai/core"
)

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(d *core.Document) []byte {
	buf := make([]byte, core.DocumentMUS.Size(*d))
	core.DocumentMUS.Marshal(*d, buf)
	return buf
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	d, _, err := core.DocumentMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &d, nil
}

// MarshalQuery serializes a Query to bytes.
func MarshalQuery(q *core.Query) []byte {
	buf := make([]byte, core.QueryMUS.Size(*q))
	core.QueryMUS.Marshal(*q, buf)
	return buf
}

// UnmarshalQuery deserializes a Query from bytes.
func UnmarshalQuery(data []byte) (*core.Query, error) {
	q, _, err := core.QueryMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &q, nil
}
