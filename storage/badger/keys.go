package badger

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Key prefixes for different data types
const (
	documentRecordPrefix = "docrec"
	documentDatePrefix   = "docdate"
	queryRecordPrefix    = "qryrec"
	blobPrefix           = "blob"
)

// makeDocumentKey generates a key for a document record by ID.
func makeDocumentKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", documentRecordPrefix, id))
}

// makeQueryKey generates a key for a query record by ID.
func makeQueryKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", queryRecordPrefix, id))
}

// makeDocumentDateKey generates a composite key for the created-at index.
// Format: prefix:timestamp:id
func makeDocumentDateKey(createdAt time.Time, id string) []byte {
	prefix := documentDatePrefix + ":"
	buf := make([]byte, len(prefix)+8+len(id))
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(createdAt.UnixMicro()))
	offset += 8
	copy(buf[offset:], id)
	return buf
}

// documentDateKeyUpTo generates the exclusive upper bound for scanning the
// created-at index up to and including cutoff.
func documentDateKeyUpTo(cutoff time.Time) []byte {
	prefix := documentDatePrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(cutoff.UnixMicro())+1)
	return buf
}

// documentIDFromDateKey extracts the document ID suffix of a date index key.
func documentIDFromDateKey(key []byte) string {
	prefixLen := len(documentDatePrefix) + 1 + 8
	if len(key) <= prefixLen {
		return ""
	}
	return string(key[prefixLen:])
}

// makeBlobKey generates a key for a stored artifact.
func makeBlobKey(key string) []byte {
	return []byte(fmt.Sprintf("%s:%s", blobPrefix, key))
}
