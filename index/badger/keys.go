package badger

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Key prefixes for vector records
const (
	pageVecPrefix  = "vecpage"
	queryVecPrefix = "vecqry"
)

// makePageVectorKey generates a key for a page vector, grouped by document
// so a prefix scan covers one document's pages.
// Format: vecpage:<documentID>:<pageID>
func makePageVectorKey(documentID, pageID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", pageVecPrefix, documentID, pageID))
}

// pageVectorPrefix is the scan prefix for one document's page vectors.
func pageVectorPrefix(documentID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", pageVecPrefix, documentID))
}

// pageIDFromVectorKey extracts the page ID suffix of a page vector key.
func pageIDFromVectorKey(key []byte, documentID string) string {
	prefixLen := len(pageVecPrefix) + 1 + len(documentID) + 1
	if len(key) <= prefixLen {
		return ""
	}
	return string(key[prefixLen:])
}

// makeQueryVectorKey generates a key for a query vector.
func makeQueryVectorKey(queryID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", queryVecPrefix, queryID))
}

// encodeVector packs a float32 slice as little-endian IEEE 754 bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// decodeVector unpacks a vector produced by encodeVector.
func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("vector data length %d is not a multiple of 4", len(data))
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return v, nil
}
