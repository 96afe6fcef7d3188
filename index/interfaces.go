package index

import "context"

// Match is a page hit from a similarity search.
type Match struct {
	PageID     string
	DocumentID string
	Score      float32
}

// VectorIndex stores embeddings and answers restricted similarity searches.
// Implementations must be thread-safe for concurrent use. Writes are
// idempotent: storing the same ID again overwrites the previous vector.
type VectorIndex interface {
	// PutPageVector stores (or overwrites) the embedding for a page.
	PutPageVector(ctx context.Context, documentID, pageID string, vector []float32) error

	// PutQueryVector stores (or overwrites) the embedding for a query.
	PutQueryVector(ctx context.Context, queryID string, vector []float32) error

	// GetQueryVector retrieves a previously stored query embedding.
	GetQueryVector(ctx context.Context, queryID string) ([]float32, error)

	// Search returns up to limit page matches by cosine similarity,
	// best first, considering only pages of the allowed documents.
	// An empty allow list yields no matches.
	Search(ctx context.Context, vector []float32, allowedDocumentIDs []string, limit int) ([]Match, error)

	// Close releases the index.
	Close() error
}
