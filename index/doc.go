// Package index defines the vector index used for semantic retrieval.
// Page vectors are stored per document so retrieval can be restricted to
// the documents a query is allowed to see.
package index
