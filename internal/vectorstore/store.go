// Package vectorstore provides embedded vector storage for the specification
// corpus.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors.
var (
	ErrInvalidConfig      = errors.New("invalid vectorstore config")
	ErrEmptyDocuments     = errors.New("no documents provided")
	ErrCollectionNotFound = errors.New("collection not found")
)

// Document is a chunk of specification text with provenance metadata.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// SearchResult is a similarity-search hit.
type SearchResult struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]string
}

// Store indexes specification passages and retrieves the most similar ones
// for a query.
type Store interface {
	// AddDocuments indexes documents, returning the stored IDs.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// Search returns up to k passages most similar to query.
	Search(ctx context.Context, query string, k int) ([]SearchResult, error)

	// Count reports the number of indexed documents.
	Count(ctx context.Context) (int, error)
}
