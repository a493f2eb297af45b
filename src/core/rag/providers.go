package rag

import (
	"context"
)

// EmbeddingProvider maps text to fixed-dimension vectors. Implementations
// must be deterministic (same text, same vector) and batch-invariant: a batch
// call yields exactly the vectors the same inputs would yield one at a time.
type EmbeddingProvider interface {
	// Embed returns the vector for a single text. Empty input after
	// normalization fails with ErrEmbeddingFailed; a zero vector is never
	// silently returned.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per input, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension returns the fixed vector width.
	Dimension() int
	// Name identifies the provider variant for health and logs.
	Name() string
}

// LLMProvider is the external text-completion capability. It is treated as
// replaceable: callers must tolerate it being nil or failing.
type LLMProvider interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// ChunkEntry is one (vector, text, metadata) tuple written to a collection.
type ChunkEntry struct {
	ChunkID  string
	Vector   []float32
	Text     string
	Metadata ChunkMetadata
}

// ChunkMetadata is duplicated into the vector store for filtering and
// attribution.
type ChunkMetadata struct {
	OwnerID         string
	KnowledgeBaseID string
	DocumentID      string
	Filename        string
	ChunkIndex      int
	CharStart       int
	CharEnd         int
}

// QueryFilter restricts matches by metadata. Zero values mean "no constraint"
// except OwnerID, which callers always set.
type QueryFilter struct {
	OwnerID    string
	DocumentID string
}

// Match is one nearest-neighbor result. Score is cosine similarity,
// descending; ties break toward the earlier-inserted entry.
type Match struct {
	ChunkID  string
	Text     string
	Score    float64
	Metadata ChunkMetadata
}

// VectorStore persists chunk vectors inside named collections, one logical
// collection per knowledge base.
type VectorStore interface {
	// EnsureCollection creates the collection if missing. Idempotent.
	EnsureCollection(ctx context.Context, knowledgeBaseID string) error
	// Upsert writes entries; re-writing a ChunkID replaces the prior entry.
	Upsert(ctx context.Context, knowledgeBaseID string, entries []ChunkEntry) error
	// Query returns up to topK matches ordered by descending score. A query
	// against a collection that does not exist returns an empty result.
	Query(ctx context.Context, knowledgeBaseID string, vector []float32, topK int, filter QueryFilter) ([]Match, error)
	// DeleteDocument removes every chunk belonging to the document. A
	// concurrent query observes either all of the document's chunks or none.
	DeleteDocument(ctx context.Context, knowledgeBaseID, documentID string) error
	// DeleteCollection drops the whole collection.
	DeleteCollection(ctx context.Context, knowledgeBaseID string) error
}

// ObjectStore keeps the raw uploaded bytes so the worker and reindex can
// reprocess documents without a fresh upload.
type ObjectStore interface {
	Put(ctx context.Context, objectName string, content []byte, contentType string) error
	Get(ctx context.Context, objectName string) ([]byte, error)
	Remove(ctx context.Context, objectName string) error
}
