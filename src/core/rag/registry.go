package rag

import (
	"context"
)

// DocumentRegistry tracks one durable record per uploaded document. It is the
// unit of user-facing identity and survives process restarts.
type DocumentRegistry interface {
	// Register creates a pending document. When force is false and another
	// document in the same (owner, knowledge base) scope has the same content
	// hash, it fails with *DuplicateError.
	Register(ctx context.Context, doc *Document, force bool) error
	Get(ctx context.Context, id string) (*Document, error)
	// List returns one page of the scope's documents plus the total count.
	List(ctx context.Context, ownerID, knowledgeBaseID string, offset, limit int) ([]Document, int64, error)
	// MarkProcessing transitions pending -> processing.
	MarkProcessing(ctx context.Context, id string) error
	// MarkProcessed transitions processing -> processed and records the chunk
	// count. Callers must have completed every chunk upsert first.
	MarkProcessed(ctx context.Context, id string, chunkCount int) error
	// MarkError transitions processing -> error with a retained reason.
	MarkError(ctx context.Context, id string, reason string) error
	// Reset returns a document to pending from any status so it can be
	// reprocessed.
	Reset(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	// CountByKnowledgeBase returns document and chunk totals for stats.
	CountByKnowledgeBase(ctx context.Context, knowledgeBaseID string) (docs int64, chunks int64, err error)
}

// KnowledgeBaseRepository persists the search partitions.
type KnowledgeBaseRepository interface {
	Create(ctx context.Context, kb *KnowledgeBase) error
	Get(ctx context.Context, id string) (*KnowledgeBase, error)
	List(ctx context.Context, ownerID string) ([]KnowledgeBase, error)
	Delete(ctx context.Context, id string) error
}
