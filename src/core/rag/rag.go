package rag

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnsupportedFormat     = errors.New("unsupported document format")
	ErrExtractionFailed      = errors.New("text extraction failed")
	ErrEmbeddingFailed       = errors.New("embedding generation failed")
	ErrStoreUnavailable      = errors.New("vector store unavailable")
	ErrDocumentNotFound      = errors.New("document not found")
	ErrKnowledgeBaseNotFound = errors.New("knowledge base not found")
	ErrInvalidChunkConfig    = errors.New("chunk overlap must be smaller than chunk size")
	ErrInvalidStatus         = errors.New("invalid document status transition")
)

// DuplicateKind distinguishes a re-upload of the same file from the same
// bytes arriving under a different name.
type DuplicateKind string

const (
	ExactDuplicate   DuplicateKind = "exact_duplicate"
	ContentDuplicate DuplicateKind = "content_duplicate"
)

// DuplicateError is returned when an upload's content hash collides with an
// existing document in the same (owner, knowledge base) scope and the caller
// did not force the upload. It carries enough information for the caller to
// decide whether to retry with force.
type DuplicateError struct {
	Kind             DuplicateKind
	ExistingID       string
	ExistingFilename string
}

func (e *DuplicateError) Error() string {
	if e.Kind == ExactDuplicate {
		return fmt.Sprintf("file %q has already been uploaded (document %s)", e.ExistingFilename, e.ExistingID)
	}
	return fmt.Sprintf("file content already exists as %q (document %s)", e.ExistingFilename, e.ExistingID)
}

// DocumentStatus tracks a document through the ingestion pipeline.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusProcessed  DocumentStatus = "processed"
	StatusError      DocumentStatus = "error"
)

// Document is the user-facing unit of identity for an uploaded artifact,
// independent of how many chunks it expanded into.
type Document struct {
	ID              string         `json:"id"`
	OwnerID         string         `json:"ownerId"`
	KnowledgeBaseID string         `json:"knowledgeBaseId"`
	Filename        string         `json:"filename"`
	ContentType     string         `json:"contentType"`
	ByteSize        int64          `json:"byteSize"`
	ContentHash     string         `json:"contentHash"`
	Status          DocumentStatus `json:"status"`
	ChunkCount      int            `json:"chunkCount"`
	FailReason      string         `json:"failReason,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// Chunk is a contiguous passage of a document's normalized text, the unit of
// embedding and retrieval. Offsets are rune positions into the normalized
// text.
type Chunk struct {
	DocumentID string    `json:"documentId"`
	Index      int       `json:"index"`
	Text       string    `json:"text"`
	CharStart  int       `json:"charStart"`
	CharEnd    int       `json:"charEnd"`
	Embedding  []float32 `json:"-"`
}

// ChunkID returns the stable identifier used for idempotent vector upserts.
func (c Chunk) ChunkID() string {
	return fmt.Sprintf("%s_chunk_%d", c.DocumentID, c.Index)
}

// KnowledgeBase is the isolation boundary for search: queries against one
// knowledge base never return chunks belonging to another.
type KnowledgeBase struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Source attributes part of an answer back to one document.
type Source struct {
	DocumentID     string  `json:"documentId"`
	Filename       string  `json:"filename"`
	Excerpt        string  `json:"excerpt"`
	RelevanceScore float64 `json:"relevanceScore"`
}

// RetrievalResult is ephemeral, produced per query and never persisted.
type RetrievalResult struct {
	Context string        `json:"context"`
	Chunks  []ScoredChunk `json:"chunks"`
	Sources []Source      `json:"sources"`
}

// ScoredChunk is one vector store match that survived context budgeting.
type ScoredChunk struct {
	DocumentID string  `json:"documentId"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunkIndex"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	CharStart  int     `json:"charStart"`
	CharEnd    int     `json:"charEnd"`
}

// Answer is the generation result returned to the query boundary.
type Answer struct {
	Text      string   `json:"text"`
	Sources   []Source `json:"sources"`
	SessionID string   `json:"sessionId"`
	TurnID    string   `json:"turnId"`
	Generated bool     `json:"generated"`
}

// UploadRequest crosses the upload boundary; authn/z happened upstream.
type UploadRequest struct {
	OwnerID         string
	KnowledgeBaseID string
	Filename        string
	ContentType     string
	Content         []byte
	Force           bool
}

// IngestService turns uploaded bytes into searchable chunks.
type IngestService interface {
	Upload(ctx context.Context, req UploadRequest) (*Document, error)
	Process(ctx context.Context, documentID string) error
	Delete(ctx context.Context, ownerID, documentID string) error
}

// RetrievalService assembles a bounded context for a query.
type RetrievalService interface {
	Retrieve(ctx context.Context, ownerID, knowledgeBaseID, query string) (*RetrievalResult, error)
}

// GenerationService answers a query from an assembled context.
type GenerationService interface {
	Answer(ctx context.Context, ownerID, knowledgeBaseID, sessionID, query string) (*Answer, error)
	History(ctx context.Context, sessionID string) ([]Turn, error)
	SubmitFeedback(ctx context.Context, fb Feedback) error
}

// KnowledgeBaseService manages the search partitions themselves.
type KnowledgeBaseService interface {
	Create(ctx context.Context, ownerID, name, description string) (*KnowledgeBase, error)
	List(ctx context.Context, ownerID string) ([]KnowledgeBase, error)
	Delete(ctx context.Context, ownerID, id string) error
	Stats(ctx context.Context, ownerID, id string) (*KnowledgeBaseStats, error)
}

// KnowledgeBaseStats summarizes one knowledge base.
type KnowledgeBaseStats struct {
	KnowledgeBaseID string `json:"knowledgeBaseId"`
	DocumentCount   int64  `json:"documentCount"`
	ChunkCount      int64  `json:"chunkCount"`
}
