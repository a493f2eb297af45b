package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"nuvaru/src/log"
)

// DefaultProcessTimeout bounds a single document's ingestion; a run that
// exceeds it marks the document error instead of leaving it processing
// forever.
const DefaultProcessTimeout = 2 * time.Minute

// Enqueuer hands a registered document off for asynchronous processing.
// When nil, the ingest service processes uploads inline.
type Enqueuer interface {
	EnqueueIngest(ctx context.Context, documentID string) error
}

type ingestService struct {
	registry       DocumentRegistry
	kbRepo         KnowledgeBaseRepository
	extractor      Extractor
	chunker        *Chunker
	embedder       EmbeddingProvider
	vectors        VectorStore
	objects        ObjectStore
	enqueuer       Enqueuer
	processTimeout time.Duration
}

// IngestOption tweaks ingestService construction.
type IngestOption func(*ingestService)

// WithEnqueuer routes processing through a job queue instead of inline.
func WithEnqueuer(e Enqueuer) IngestOption {
	return func(s *ingestService) { s.enqueuer = e }
}

// WithProcessTimeout overrides the per-document processing deadline.
func WithProcessTimeout(d time.Duration) IngestOption {
	return func(s *ingestService) { s.processTimeout = d }
}

func NewIngestService(
	registry DocumentRegistry,
	kbRepo KnowledgeBaseRepository,
	extractor Extractor,
	chunker *Chunker,
	embedder EmbeddingProvider,
	vectors VectorStore,
	objects ObjectStore,
	opts ...IngestOption,
) IngestService {
	s := &ingestService{
		registry:       registry,
		kbRepo:         kbRepo,
		extractor:      extractor,
		chunker:        chunker,
		embedder:       embedder,
		vectors:        vectors,
		objects:        objects,
		processTimeout: DefaultProcessTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ContentHash is the content-addressed fingerprint used for duplicate
// detection: a SHA-256 over the raw upload bytes.
func ContentHash(content []byte) string {
	digest := sha256.Sum256(content)
	return hex.EncodeToString(digest[:])
}

// ObjectName is the raw-storage key for a document's original bytes.
func ObjectName(documentID, filename string) string {
	return documentID + "_" + sanitizeFilename(filename)
}

func sanitizeFilename(filename string) string {
	base := filepath.Base(filename)
	var sb strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '.', r == '-', r == '_', r == ' ':
			sb.WriteRune(r)
		}
	}
	return strings.TrimSpace(sb.String())
}

// Upload registers the document, stores the raw bytes, and either enqueues
// processing or runs it inline. Duplicate content in the same scope is
// rejected with *DuplicateError unless the caller forces the upload.
func (s *ingestService) Upload(ctx context.Context, req UploadRequest) (*Document, error) {
	kb, err := s.kbRepo.Get(ctx, req.KnowledgeBaseID)
	if err != nil {
		return nil, err
	}
	if kb.OwnerID != req.OwnerID {
		return nil, ErrKnowledgeBaseNotFound
	}

	doc := &Document{
		ID:              uuid.New().String(),
		OwnerID:         req.OwnerID,
		KnowledgeBaseID: req.KnowledgeBaseID,
		Filename:        req.Filename,
		ContentType:     req.ContentType,
		ByteSize:        int64(len(req.Content)),
		ContentHash:     ContentHash(req.Content),
		Status:          StatusPending,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.registry.Register(ctx, doc, req.Force); err != nil {
		return nil, err
	}

	if err := s.objects.Put(ctx, ObjectName(doc.ID, doc.Filename), req.Content, req.ContentType); err != nil {
		// The registry row exists but the bytes don't; undo the registration
		// so the caller can retry cleanly.
		if delErr := s.registry.Delete(ctx, doc.ID); delErr != nil {
			log.Error(delErr, "failed to roll back registration after storage failure", "documentId", doc.ID)
		}
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	log.Info("document registered",
		"documentId", doc.ID,
		"filename", doc.Filename,
		"knowledgeBaseId", doc.KnowledgeBaseID,
		"bytes", doc.ByteSize)

	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueIngest(ctx, doc.ID); err != nil {
			return nil, fmt.Errorf("failed to enqueue ingestion: %w", err)
		}
		return doc, nil
	}

	if err := s.Process(ctx, doc.ID); err != nil {
		// The failure reason is already retained on the document record;
		// surface the updated record, not an error, so the caller sees
		// status=error the same way the async path would.
		log.Error(err, "inline processing failed", "documentId", doc.ID)
	}
	return s.registry.Get(ctx, doc.ID)
}

// Process runs extract -> chunk -> embed -> upsert for one document, then
// flips the status. Every chunk upsert completes before the document is
// marked processed, so a query never observes a processed document with
// missing chunks.
func (s *ingestService) Process(ctx context.Context, documentID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.processTimeout)
	defer cancel()

	doc, err := s.registry.Get(ctx, documentID)
	if err != nil {
		return err
	}

	if err := s.registry.MarkProcessing(ctx, doc.ID); err != nil {
		return err
	}

	if err := s.process(ctx, doc); err != nil {
		if markErr := s.registry.MarkError(ctx, doc.ID, err.Error()); markErr != nil {
			log.Error(markErr, "failed to record processing error", "documentId", doc.ID)
		}
		return err
	}
	return nil
}

func (s *ingestService) process(ctx context.Context, doc *Document) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("processing deadline exceeded: %w", err)
	}

	content, err := s.objects.Get(ctx, ObjectName(doc.ID, doc.Filename))
	if err != nil {
		return fmt.Errorf("failed to load stored upload: %w", err)
	}

	extraction, err := s.extractor.Extract(content, doc.ContentType, doc.Filename)
	if err != nil {
		return err
	}

	text := extraction.Text
	if strings.TrimSpace(text) == "" {
		text = PlaceholderText(doc.Filename)
	}

	chunks := s.chunker.Split(doc.ID, text)

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	if err := s.vectors.EnsureCollection(ctx, doc.KnowledgeBaseID); err != nil {
		return err
	}

	entries := make([]ChunkEntry, len(chunks))
	for i, c := range chunks {
		entries[i] = ChunkEntry{
			ChunkID: c.ChunkID(),
			Vector:  vectors[i],
			Text:    c.Text,
			Metadata: ChunkMetadata{
				OwnerID:         doc.OwnerID,
				KnowledgeBaseID: doc.KnowledgeBaseID,
				DocumentID:      doc.ID,
				Filename:        doc.Filename,
				ChunkIndex:      c.Index,
				CharStart:       c.CharStart,
				CharEnd:         c.CharEnd,
			},
		}
	}

	if err := s.vectors.Upsert(ctx, doc.KnowledgeBaseID, entries); err != nil {
		return err
	}

	if err := s.registry.MarkProcessed(ctx, doc.ID, len(chunks)); err != nil {
		return err
	}

	log.Info("document processed",
		"documentId", doc.ID,
		"chunks", len(chunks),
		"textLength", len(text))
	return nil
}

// Delete removes the registry record, the document's vectors, and the stored
// bytes. The registry record goes first: once it succeeds the document is
// gone from listings, and a failed vector delete is retried and surfaced as a
// reconcilable inconsistency rather than blocking the user.
func (s *ingestService) Delete(ctx context.Context, ownerID, documentID string) error {
	doc, err := s.registry.Get(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.OwnerID != ownerID {
		return ErrDocumentNotFound
	}

	if err := s.registry.Delete(ctx, documentID); err != nil {
		return err
	}

	if err := s.vectors.DeleteDocument(ctx, doc.KnowledgeBaseID, documentID); err != nil {
		// Retry once; if it still fails the vectors are orphaned but
		// unreachable through listings, and the reconcile pass in reindex
		// cleans them up.
		if retryErr := s.vectors.DeleteDocument(ctx, doc.KnowledgeBaseID, documentID); retryErr != nil {
			log.Error(retryErr, "vector deletion pending reconciliation",
				"documentId", documentID,
				"knowledgeBaseId", doc.KnowledgeBaseID)
		}
	}

	if err := s.objects.Remove(ctx, ObjectName(doc.ID, doc.Filename)); err != nil {
		log.Error(err, "failed to remove stored upload", "documentId", documentID)
	}

	log.Info("document deleted", "documentId", documentID, "ownerId", ownerID)
	return nil
}

var _ IngestService = (*ingestService)(nil)

// IsDuplicate reports whether err is a duplicate-content rejection and
// returns the details when it is.
func IsDuplicate(err error) (*DuplicateError, bool) {
	var dup *DuplicateError
	if errors.As(err, &dup) {
		return dup, true
	}
	return nil, false
}
