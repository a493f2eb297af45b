package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"nuvaru/src/log"
)

type knowledgeBaseService struct {
	repo     KnowledgeBaseRepository
	registry DocumentRegistry
	vectors  VectorStore
	objects  ObjectStore
}

func NewKnowledgeBaseService(repo KnowledgeBaseRepository, registry DocumentRegistry, vectors VectorStore, objects ObjectStore) KnowledgeBaseService {
	return &knowledgeBaseService{
		repo:     repo,
		registry: registry,
		vectors:  vectors,
		objects:  objects,
	}
}

func (s *knowledgeBaseService) Create(ctx context.Context, ownerID, name, description string) (*KnowledgeBase, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("knowledge base name must not be empty")
	}
	kb := &KnowledgeBase{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, kb); err != nil {
		return nil, err
	}
	if err := s.vectors.EnsureCollection(ctx, kb.ID); err != nil {
		log.Error(err, "failed to pre-create vector collection", "knowledgeBaseId", kb.ID)
	}
	log.Info("knowledge base created", "knowledgeBaseId", kb.ID, "name", name, "ownerId", ownerID)
	return kb, nil
}

func (s *knowledgeBaseService) List(ctx context.Context, ownerID string) ([]KnowledgeBase, error) {
	return s.repo.List(ctx, ownerID)
}

// Delete removes the knowledge base, all of its documents, their vectors,
// and the stored uploads.
func (s *knowledgeBaseService) Delete(ctx context.Context, ownerID, knowledgeBaseID string) error {
	kb, err := s.repo.Get(ctx, knowledgeBaseID)
	if err != nil {
		return err
	}
	if kb.OwnerID != ownerID {
		return ErrKnowledgeBaseNotFound
	}

	const pageSize = 200
	for {
		docs, _, err := s.registry.List(ctx, ownerID, knowledgeBaseID, 0, pageSize)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			break
		}
		for _, doc := range docs {
			if err := s.registry.Delete(ctx, doc.ID); err != nil {
				return err
			}
			if err := s.objects.Remove(ctx, ObjectName(doc.ID, doc.Filename)); err != nil {
				log.Error(err, "failed to remove stored upload", "documentId", doc.ID)
			}
		}
		if len(docs) < pageSize {
			break
		}
	}

	if err := s.vectors.DeleteCollection(ctx, knowledgeBaseID); err != nil {
		log.Error(err, "failed to delete vector collection", "knowledgeBaseId", knowledgeBaseID)
	}

	if err := s.repo.Delete(ctx, knowledgeBaseID); err != nil {
		return err
	}
	log.Info("knowledge base deleted", "knowledgeBaseId", knowledgeBaseID, "ownerId", ownerID)
	return nil
}

func (s *knowledgeBaseService) Stats(ctx context.Context, ownerID, knowledgeBaseID string) (*KnowledgeBaseStats, error) {
	kb, err := s.repo.Get(ctx, knowledgeBaseID)
	if err != nil {
		return nil, err
	}
	if kb.OwnerID != ownerID {
		return nil, ErrKnowledgeBaseNotFound
	}
	docs, chunks, err := s.registry.CountByKnowledgeBase(ctx, knowledgeBaseID)
	if err != nil {
		return nil, err
	}
	return &KnowledgeBaseStats{
		KnowledgeBaseID: knowledgeBaseID,
		DocumentCount:   docs,
		ChunkCount:      chunks,
	}, nil
}

var _ KnowledgeBaseService = (*knowledgeBaseService)(nil)
