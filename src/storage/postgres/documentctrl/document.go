package documentctrl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"nuvaru/src/core/rag"
)

type Document struct {
	ID              string    `gorm:"primaryKey" json:"id"`
	OwnerID         string    `gorm:"not null;index:idx_docs_scope" json:"owner_id"`
	KnowledgeBaseID string    `gorm:"not null;index:idx_docs_scope" json:"knowledge_base_id"`
	Filename        string    `gorm:"not null" json:"filename"`
	ContentType     string    `gorm:"not null" json:"content_type"`
	ByteSize        int64     `gorm:"not null" json:"byte_size"`
	ContentHash     string    `gorm:"not null;index" json:"content_hash"`
	Status          string    `gorm:"not null" json:"status"`
	ChunkCount      int       `gorm:"not null;default:0" json:"chunk_count"`
	FailReason      string    `json:"fail_reason"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (Document) TableName() string {
	return "documents"
}

// DocumentService implements rag.DocumentRegistry on postgres.
type DocumentService struct {
	db *gorm.DB
}

func NewDocumentService(db *gorm.DB) (*DocumentService, error) {
	if err := db.AutoMigrate(&Document{}); err != nil {
		return nil, fmt.Errorf("failed to migrate documents table: %v", err)
	}
	return &DocumentService{db: db}, nil
}

func (s *DocumentService) Register(ctx context.Context, doc *rag.Document, force bool) error {
	if !force {
		var existing Document
		result := s.db.WithContext(ctx).
			Where("owner_id = ? AND knowledge_base_id = ? AND content_hash = ?",
				doc.OwnerID, doc.KnowledgeBaseID, doc.ContentHash).
			First(&existing)
		if result.Error == nil {
			kind := rag.ContentDuplicate
			if existing.Filename == doc.Filename {
				kind = rag.ExactDuplicate
			}
			return &rag.DuplicateError{
				Kind:             kind,
				ExistingID:       existing.ID,
				ExistingFilename: existing.Filename,
			}
		}
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check duplicates: %v", result.Error)
		}
	}

	row := toRow(doc)
	if result := s.db.WithContext(ctx).Create(row); result.Error != nil {
		return fmt.Errorf("failed to register document: %v", result.Error)
	}
	return nil
}

func (s *DocumentService) Get(ctx context.Context, id string) (*rag.Document, error) {
	var row Document
	result := s.db.WithContext(ctx).First(&row, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, rag.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %v", result.Error)
	}
	return fromRow(&row), nil
}

func (s *DocumentService) List(ctx context.Context, ownerID, knowledgeBaseID string, offset, limit int) ([]rag.Document, int64, error) {
	scope := s.db.WithContext(ctx).Model(&Document{}).
		Where("owner_id = ? AND knowledge_base_id = ?", ownerID, knowledgeBaseID)

	var total int64
	if result := scope.Count(&total); result.Error != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %v", result.Error)
	}

	var rows []Document
	result := scope.Order("created_at DESC").Offset(offset).Limit(limit).Find(&rows)
	if result.Error != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %v", result.Error)
	}

	docs := make([]rag.Document, len(rows))
	for i := range rows {
		docs[i] = *fromRow(&rows[i])
	}
	return docs, total, nil
}

// transition updates the status only when the current status matches, so
// concurrent workers cannot double-process a document.
func (s *DocumentService) transition(ctx context.Context, id string, from, to rag.DocumentStatus, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = string(to)

	result := s.db.WithContext(ctx).Model(&Document{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update document status: %v", result.Error)
	}
	if result.RowsAffected == 0 {
		var row Document
		if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
			return rag.ErrDocumentNotFound
		}
		return fmt.Errorf("%w: %s -> %s (current %s)", rag.ErrInvalidStatus, from, to, row.Status)
	}
	return nil
}

func (s *DocumentService) MarkProcessing(ctx context.Context, id string) error {
	return s.transition(ctx, id, rag.StatusPending, rag.StatusProcessing, nil)
}

func (s *DocumentService) MarkProcessed(ctx context.Context, id string, chunkCount int) error {
	return s.transition(ctx, id, rag.StatusProcessing, rag.StatusProcessed, map[string]interface{}{
		"chunk_count": chunkCount,
		"fail_reason": "",
	})
}

func (s *DocumentService) MarkError(ctx context.Context, id string, reason string) error {
	return s.transition(ctx, id, rag.StatusProcessing, rag.StatusError, map[string]interface{}{
		"fail_reason": reason,
	})
}

func (s *DocumentService) Reset(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Model(&Document{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      string(rag.StatusPending),
			"fail_reason": "",
		})
	if result.Error != nil {
		return fmt.Errorf("failed to reset document: %v", result.Error)
	}
	if result.RowsAffected == 0 {
		return rag.ErrDocumentNotFound
	}
	return nil
}

func (s *DocumentService) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&Document{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete document: %v", result.Error)
	}
	if result.RowsAffected == 0 {
		return rag.ErrDocumentNotFound
	}
	return nil
}

func (s *DocumentService) CountByKnowledgeBase(ctx context.Context, knowledgeBaseID string) (int64, int64, error) {
	var docs int64
	result := s.db.WithContext(ctx).Model(&Document{}).
		Where("knowledge_base_id = ?", knowledgeBaseID).
		Count(&docs)
	if result.Error != nil {
		return 0, 0, fmt.Errorf("failed to count documents: %v", result.Error)
	}

	var chunks int64
	row := s.db.WithContext(ctx).Model(&Document{}).
		Where("knowledge_base_id = ? AND status = ?", knowledgeBaseID, string(rag.StatusProcessed)).
		Select("COALESCE(SUM(chunk_count), 0)").
		Row()
	if err := row.Scan(&chunks); err != nil {
		return 0, 0, fmt.Errorf("failed to sum chunk counts: %v", err)
	}
	return docs, chunks, nil
}

func toRow(doc *rag.Document) *Document {
	return &Document{
		ID:              doc.ID,
		OwnerID:         doc.OwnerID,
		KnowledgeBaseID: doc.KnowledgeBaseID,
		Filename:        doc.Filename,
		ContentType:     doc.ContentType,
		ByteSize:        doc.ByteSize,
		ContentHash:     doc.ContentHash,
		Status:          string(doc.Status),
		ChunkCount:      doc.ChunkCount,
		FailReason:      doc.FailReason,
		CreatedAt:       doc.CreatedAt,
	}
}

func fromRow(row *Document) *rag.Document {
	return &rag.Document{
		ID:              row.ID,
		OwnerID:         row.OwnerID,
		KnowledgeBaseID: row.KnowledgeBaseID,
		Filename:        row.Filename,
		ContentType:     row.ContentType,
		ByteSize:        row.ByteSize,
		ContentHash:     row.ContentHash,
		Status:          rag.DocumentStatus(row.Status),
		ChunkCount:      row.ChunkCount,
		FailReason:      row.FailReason,
		CreatedAt:       row.CreatedAt,
	}
}

var _ rag.DocumentRegistry = (*DocumentService)(nil)
