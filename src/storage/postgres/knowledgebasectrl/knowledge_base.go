package knowledgebasectrl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"nuvaru/src/core/rag"
)

type KnowledgeBase struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	OwnerID     string    `gorm:"not null;index" json:"owner_id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (KnowledgeBase) TableName() string {
	return "knowledge_bases"
}

// KnowledgeBaseService implements rag.KnowledgeBaseRepository on postgres.
type KnowledgeBaseService struct {
	db *gorm.DB
}

func NewKnowledgeBaseService(db *gorm.DB) (*KnowledgeBaseService, error) {
	if err := db.AutoMigrate(&KnowledgeBase{}); err != nil {
		return nil, fmt.Errorf("failed to migrate knowledge_bases table: %v", err)
	}
	return &KnowledgeBaseService{db: db}, nil
}

func (s *KnowledgeBaseService) Create(ctx context.Context, kb *rag.KnowledgeBase) error {
	row := &KnowledgeBase{
		ID:          kb.ID,
		OwnerID:     kb.OwnerID,
		Name:        kb.Name,
		Description: kb.Description,
		CreatedAt:   kb.CreatedAt,
	}
	if result := s.db.WithContext(ctx).Create(row); result.Error != nil {
		return fmt.Errorf("failed to create knowledge base: %v", result.Error)
	}
	return nil
}

func (s *KnowledgeBaseService) Get(ctx context.Context, id string) (*rag.KnowledgeBase, error) {
	var row KnowledgeBase
	result := s.db.WithContext(ctx).First(&row, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, rag.ErrKnowledgeBaseNotFound
		}
		return nil, fmt.Errorf("failed to get knowledge base: %v", result.Error)
	}
	return fromRow(&row), nil
}

func (s *KnowledgeBaseService) List(ctx context.Context, ownerID string) ([]rag.KnowledgeBase, error) {
	var rows []KnowledgeBase
	result := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list knowledge bases: %v", result.Error)
	}
	kbs := make([]rag.KnowledgeBase, len(rows))
	for i := range rows {
		kbs[i] = *fromRow(&rows[i])
	}
	return kbs, nil
}

func (s *KnowledgeBaseService) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&KnowledgeBase{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete knowledge base: %v", result.Error)
	}
	if result.RowsAffected == 0 {
		return rag.ErrKnowledgeBaseNotFound
	}
	return nil
}

func fromRow(row *KnowledgeBase) *rag.KnowledgeBase {
	return &rag.KnowledgeBase{
		ID:          row.ID,
		OwnerID:     row.OwnerID,
		Name:        row.Name,
		Description: row.Description,
		CreatedAt:   row.CreatedAt,
	}
}

var _ rag.KnowledgeBaseRepository = (*KnowledgeBaseService)(nil)
