package repository

import (
	"fmt"

	"gorm.io/gorm"

	"docmind/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) Create(chunk *model.Chunk) error {
	if err := r.db.Create(chunk).Error; err != nil {
		return fmt.Errorf("create chunk failed: %w", err)
	}
	return nil
}

// ListAll returns every stored chunk in insertion order.
func (r *ChunkRepository) ListAll() ([]model.Chunk, error) {
	var chunks []model.Chunk
	if err := r.db.Order("id ASC").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks failed: %w", err)
	}
	return chunks, nil
}

func (r *ChunkRepository) ListByDocumentID(documentID uint) ([]model.Chunk, error) {
	var chunks []model.Chunk
	if err := r.db.Where("document_id = ?", documentID).Order("id ASC").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks by document failed: %w", err)
	}
	return chunks, nil
}

func (r *ChunkRepository) CountByDocumentID(documentID uint) (int64, error) {
	var n int64
	if err := r.db.Model(&model.Chunk{}).Where("document_id = ?", documentID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count chunks by document failed: %w", err)
	}
	return n, nil
}
