package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"docmind/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

// List returns documents newest first without their extracted content.
func (r *DocumentRepository) List() ([]model.Document, error) {
	var list []model.Document
	if err := r.db.Omit("content").Order("uploaded_at DESC").Order("id DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return list, nil
}

func (r *DocumentRepository) GetByID(id uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

// NamesByIDs maps document ids to names. Unknown ids are absent from the result.
func (r *DocumentRepository) NamesByIDs(ids []uint) (map[uint]string, error) {
	names := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var rows []model.Document
	if err := r.db.Select("id", "name").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list document names failed: %w", err)
	}
	for _, d := range rows {
		names[d.ID] = d.Name
	}
	return names, nil
}

// UpdateFields applies a partial update. Zero values in fields are written.
func (r *DocumentRepository) UpdateFields(id uint, fields map[string]interface{}) error {
	if err := r.db.Model(&model.Document{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return fmt.Errorf("update document failed: %w", err)
	}
	return nil
}

// DeleteCascade removes the document and every chunk that references it in
// one transaction. Deleting a missing id is not an error.
func (r *DocumentRepository) DeleteCascade(id uint) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&model.Chunk{}).Error; err != nil {
			return fmt.Errorf("delete chunks by document failed: %w", err)
		}
		if err := tx.Delete(&model.Document{}, id).Error; err != nil {
			return fmt.Errorf("delete document failed: %w", err)
		}
		return nil
	})
	return err
}
