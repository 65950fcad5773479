package repository

import (
	"fmt"

	"gorm.io/gorm"

	"docmind/internal/model"
)

type ChatMessageRepository struct {
	db *gorm.DB
}

func NewChatMessageRepository(db *gorm.DB) *ChatMessageRepository {
	return &ChatMessageRepository{db: db}
}

func (r *ChatMessageRepository) Create(message *model.ChatMessage) error {
	if err := r.db.Create(message).Error; err != nil {
		return fmt.Errorf("create chat message failed: %w", err)
	}
	return nil
}

func (r *ChatMessageRepository) ListBySessionID(sessionID uint, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	var messages []model.ChatMessage
	if err := r.db.Where("session_id = ?", sessionID).Order("id ASC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list chat messages failed: %w", err)
	}
	return messages, nil
}

// ListRecent returns the last n messages of a session, oldest first.
func (r *ChatMessageRepository) ListRecent(sessionID uint, n int) ([]model.ChatMessage, error) {
	if n <= 0 {
		return nil, nil
	}
	var messages []model.ChatMessage
	if err := r.db.Where("session_id = ?", sessionID).Order("id DESC").Limit(n).Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list recent chat messages failed: %w", err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
