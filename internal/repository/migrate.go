package repository

import (
	"fmt"

	"gorm.io/gorm"

	"docmind/internal/model"
)

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.Document{},
		&model.Chunk{},
		&model.ChatSession{},
		&model.ChatMessage{},
	); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}
	return nil
}
