package model

import (
	"encoding/json"
	"time"
)

const (
	ChatRoleUser  = "user"
	ChatRoleModel = "model"
)

type ChatSession struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Title     string    `gorm:"size:128;not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`
}

// ChatMessage is one turn of a client conversation. Sources holds the names
// of the documents that backed a model answer.
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID uint      `gorm:"not null;index" json:"session_id"`
	Role      string    `gorm:"size:16;not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Sources   string    `gorm:"type:text" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func (m *ChatMessage) SourceNames() []string {
	if m.Sources == "" {
		return nil
	}
	var names []string
	_ = json.Unmarshal([]byte(m.Sources), &names)
	return names
}

func (m *ChatMessage) SetSourceNames(names []string) {
	if len(names) == 0 {
		m.Sources = ""
		return
	}
	b, _ := json.Marshal(names)
	m.Sources = string(b)
}

// MarshalJSON exposes Sources as a list instead of its stored form.
func (m ChatMessage) MarshalJSON() ([]byte, error) {
	type alias ChatMessage
	return json.Marshal(struct {
		alias
		Sources []string `json:"sources,omitempty"`
	}{
		alias:   alias(m),
		Sources: m.SourceNames(),
	})
}
