package model

import (
	"encoding/json"
	"time"
)

// Chunk stores one embeddable text span of a document and its vector.
// Embedding is stored as JSON array of float32 for portability.
type Chunk struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	DocumentID     uint      `gorm:"not null;index" json:"document_id"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	Embedding      string    `gorm:"type:longtext" json:"-"` // JSON array of float32
	EmbeddingModel string    `gorm:"size:128" json:"embedding_model"`
	Dimension      int       `json:"dimension"`
	CreatedAt      time.Time `json:"created_at"`

	vector []float32 `gorm:"-"`
}

// EmbeddingVector returns the parsed embedding slice; empty on parse error.
func (c *Chunk) EmbeddingVector() []float32 {
	if c.vector != nil {
		return c.vector
	}
	if c.Embedding == "" {
		return nil
	}
	var v []float32
	if err := json.Unmarshal([]byte(c.Embedding), &v); err != nil {
		return nil
	}
	c.vector = v
	return v
}

// SetEmbedding stores the embedding as JSON and records its dimension.
func (c *Chunk) SetEmbedding(model string, vec []float32) {
	c.EmbeddingModel = model
	c.Dimension = len(vec)
	c.vector = vec
	if len(vec) == 0 {
		c.Embedding = "[]"
		return
	}
	b, _ := json.Marshal(vec)
	c.Embedding = string(b)
}
