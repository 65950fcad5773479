package model

import "time"

// Ingestion states of a document. StatusFailed is reachable from any step.
const (
	StatusUploaded   = "uploaded"
	StatusExtracting = "extracting"
	StatusChunking   = "chunking"
	StatusEmbedding  = "embedding"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// Document is an ingested file's metadata and extracted text.
// Processed becomes true only after every chunk has a stored embedding.
type Document struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:256;not null" json:"name"`
	MimeType   string    `gorm:"size:128" json:"mime_type"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `gorm:"index" json:"uploaded_at"`
	Content    *string   `gorm:"type:longtext" json:"content,omitempty"`
	Processed  bool      `gorm:"not null;default:false" json:"processed"`
	Status     string    `gorm:"size:16;not null;default:uploaded" json:"status"`
	ChunkCount int       `gorm:"not null;default:0" json:"chunk_count"`
	LastError  string    `gorm:"type:text" json:"last_error,omitempty"`
}
