package model

import "time"

// IngestJob carries an uploaded file to the ingestion worker. The document
// row already exists with Processed=false when the job is published.
type IngestJob struct {
	JobID      string    `json:"job_id"`
	DocumentID uint      `json:"document_id"`
	Name       string    `json:"name"`
	MimeType   string    `json:"mime_type"`
	Data       []byte    `json:"data"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
