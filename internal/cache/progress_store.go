package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// Progress is the last ingestion event recorded for a document.
type Progress struct {
	DocumentID uint      `json:"document_id"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	Current    int       `json:"current,omitempty"`
	Total      int       `json:"total,omitempty"`
	Done       bool      `json:"done"`
	Failed     bool      `json:"failed"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ProgressStore publishes ingestion progress for documents processed out of
// band, so an upload request can return before the pipeline finishes.
type ProgressStore struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewProgressStore(client *redisv9.Client, ttl time.Duration) *ProgressStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ProgressStore{client: client, ttl: ttl}
}

func (s *ProgressStore) Set(ctx context.Context, p Progress) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal progress failed: %w", err)
	}
	if err := s.client.Set(ctx, s.key(p.DocumentID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set progress failed: %w", err)
	}
	return nil
}

// Get returns nil when no progress is recorded or it has expired.
func (s *ProgressStore) Get(ctx context.Context, documentID uint) (*Progress, error) {
	raw, err := s.client.Get(ctx, s.key(documentID)).Bytes()
	if errors.Is(err, redisv9.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get progress failed: %w", err)
	}
	var p Progress
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("unmarshal progress failed: %w", err)
	}
	return &p, nil
}

func (s *ProgressStore) Delete(ctx context.Context, documentID uint) error {
	if err := s.client.Del(ctx, s.key(documentID)).Err(); err != nil {
		return fmt.Errorf("redis delete progress failed: %w", err)
	}
	return nil
}

func (s *ProgressStore) key(documentID uint) string {
	return fmt.Sprintf("ingest:progress:%d", documentID)
}
