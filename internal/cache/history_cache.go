package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"docmind/internal/model"
)

// HistoryCache keeps the recent turns of a chat session in redis. A dirty
// marker is set between a write to the store and the cache refresh so readers
// fall back to the store instead of serving a stale window.
type HistoryCache struct {
	client         *redisv9.Client
	historyTTL     time.Duration
	dirtyMarkerTTL time.Duration
}

func NewHistoryCache(client *redisv9.Client, historyTTL, dirtyMarkerTTL time.Duration) *HistoryCache {
	if historyTTL <= 0 {
		historyTTL = 60 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &HistoryCache{
		client:         client,
		historyTTL:     historyTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

func (c *HistoryCache) GetHistory(ctx context.Context, sessionID uint) ([]model.ChatMessage, bool, error) {
	raw, err := c.client.Get(ctx, c.historyKey(sessionID)).Result()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get history failed: %w", err)
	}

	var entries []cachedMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached history failed: %w", err)
	}
	messages := make([]model.ChatMessage, 0, len(entries))
	for _, e := range entries {
		messages = append(messages, e.toModel())
	}
	return messages, true, nil
}

func (c *HistoryCache) SetHistory(ctx context.Context, sessionID uint, messages []model.ChatMessage) error {
	entries := make([]cachedMessage, 0, len(messages))
	for _, m := range messages {
		entries = append(entries, fromModel(m))
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal history cache failed: %w", err)
	}

	if err := c.client.Set(ctx, c.historyKey(sessionID), payload, c.historyTTL).Err(); err != nil {
		return fmt.Errorf("redis set history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) DeleteHistory(ctx context.Context, sessionID uint) error {
	if err := c.client.Del(ctx, c.historyKey(sessionID), c.dirtyKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) MarkDirty(ctx context.Context, sessionID uint) error {
	if err := c.client.Set(ctx, c.dirtyKey(sessionID), "1", c.dirtyMarkerTTL).Err(); err != nil {
		return fmt.Errorf("redis set dirty marker failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) IsDirty(ctx context.Context, sessionID uint) (bool, error) {
	exists, err := c.client.Exists(ctx, c.dirtyKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}

func (c *HistoryCache) historyKey(sessionID uint) string {
	return fmt.Sprintf("chat:history:%d", sessionID)
}

func (c *HistoryCache) dirtyKey(sessionID uint) string {
	return fmt.Sprintf("chat:history:dirty:%d", sessionID)
}

// cachedMessage keeps Sources in stored form; model.ChatMessage marshals it
// as a list for API responses.
type cachedMessage struct {
	ID        uint      `json:"id"`
	SessionID uint      `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Sources   string    `json:"sources"`
	CreatedAt time.Time `json:"created_at"`
}

func fromModel(m model.ChatMessage) cachedMessage {
	return cachedMessage{
		ID:        m.ID,
		SessionID: m.SessionID,
		Role:      m.Role,
		Content:   m.Content,
		Sources:   m.Sources,
		CreatedAt: m.CreatedAt,
	}
}

func (e cachedMessage) toModel() model.ChatMessage {
	return model.ChatMessage{
		ID:        e.ID,
		SessionID: e.SessionID,
		Role:      e.Role,
		Content:   e.Content,
		Sources:   e.Sources,
		CreatedAt: e.CreatedAt,
	}
}
