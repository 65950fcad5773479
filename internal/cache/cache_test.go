package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docmind/internal/model"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redisv9.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestHistoryCache_RoundTripKeepsSources(t *testing.T) {
	mr, client := newTestRedis(t)
	c := NewHistoryCache(client, time.Minute, time.Second)
	ctx := context.Background()

	_, ok, err := c.GetHistory(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	answer := model.ChatMessage{ID: 2, SessionID: 1, Role: model.ChatRoleModel, Content: "42"}
	answer.SetSourceNames([]string{"guide.pdf"})
	msgs := []model.ChatMessage{
		{ID: 1, SessionID: 1, Role: model.ChatRoleUser, Content: "q"},
		answer,
	}
	require.NoError(t, c.SetHistory(ctx, 1, msgs))

	got, ok, err := c.GetHistory(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"guide.pdf"}, got[1].SourceNames())

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.GetHistory(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHistoryCache_DirtyMarker(t *testing.T) {
	mr, client := newTestRedis(t)
	c := NewHistoryCache(client, time.Minute, time.Second)
	ctx := context.Background()

	require.NoError(t, c.MarkDirty(ctx, 9))
	dirty, err := c.IsDirty(ctx, 9)
	require.NoError(t, err)
	assert.True(t, dirty)

	mr.FastForward(2 * time.Second)
	dirty, err = c.IsDirty(ctx, 9)
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestProgressStore(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewProgressStore(client, time.Minute)
	ctx := context.Background()

	p, err := s.Get(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, s.Set(ctx, Progress{DocumentID: 3, Status: "vectorizing", Current: 2, Total: 5}))
	p, err = s.Get(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "vectorizing", p.Status)
	assert.Equal(t, 2, p.Current)
	assert.False(t, p.UpdatedAt.IsZero())

	mr.FastForward(2 * time.Minute)
	p, err = s.Get(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, p)
}
