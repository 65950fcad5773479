package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docmind/internal/ai"
	"docmind/internal/cache"
)

type scriptedAnswerer struct {
	history []ai.Turn
	calls   int
}

func (a *scriptedAnswerer) Answer(_ context.Context, query string, history []ai.Turn) (*Answer, error) {
	a.calls++
	a.history = history
	return &Answer{Text: "answer to " + query, Sources: []string{"doc.pdf"}}, nil
}

func newTestChat(t *testing.T, withCache bool) (*ChatService, *scriptedAnswerer) {
	stores := newTestStores(t)
	answerer := &scriptedAnswerer{}
	var hc HistoryCache
	if withCache {
		mr := miniredis.RunT(t)
		client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		hc = cache.NewHistoryCache(client, time.Minute, 5*time.Second)
	}
	return NewChatService(stores.sessions, stores.messages, hc, answerer, 5, nil), answerer
}

func TestChat_AskStoresTurnsWithSources(t *testing.T) {
	for _, withCache := range []bool{false, true} {
		t.Run(fmt.Sprintf("cache=%v", withCache), func(t *testing.T) {
			svc, answerer := newTestChat(t, withCache)
			ctx := context.Background()

			session, err := svc.CreateSession(CreateSessionInput{UserID: 1})
			require.NoError(t, err)
			assert.Equal(t, "New Chat", session.Title)

			for i := 0; i < 4; i++ {
				res, err := svc.Ask(ctx, AskInput{UserID: 1, SessionID: session.ID, Content: fmt.Sprintf("q%d", i)})
				require.NoError(t, err)
				require.Len(t, res.Messages, 2)
				assert.Equal(t, []string{"doc.pdf"}, res.Messages[1].SourceNames())
			}

			// the fourth ask saw the last five of the six stored turns
			require.Len(t, answerer.history, 5)
			assert.Equal(t, "answer to q0", answerer.history[0].Content)
			assert.Equal(t, "model", answerer.history[0].Role)
			assert.Equal(t, "answer to q2", answerer.history[4].Content)

			history, err := svc.GetHistory(ctx, 1, session.ID, 0)
			require.NoError(t, err)
			require.Len(t, history, 8)
			assert.Equal(t, "q0", history[0].Content)

			again, err := svc.GetHistory(ctx, 1, session.ID, 2)
			require.NoError(t, err)
			require.Len(t, again, 2)
			assert.Equal(t, []string{"doc.pdf"}, again[1].SourceNames())
		})
	}
}

func TestChat_SessionsAreScopedToOwner(t *testing.T) {
	svc, answerer := newTestChat(t, false)
	ctx := context.Background()

	session, err := svc.CreateSession(CreateSessionInput{UserID: 1, Title: "mine"})
	require.NoError(t, err)

	_, err = svc.Ask(ctx, AskInput{UserID: 2, SessionID: session.ID, Content: "hi"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Zero(t, answerer.calls)

	assert.ErrorIs(t, svc.DeleteSession(ctx, 2, session.ID), ErrSessionNotFound)
	require.NoError(t, svc.DeleteSession(ctx, 1, session.ID))

	list, err := svc.ListSessions(1)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestChat_AskValidation(t *testing.T) {
	svc, _ := newTestChat(t, false)
	_, err := svc.Ask(context.Background(), AskInput{UserID: 1, SessionID: 1, Content: "  "})
	assert.ErrorIs(t, err, ErrMessageEmpty)
	_, err = svc.Ask(context.Background(), AskInput{UserID: 0, SessionID: 1, Content: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
