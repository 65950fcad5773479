package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"docmind/internal/ai"
	"docmind/internal/extract"
	"docmind/internal/platform/sqlite"
	"docmind/internal/rag"
	"docmind/internal/repository"
)

type testStores struct {
	users    *repository.UserRepository
	docs     *repository.DocumentRepository
	chunks   *repository.ChunkRepository
	sessions *repository.ChatSessionRepository
	messages *repository.ChatMessageRepository
}

func newTestStores(t *testing.T) testStores {
	t.Helper()
	db, err := sqlite.New(context.Background(), sqlite.MemoryPath)
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})
	return testStores{
		users:    repository.NewUserRepository(db),
		docs:     repository.NewDocumentRepository(db),
		chunks:   repository.NewChunkRepository(db),
		sessions: repository.NewChatSessionRepository(db),
		messages: repository.NewChatMessageRepository(db),
	}
}

// keywordEmbedder maps text onto a small fixed vocabulary so similarity is
// predictable in tests.
type keywordEmbedder struct {
	mu     sync.Mutex
	vocab  []string
	calls  int
	failAt int // 1-based call number that fails; 0 never
}

func newKeywordEmbedder(vocab ...string) *keywordEmbedder {
	return &keywordEmbedder{vocab: vocab}
}

func (e *keywordEmbedder) Model() string { return "keyword-test" }

func (e *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	call := e.calls
	e.mu.Unlock()
	if e.failAt > 0 && call == e.failAt {
		return nil, errors.Join(rag.ErrEmbedding, errors.New("quota exceeded"))
	}

	lower := strings.ToLower(text)
	vec := make([]float32, len(e.vocab)+1)
	vec[len(e.vocab)] = 0.01
	for i, w := range e.vocab {
		vec[i] = float32(strings.Count(lower, w))
	}
	return vec, nil
}

func (e *keywordEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type fakeGenerator struct {
	reply   string
	err     error
	calls   int
	system  string
	history []ai.Turn
	message string
}

func (g *fakeGenerator) Generate(_ context.Context, system string, history []ai.Turn, message string) (string, error) {
	g.calls++
	g.system, g.history, g.message = system, history, message
	return g.reply, g.err
}

func textExtractor(text string) extract.Extractor {
	return extract.ExtractorFunc(func(context.Context, extract.File) (string, error) {
		return text, nil
	})
}

func failingExtractor(err error) extract.Extractor {
	return extract.ExtractorFunc(func(context.Context, extract.File) (string, error) {
		return "", err
	})
}

type progressLog struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (p *progressLog) record(ev ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *progressLog) stages() []ProgressStage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ProgressStage, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Stage)
	}
	return out
}
