package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"docmind/internal/ai"
	"docmind/internal/metrics"
	"docmind/internal/rag"
	"docmind/internal/repository"
)

const (
	NoInformationAnswer = "I couldn't find any information in the uploaded documents to answer your question."
	ApologyAnswer       = "I encountered an error while trying to answer your question."
	EmptyReplyAnswer    = "I processed the context but couldn't generate a response."

	contextSeparator    = "\n\n---\n\n"
	defaultHistoryTurns = 5
)

// TextGenerator answers a message given a system instruction and prior turns.
type TextGenerator interface {
	Generate(ctx context.Context, systemInstruction string, history []ai.Turn, message string) (string, error)
}

type AnswerOptions struct {
	TopK         int
	HistoryTurns int
	// Language, when set, is appended to the system instruction as the
	// required answer language.
	Language string
}

type Answer struct {
	Text    string       `json:"answer"`
	Sources []string     `json:"sources"`
	Matches []rag.Result `json:"-"`
}

type AnswerService struct {
	docRepo   *repository.DocumentRepository
	chunkRepo *repository.ChunkRepository
	embedder  Embedder
	generator TextGenerator
	opts      AnswerOptions
	metrics   *metrics.Metrics
	log       *zap.SugaredLogger
}

func NewAnswerService(
	docRepo *repository.DocumentRepository,
	chunkRepo *repository.ChunkRepository,
	embedder Embedder,
	generator TextGenerator,
	opts AnswerOptions,
	m *metrics.Metrics,
	log *zap.SugaredLogger,
) *AnswerService {
	if opts.TopK <= 0 {
		opts.TopK = rag.DefaultTopK
	}
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = defaultHistoryTurns
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &AnswerService{
		docRepo:   docRepo,
		chunkRepo: chunkRepo,
		embedder:  embedder,
		generator: generator,
		opts:      opts,
		metrics:   m,
		log:       log,
	}
}

// Answer retrieves the chunks closest to query and asks the generator to
// answer from them alone. Embedding and store failures are returned;
// generation failures become ApologyAnswer with no sources.
func (s *AnswerService) Answer(ctx context.Context, query string, history []ai.Turn) (*Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrMessageEmpty
	}
	started := time.Now()

	queryVec, err := s.embedder.Embed(ctx, query)
	s.metrics.ObserveEmbedding(time.Since(started), err)
	if err != nil {
		s.metrics.ObserveAnswer("embedding_failed", 0, time.Since(started))
		return nil, &rag.StageError{Stage: rag.StageEmbed, Err: err}
	}

	corpus, err := s.chunkRepo.ListAll()
	if err != nil {
		return nil, &rag.StageError{Stage: rag.StageRetrieve, Err: err}
	}
	matches, stats := rag.SearchWithStats(queryVec, corpus, s.opts.TopK)
	if stats.SkippedDimMismatch > 0 {
		s.log.Warnw("chunks skipped for dimension mismatch",
			"count", stats.SkippedDimMismatch, "query_dim", len(queryVec), "model", s.embedder.Model())
	}
	if len(matches) == 0 {
		s.metrics.ObserveAnswer("no_context", stats.Scanned, time.Since(started))
		return &Answer{Text: NoInformationAnswer, Sources: []string{}}, nil
	}

	sources, err := s.sourceNames(matches)
	if err != nil {
		return nil, &rag.StageError{Stage: rag.StageRetrieve, Err: err}
	}

	reply, err := s.generator.Generate(ctx, s.systemInstruction(matches), lastTurns(history, s.opts.HistoryTurns), query)
	if err != nil {
		s.log.Errorw("answer generation failed", "error", fmt.Errorf("%w: %v", rag.ErrGeneration, err))
		s.metrics.ObserveAnswer("generation_failed", stats.Scanned, time.Since(started))
		return &Answer{Text: ApologyAnswer, Sources: []string{}}, nil
	}
	if strings.TrimSpace(reply) == "" {
		reply = EmptyReplyAnswer
	}

	s.metrics.ObserveAnswer("answered", stats.Scanned, time.Since(started))
	return &Answer{Text: reply, Sources: sources, Matches: matches}, nil
}

func (s *AnswerService) systemInstruction(matches []rag.Result) string {
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, m.Chunk.Content)
	}

	var b strings.Builder
	b.WriteString("You are a helpful and professional assistant.\n")
	b.WriteString("Answer the user's question using ONLY the context provided below.\n")
	b.WriteString("If the answer is not in the context, politely say you don't have that information in the provided documents.\n")
	b.WriteString("Do not make up information.\n")
	if lang := strings.TrimSpace(s.opts.Language); lang != "" {
		b.WriteString("Always answer in " + lang + ".\n")
	}
	b.WriteString("\nCONTEXT:\n")
	b.WriteString(strings.Join(parts, contextSeparator))
	return b.String()
}

// sourceNames resolves the distinct documents behind matches, in rank order.
func (s *AnswerService) sourceNames(matches []rag.Result) ([]string, error) {
	ids := make([]uint, 0, len(matches))
	seen := make(map[uint]bool, len(matches))
	for _, m := range matches {
		if !seen[m.Chunk.DocumentID] {
			seen[m.Chunk.DocumentID] = true
			ids = append(ids, m.Chunk.DocumentID)
		}
	}
	names, err := s.docRepo.NamesByIDs(ids)
	if err != nil {
		return nil, err
	}
	sources := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := names[id]; ok {
			sources = append(sources, name)
		}
	}
	return sources, nil
}

func lastTurns(history []ai.Turn, n int) []ai.Turn {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
