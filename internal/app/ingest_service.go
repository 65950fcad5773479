package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"docmind/internal/extract"
	"docmind/internal/metrics"
	"docmind/internal/model"
	"docmind/internal/rag"
	"docmind/internal/repository"
)

var ErrNoTextExtracted = errors.New("no text could be extracted from the file")

// ProgressStage is the coarse step reported to an ingestion observer.
type ProgressStage string

const (
	ProgressReading     ProgressStage = "reading"
	ProgressExtracting  ProgressStage = "extracting"
	ProgressChunking    ProgressStage = "chunking"
	ProgressVectorizing ProgressStage = "vectorizing"
	ProgressSuccess     ProgressStage = "success"
	ProgressError       ProgressStage = "error"
)

type ProgressEvent struct {
	DocumentID uint          `json:"document_id,omitempty"`
	Stage      ProgressStage `json:"stage"`
	Message    string        `json:"message"`
	Current    int           `json:"current,omitempty"`
	Total      int           `json:"total,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// ProgressFunc observes ingestion. Calls are serialized.
type ProgressFunc func(ProgressEvent)

// Embedder produces one vector per text.
type Embedder interface {
	Model() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Upload struct {
	Name     string
	MimeType string
	Data     []byte
}

type IngestOptions struct {
	ChunkSize int
	// EmbedWorkers above 1 embeds chunks on a bounded pool; otherwise chunks
	// are embedded one after another.
	EmbedWorkers int
}

type IngestService struct {
	docRepo   *repository.DocumentRepository
	chunkRepo *repository.ChunkRepository
	extractor extract.Extractor
	embedder  Embedder
	opts      IngestOptions
	metrics   *metrics.Metrics
	log       *zap.SugaredLogger
}

func NewIngestService(
	docRepo *repository.DocumentRepository,
	chunkRepo *repository.ChunkRepository,
	extractor extract.Extractor,
	embedder Embedder,
	opts IngestOptions,
	m *metrics.Metrics,
	log *zap.SugaredLogger,
) *IngestService {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = rag.DefaultChunkSize
	}
	if opts.EmbedWorkers <= 0 {
		opts.EmbedWorkers = 1
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &IngestService{
		docRepo:   docRepo,
		chunkRepo: chunkRepo,
		extractor: extractor,
		embedder:  embedder,
		opts:      opts,
		metrics:   m,
		log:       log,
	}
}

// Ingest registers the upload and runs the full pipeline. The returned
// document is non-nil whenever registration succeeded, including when a
// later step failed, so callers can inspect or delete the partial record.
func (s *IngestService) Ingest(ctx context.Context, upload Upload, onProgress ProgressFunc) (*model.Document, error) {
	notify := serialize(onProgress)
	notify(ProgressEvent{Stage: ProgressReading, Message: "reading file"})

	doc, err := s.Register(upload)
	if err != nil {
		notify(ProgressEvent{Stage: ProgressError, Message: "error processing file", Error: err.Error()})
		return nil, err
	}
	if err := s.process(ctx, doc, upload, notify); err != nil {
		return doc, err
	}
	return doc, nil
}

// Register persists the document metadata before any extraction so a failed
// run still leaves a discoverable, unprocessed record.
func (s *IngestService) Register(upload Upload) (*model.Document, error) {
	name := strings.TrimSpace(upload.Name)
	if name == "" {
		return nil, &rag.StageError{Stage: rag.StageRegister, Err: ErrInvalidInput}
	}
	doc := &model.Document{
		Name:       name,
		MimeType:   upload.MimeType,
		Size:       int64(len(upload.Data)),
		UploadedAt: time.Now(),
		Status:     model.StatusUploaded,
	}
	if err := s.docRepo.Create(doc); err != nil {
		return nil, &rag.StageError{Stage: rag.StageRegister, Err: err}
	}
	return doc, nil
}

// Process runs extraction, chunking and embedding for a registered document.
// Nothing is rolled back on failure: chunks stored before the failing step
// remain and the document stays unprocessed with Status failed.
func (s *IngestService) Process(ctx context.Context, doc *model.Document, upload Upload, onProgress ProgressFunc) error {
	return s.process(ctx, doc, upload, serialize(onProgress))
}

func (s *IngestService) process(ctx context.Context, doc *model.Document, upload Upload, notify ProgressFunc) error {
	started := time.Now()
	log := s.log.With("document_id", doc.ID, "name", doc.Name)

	n, err := s.run(ctx, doc, upload, notify)
	if err != nil {
		stage, _ := rag.StageOf(err)
		s.metrics.ObserveIngestion(string(stage), time.Since(started), err)
		log.Errorw("ingestion failed", "stage", stage, "error", err)
		s.markFailed(doc, err)
		notify(ProgressEvent{DocumentID: doc.ID, Stage: ProgressError, Message: "error processing file", Error: err.Error()})
		return err
	}

	s.metrics.ObserveIngestion("", time.Since(started), nil)
	log.Infow("ingestion finished", "chunks", n, "took", time.Since(started))
	notify(ProgressEvent{DocumentID: doc.ID, Stage: ProgressSuccess, Message: "success", Current: n, Total: n})
	return nil
}

func (s *IngestService) run(ctx context.Context, doc *model.Document, upload Upload, notify ProgressFunc) (int, error) {
	notify(ProgressEvent{DocumentID: doc.ID, Stage: ProgressExtracting, Message: extractingMessage(upload)})
	if err := s.setStatus(doc, model.StatusExtracting); err != nil {
		return 0, &rag.StageError{Stage: rag.StageExtract, Err: err}
	}

	text, err := s.extractor.Extract(ctx, extract.File{Name: upload.Name, MimeType: upload.MimeType, Data: upload.Data})
	if err != nil {
		return 0, &rag.StageError{Stage: rag.StageExtract, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return 0, &rag.StageError{Stage: rag.StageExtract, Err: fmt.Errorf("%w: %w", rag.ErrExtraction, ErrNoTextExtracted)}
	}

	if err := s.docRepo.UpdateFields(doc.ID, map[string]interface{}{"content": text}); err != nil {
		return 0, &rag.StageError{Stage: rag.StagePersist, Err: err}
	}
	doc.Content = &text

	notify(ProgressEvent{DocumentID: doc.ID, Stage: ProgressChunking, Message: "splitting content"})
	if err := s.setStatus(doc, model.StatusChunking); err != nil {
		return 0, &rag.StageError{Stage: rag.StageChunk, Err: err}
	}
	var pieces []string
	for piece := range rag.Chunks(text, s.opts.ChunkSize) {
		if strings.TrimSpace(piece) != "" {
			pieces = append(pieces, piece)
		}
	}
	if len(pieces) == 0 {
		return 0, &rag.StageError{Stage: rag.StageChunk, Err: ErrNoTextExtracted}
	}

	if err := s.setStatus(doc, model.StatusEmbedding); err != nil {
		return 0, &rag.StageError{Stage: rag.StageEmbed, Err: err}
	}
	if s.opts.EmbedWorkers > 1 && len(pieces) > 1 {
		err = s.embedPooled(ctx, doc, pieces, notify)
	} else {
		err = s.embedSequential(ctx, doc, pieces, notify)
	}
	if err != nil {
		return 0, err
	}

	err = s.docRepo.UpdateFields(doc.ID, map[string]interface{}{
		"processed":   true,
		"status":      model.StatusDone,
		"chunk_count": len(pieces),
		"last_error":  "",
	})
	if err != nil {
		return 0, &rag.StageError{Stage: rag.StageFinalize, Err: err}
	}
	doc.Processed = true
	doc.Status = model.StatusDone
	doc.ChunkCount = len(pieces)
	doc.LastError = ""
	return len(pieces), nil
}

func (s *IngestService) embedSequential(ctx context.Context, doc *model.Document, pieces []string, notify ProgressFunc) error {
	for i, piece := range pieces {
		notify(vectorizing(doc.ID, i+1, len(pieces)))
		if err := s.embedAndStore(ctx, doc.ID, i+1, piece); err != nil {
			return err
		}
	}
	return nil
}

// embedPooled embeds on a bounded ants pool. After the first failure no new
// chunk is started; chunks already stored are kept.
func (s *IngestService) embedPooled(ctx context.Context, doc *model.Document, pieces []string, notify ProgressFunc) error {
	pool, err := ants.NewPool(s.opts.EmbedWorkers)
	if err != nil {
		return &rag.StageError{Stage: rag.StageEmbed, Err: fmt.Errorf("create embed pool failed: %w", err)}
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		done     int
	)
	failed := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return firstErr != nil
	}

	for i, piece := range pieces {
		if failed() {
			break
		}
		index, text := i+1, piece
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if failed() {
				return
			}
			err := s.embedAndStore(ctx, doc.ID, index, text)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			done++
			notify(vectorizing(doc.ID, done, len(pieces)))
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = &rag.StageError{Stage: rag.StageEmbed, Chunk: index, Err: submitErr}
			}
			mu.Unlock()
			break
		}
	}
	wg.Wait()
	return firstErr
}

func (s *IngestService) embedAndStore(ctx context.Context, documentID uint, index int, text string) error {
	started := time.Now()
	vec, err := s.embedder.Embed(ctx, text)
	s.metrics.ObserveEmbedding(time.Since(started), err)
	if err != nil {
		return &rag.StageError{Stage: rag.StageEmbed, Chunk: index, Err: err}
	}
	if len(vec) == 0 {
		return &rag.StageError{Stage: rag.StageEmbed, Chunk: index, Err: fmt.Errorf("%w: empty vector", rag.ErrEmbedding)}
	}

	chunk := &model.Chunk{DocumentID: documentID, Content: text}
	chunk.SetEmbedding(s.embedder.Model(), vec)
	if err := s.chunkRepo.Create(chunk); err != nil {
		return &rag.StageError{Stage: rag.StagePersist, Chunk: index, Err: err}
	}
	s.metrics.ChunkStored()
	return nil
}

func (s *IngestService) setStatus(doc *model.Document, status string) error {
	if err := s.docRepo.UpdateFields(doc.ID, map[string]interface{}{"status": status}); err != nil {
		return err
	}
	doc.Status = status
	return nil
}

func (s *IngestService) markFailed(doc *model.Document, cause error) {
	doc.Status = model.StatusFailed
	doc.LastError = cause.Error()
	err := s.docRepo.UpdateFields(doc.ID, map[string]interface{}{
		"status":     model.StatusFailed,
		"last_error": cause.Error(),
	})
	if err != nil {
		s.log.Warnw("record ingestion failure failed", "document_id", doc.ID, "error", err)
	}
}

func extractingMessage(upload Upload) string {
	if extract.IsSpreadsheet(extract.File{Name: upload.Name, MimeType: upload.MimeType}) {
		return "processing spreadsheet locally"
	}
	return "extracting content"
}

func vectorizing(documentID uint, current, total int) ProgressEvent {
	return ProgressEvent{
		DocumentID: documentID,
		Stage:      ProgressVectorizing,
		Message:    fmt.Sprintf("vectorizing chunk %d/%d", current, total),
		Current:    current,
		Total:      total,
	}
}

func serialize(fn ProgressFunc) ProgressFunc {
	if fn == nil {
		return func(ProgressEvent) {}
	}
	var mu sync.Mutex
	return func(ev ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		fn(ev)
	}
}
