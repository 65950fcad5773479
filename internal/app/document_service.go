package app

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"docmind/internal/model"
	"docmind/internal/repository"
)

var ErrDocumentNotFound = errors.New("document not found")

// ProgressCleaner drops recorded ingestion progress. Implemented by the
// redis progress store.
type ProgressCleaner interface {
	Delete(ctx context.Context, documentID uint) error
}

type DocumentDetail struct {
	Document model.Document `json:"document"`
	Chunks   int64          `json:"stored_chunks"`
}

type DocumentService struct {
	docRepo   *repository.DocumentRepository
	chunkRepo *repository.ChunkRepository
	progress  ProgressCleaner
	log       *zap.SugaredLogger
}

func NewDocumentService(
	docRepo *repository.DocumentRepository,
	chunkRepo *repository.ChunkRepository,
	progress ProgressCleaner,
	log *zap.SugaredLogger,
) *DocumentService {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &DocumentService{docRepo: docRepo, chunkRepo: chunkRepo, progress: progress, log: log}
}

func (s *DocumentService) List() ([]model.Document, error) {
	return s.docRepo.List()
}

func (s *DocumentService) Get(id uint) (*DocumentDetail, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	doc, err := s.docRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	n, err := s.chunkRepo.CountByDocumentID(id)
	if err != nil {
		return nil, err
	}
	return &DocumentDetail{Document: *doc, Chunks: n}, nil
}

func (s *DocumentService) Chunks(id uint) ([]model.Chunk, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	return s.chunkRepo.ListByDocumentID(id)
}

// Delete removes the document and every chunk referencing it.
func (s *DocumentService) Delete(ctx context.Context, id uint) error {
	if id == 0 {
		return ErrInvalidInput
	}
	doc, err := s.docRepo.GetByID(id)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	if err := s.docRepo.DeleteCascade(id); err != nil {
		return err
	}
	if s.progress != nil {
		if err := s.progress.Delete(ctx, id); err != nil {
			s.log.Warnw("drop ingestion progress failed", "document_id", id, "error", err)
		}
	}
	s.log.Infow("document deleted", "document_id", id, "name", doc.Name)
	return nil
}
