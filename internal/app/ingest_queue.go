package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docmind/internal/cache"
	"docmind/internal/model"
)

var ErrQueueUnavailable = errors.New("ingestion queue is not available")

const progressQueued = "queued"

type JobPublisher interface {
	Publish(ctx context.Context, job model.IngestJob) error
}

type ProgressRecorder interface {
	Set(ctx context.Context, p cache.Progress) error
	Get(ctx context.Context, documentID uint) (*cache.Progress, error)
}

// IngestQueue hands uploads to the background worker: the document is
// registered synchronously, the pipeline runs when the job is consumed.
type IngestQueue struct {
	ingest    *IngestService
	publisher JobPublisher
	progress  ProgressRecorder
	log       *zap.SugaredLogger
}

func NewIngestQueue(ingest *IngestService, publisher JobPublisher, progress ProgressRecorder, log *zap.SugaredLogger) *IngestQueue {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &IngestQueue{ingest: ingest, publisher: publisher, progress: progress, log: log}
}

func (q *IngestQueue) Enqueue(ctx context.Context, upload Upload) (*model.Document, error) {
	if q.publisher == nil {
		return nil, ErrQueueUnavailable
	}
	doc, err := q.ingest.Register(upload)
	if err != nil {
		return nil, err
	}

	job := model.IngestJob{
		JobID:      uuid.NewString(),
		DocumentID: doc.ID,
		Name:       doc.Name,
		MimeType:   upload.MimeType,
		Data:       upload.Data,
		EnqueuedAt: time.Now(),
	}
	if err := q.publisher.Publish(ctx, job); err != nil {
		q.ingest.markFailed(doc, err)
		return doc, err
	}
	q.log.Infow("ingestion queued", "document_id", doc.ID, "job_id", job.JobID)

	RecordProgress(ctx, q.progress, q.log, ProgressEvent{DocumentID: doc.ID, Stage: progressQueued, Message: "waiting for worker"})
	return doc, nil
}

// Progress returns the last recorded event for a document, nil when none.
func (q *IngestQueue) Progress(ctx context.Context, documentID uint) (*cache.Progress, error) {
	if q.progress == nil {
		return nil, nil
	}
	return q.progress.Get(ctx, documentID)
}

// Record stores ev as the latest progress of its document.
func (q *IngestQueue) Record(ctx context.Context, ev ProgressEvent) {
	RecordProgress(ctx, q.progress, q.log, ev)
}

// RecordProgress stores ev as the latest progress of its document. Store
// failures are logged and otherwise ignored.
func RecordProgress(ctx context.Context, recorder ProgressRecorder, log *zap.SugaredLogger, ev ProgressEvent) {
	if recorder == nil || ev.DocumentID == 0 {
		return
	}
	p := cache.Progress{
		DocumentID: ev.DocumentID,
		Status:     string(ev.Stage),
		Message:    ev.Message,
		Current:    ev.Current,
		Total:      ev.Total,
		Done:       ev.Stage == ProgressSuccess,
		Failed:     ev.Stage == ProgressError,
	}
	if ev.Error != "" {
		p.Message = ev.Message + ": " + ev.Error
	}
	if err := recorder.Set(ctx, p); err != nil && log != nil {
		log.Warnw("record ingestion progress failed", "document_id", ev.DocumentID, "error", err)
	}
}
