package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"docmind/internal/app"
	"docmind/internal/model"
)

// DocumentLoader fetches the registered document a job refers to and
// records a failure on it.
type DocumentLoader interface {
	GetByID(id uint) (*model.Document, error)
	UpdateFields(id uint, fields map[string]interface{}) error
}

// A document past StatusUploaded but not done had its run cut short. Its
// partial chunks stay until an admin deletes it.
const interruptedRunError = "ingestion run interrupted; delete and re-ingest"

// Processor runs the ingestion pipeline for a registered document.
type Processor interface {
	Process(ctx context.Context, doc *model.Document, upload app.Upload, onProgress app.ProgressFunc) error
}

// IngestWorker consumes queued ingestion jobs one at a time. A job whose
// pipeline fails is still acknowledged: the failure is recorded on the
// document and retrying is an explicit admin decision.
type IngestWorker struct {
	conn      *amqp.Connection
	docs      DocumentLoader
	processor Processor
	progress  app.ProgressRecorder
	queueName string
	log       *zap.SugaredLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIngestWorker(
	conn *amqp.Connection,
	docs DocumentLoader,
	processor Processor,
	progress app.ProgressRecorder,
	queueName string,
	log *zap.SugaredLogger,
) *IngestWorker {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &IngestWorker{
		conn:      conn,
		docs:      docs,
		processor: processor,
		progress:  progress,
		queueName: queueName,
		log:       log,
	}
}

func (w *IngestWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	// one unacked job at a time; the pipeline is the slow part
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				if requeue, err := w.Handle(workerCtx, d.Body); err != nil {
					w.log.Errorw("ingest job rejected", "message_id", d.MessageId, "error", err)
					_ = d.Nack(false, requeue)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	w.log.Infow("ingest worker started", "queue", w.queueName)
	return nil
}

// Handle processes one job body. It returns an error only when the job
// could not be started; requeue reports whether redelivery may help.
func (w *IngestWorker) Handle(ctx context.Context, body []byte) (requeue bool, err error) {
	var job model.IngestJob
	if err := json.Unmarshal(body, &job); err != nil {
		return false, fmt.Errorf("decode ingest job failed: %w", err)
	}

	doc, err := w.docs.GetByID(job.DocumentID)
	if err != nil {
		return true, err
	}
	if doc == nil {
		w.log.Warnw("ingest job for missing document dropped", "document_id", job.DocumentID, "job_id", job.JobID)
		return false, nil
	}
	if doc.Processed {
		w.log.Infow("ingest job for processed document skipped", "document_id", doc.ID, "job_id", job.JobID)
		return false, nil
	}
	if doc.Status != model.StatusUploaded {
		return w.abandon(ctx, doc, job)
	}

	upload := app.Upload{Name: job.Name, MimeType: job.MimeType, Data: job.Data}
	onProgress := func(ev app.ProgressEvent) {
		app.RecordProgress(ctx, w.progress, w.log, ev)
	}
	if err := w.processor.Process(ctx, doc, upload, onProgress); err != nil {
		w.log.Warnw("queued ingestion failed", "document_id", doc.ID, "job_id", job.JobID, "error", err)
	}
	return false, nil
}

// abandon handles a redelivered job whose document already left the
// uploaded state. Running the pipeline again would store its chunks twice.
func (w *IngestWorker) abandon(ctx context.Context, doc *model.Document, job model.IngestJob) (bool, error) {
	if doc.Status == model.StatusFailed {
		w.log.Infow("ingest job for failed document skipped", "document_id", doc.ID, "job_id", job.JobID)
		return false, nil
	}

	w.log.Warnw("ingest job for interrupted document marked failed", "document_id", doc.ID, "job_id", job.JobID, "status", doc.Status)
	err := w.docs.UpdateFields(doc.ID, map[string]interface{}{
		"status":     model.StatusFailed,
		"last_error": interruptedRunError,
	})
	if err != nil {
		return true, fmt.Errorf("mark interrupted document failed: %w", err)
	}
	app.RecordProgress(ctx, w.progress, w.log, app.ProgressEvent{
		DocumentID: doc.ID,
		Stage:      app.ProgressError,
		Message:    "error processing file",
		Error:      interruptedRunError,
	})
	return false, nil
}

func (w *IngestWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
