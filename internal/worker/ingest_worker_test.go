package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docmind/internal/app"
	"docmind/internal/cache"
	"docmind/internal/model"
)

type mapDocs map[uint]*model.Document

func (m mapDocs) GetByID(id uint) (*model.Document, error) {
	return m[id], nil
}

func (m mapDocs) UpdateFields(id uint, fields map[string]interface{}) error {
	doc, ok := m[id]
	if !ok {
		return errors.New("document not found")
	}
	if v, ok := fields["status"].(string); ok {
		doc.Status = v
	}
	if v, ok := fields["last_error"].(string); ok {
		doc.LastError = v
	}
	return nil
}

type stubProcessor struct {
	calls  int
	upload app.Upload
	err    error
}

func (p *stubProcessor) Process(_ context.Context, doc *model.Document, upload app.Upload, onProgress app.ProgressFunc) error {
	p.calls++
	p.upload = upload
	onProgress(app.ProgressEvent{DocumentID: doc.ID, Stage: app.ProgressVectorizing, Message: "vectorizing chunk 1/2", Current: 1, Total: 2})
	if p.err != nil {
		onProgress(app.ProgressEvent{DocumentID: doc.ID, Stage: app.ProgressError, Message: "error processing file", Error: p.err.Error()})
		return p.err
	}
	onProgress(app.ProgressEvent{DocumentID: doc.ID, Stage: app.ProgressSuccess, Message: "success"})
	return nil
}

func newProgressStore(t *testing.T) *cache.ProgressStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewProgressStore(client, time.Minute)
}

func jobBody(t *testing.T, job model.IngestJob) []byte {
	t.Helper()
	b, err := json.Marshal(job)
	require.NoError(t, err)
	return b
}

func TestHandle_RunsPipelineAndRecordsProgress(t *testing.T) {
	progress := newProgressStore(t)
	proc := &stubProcessor{}
	w := NewIngestWorker(nil, mapDocs{1: {ID: 1, Name: "a.pdf", Status: model.StatusUploaded}}, proc, progress, "q", nil)

	requeue, err := w.Handle(context.Background(), jobBody(t, model.IngestJob{DocumentID: 1, Name: "a.pdf", MimeType: "application/pdf", Data: []byte("%PDF")}))
	require.NoError(t, err)
	assert.False(t, requeue)
	assert.Equal(t, 1, proc.calls)
	assert.Equal(t, []byte("%PDF"), proc.upload.Data)

	p, err := progress.Get(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, p.Done)
	assert.Equal(t, "success", p.Status)
}

func TestHandle_PipelineFailureIsAcked(t *testing.T) {
	progress := newProgressStore(t)
	proc := &stubProcessor{err: errors.New("embed chunk 1: embedding failed")}
	w := NewIngestWorker(nil, mapDocs{2: {ID: 2, Name: "b.txt", Status: model.StatusUploaded}}, proc, progress, "q", nil)

	requeue, err := w.Handle(context.Background(), jobBody(t, model.IngestJob{DocumentID: 2, Name: "b.txt"}))
	require.NoError(t, err)
	assert.False(t, requeue)

	p, err := progress.Get(context.Background(), 2)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, p.Failed)
	assert.Contains(t, p.Message, "embedding failed")
}

func TestHandle_SkipsMissingAndProcessedDocuments(t *testing.T) {
	proc := &stubProcessor{}
	w := NewIngestWorker(nil, mapDocs{3: {ID: 3, Processed: true, Status: model.StatusDone}}, proc, nil, "q", nil)

	_, err := w.Handle(context.Background(), jobBody(t, model.IngestJob{DocumentID: 3}))
	require.NoError(t, err)
	_, err = w.Handle(context.Background(), jobBody(t, model.IngestJob{DocumentID: 99}))
	require.NoError(t, err)
	assert.Zero(t, proc.calls)
}

func TestHandle_RedeliveredInProgressDocumentIsMarkedFailed(t *testing.T) {
	progress := newProgressStore(t)
	proc := &stubProcessor{}
	docs := mapDocs{4: {ID: 4, Name: "c.txt", Status: model.StatusEmbedding}}
	w := NewIngestWorker(nil, docs, proc, progress, "q", nil)

	requeue, err := w.Handle(context.Background(), jobBody(t, model.IngestJob{DocumentID: 4, Name: "c.txt", Data: []byte("alpha")}))
	require.NoError(t, err)
	assert.False(t, requeue)
	assert.Zero(t, proc.calls)
	assert.Equal(t, model.StatusFailed, docs[4].Status)
	assert.Contains(t, docs[4].LastError, "interrupted")

	p, err := progress.Get(context.Background(), 4)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, p.Failed)
	assert.Contains(t, p.Message, "delete and re-ingest")
}

func TestHandle_SkipsFailedDocument(t *testing.T) {
	proc := &stubProcessor{}
	docs := mapDocs{5: {ID: 5, Status: model.StatusFailed, LastError: "embed chunk 2: embedding failed"}}
	w := NewIngestWorker(nil, docs, proc, nil, "q", nil)

	_, err := w.Handle(context.Background(), jobBody(t, model.IngestJob{DocumentID: 5}))
	require.NoError(t, err)
	assert.Zero(t, proc.calls)
	assert.Equal(t, "embed chunk 2: embedding failed", docs[5].LastError)
}

func TestHandle_RejectsMalformedBody(t *testing.T) {
	w := NewIngestWorker(nil, mapDocs{}, &stubProcessor{}, nil, "q", nil)
	requeue, err := w.Handle(context.Background(), []byte("{not json"))
	assert.Error(t, err)
	assert.False(t, requeue)
}
