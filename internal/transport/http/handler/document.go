package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docmind/internal/app"
	"docmind/internal/rag"
	"docmind/internal/transport/http/response"
)

type DocumentHandler struct {
	ingest         *app.IngestService
	queue          *app.IngestQueue
	documents      *app.DocumentService
	maxUploadBytes int64
}

func NewDocumentHandler(ingest *app.IngestService, queue *app.IngestQueue, documents *app.DocumentService, maxUploadMB int) *DocumentHandler {
	return &DocumentHandler{
		ingest:         ingest,
		queue:          queue,
		documents:      documents,
		maxUploadBytes: int64(maxUploadMB) << 20,
	}
}

// Upload ingests the file inside the request and streams progress events.
// The last event is either "done" with the document or "error".
func (h *DocumentHandler) Upload(c *gin.Context) {
	upload, ok := readUpload(c, h.maxUploadBytes)
	if !ok {
		return
	}
	stream, ok := startEventStream(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	doc, err := h.ingest.Ingest(ctx, upload, func(ev app.ProgressEvent) {
		h.queue.Record(context.WithoutCancel(ctx), ev)
		stream.send("progress", ev)
	})
	if err != nil {
		payload := gin.H{"message": ingestErrorMessage(err)}
		if doc != nil {
			payload["document_id"] = doc.ID
		}
		stream.send("error", payload)
		return
	}
	stream.send("done", doc)
}

func (h *DocumentHandler) UploadAsync(c *gin.Context) {
	upload, ok := readUpload(c, h.maxUploadBytes)
	if !ok {
		return
	}

	doc, err := h.queue.Enqueue(c.Request.Context(), upload)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file name is required")
		case errors.Is(err, app.ErrQueueUnavailable):
			response.Error(c, http.StatusServiceUnavailable, response.CodeQueueUnavailable, err.Error())
		case doc != nil:
			response.Error(c, http.StatusServiceUnavailable, response.CodeQueueUnavailable, "enqueue ingestion failed")
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "register document failed")
		}
		return
	}

	c.JSON(http.StatusAccepted, response.APIResponse{Code: response.CodeOK, Message: "queued", Data: doc})
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.documents.List()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		return
	}
	response.OK(c, docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	detail, err := h.documents.Get(id)
	if err != nil {
		h.documentError(c, err, "get document failed")
		return
	}
	response.OK(c, detail)
}

func (h *DocumentHandler) Chunks(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	chunks, err := h.documents.Chunks(id)
	if err != nil {
		h.documentError(c, err, "list chunks failed")
		return
	}

	response.OK(c, chunks)
}

func (h *DocumentHandler) Progress(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	progress, err := h.queue.Progress(c.Request.Context(), id)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "read progress failed")
		return
	}
	if progress == nil {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "no progress recorded")
		return
	}
	response.OK(c, progress)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.documents.Delete(c.Request.Context(), id); err != nil {
		h.documentError(c, err, "delete document failed")
		return
	}
	response.OK(c, gin.H{"deleted": true})
}

func (h *DocumentHandler) documentError(c *gin.Context, err error, fallback string) {
	if errors.Is(err, app.ErrDocumentNotFound) {
		response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
		return
	}
	response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
}

func ingestErrorMessage(err error) string {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		return "file name is required"
	case errors.Is(err, rag.ErrExtraction):
		return "could not extract text from the file: " + err.Error()
	case errors.Is(err, rag.ErrEmbedding):
		return "embedding service failed: " + err.Error()
	default:
		return "error processing file: " + err.Error()
	}
}
