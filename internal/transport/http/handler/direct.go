package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"docmind/internal/app"
	"docmind/internal/transport/http/response"
)

// DirectHandler serves conversations about a single uploaded file that skip
// the document index entirely.
type DirectHandler struct {
	direct         *app.DirectChatService
	maxUploadBytes int64
}

func NewDirectHandler(direct *app.DirectChatService, maxUploadMB int) *DirectHandler {
	return &DirectHandler{direct: direct, maxUploadBytes: int64(maxUploadMB) << 20}
}

func (h *DirectHandler) Create(c *gin.Context) {
	upload, ok := readUpload(c, h.maxUploadBytes)
	if !ok {
		return
	}

	info, err := h.direct.Create(upload)
	if err != nil {
		h.directError(c, err, "create conversation failed")
		return
	}
	response.OK(c, info)
}

func (h *DirectHandler) Send(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	reply, err := h.direct.Send(c.Request.Context(), c.Param("id"), req.Content)
	if err != nil {
		h.directError(c, err, "model request failed")
		return
	}
	response.OK(c, gin.H{"reply": reply})
}

// Stream relays reply chunks as they arrive, then a "done" event carrying the
// full reply.
func (h *DirectHandler) Stream(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if _, err := h.direct.History(c.Param("id")); err != nil {
		h.directError(c, err, "read conversation failed")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	full, err := h.direct.SendStream(c.Request.Context(), c.Param("id"), req.Content, func(chunk string) error {
		if _, writeErr := c.Writer.Write([]byte("data: " + sanitizeSSE(chunk) + "\n\n")); writeErr != nil {
			return writeErr
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		if _, writeErr := c.Writer.Write([]byte(fmt.Sprintf("event: error\ndata: %s\n\n", sanitizeSSE(err.Error())))); writeErr == nil {
			flusher.Flush()
		}
		return
	}

	if _, writeErr := c.Writer.Write([]byte("event: done\ndata: " + sanitizeSSE(full) + "\n\n")); writeErr == nil {
		flusher.Flush()
	}
}

func (h *DirectHandler) History(c *gin.Context) {
	turns, err := h.direct.History(c.Param("id"))
	if err != nil {
		h.directError(c, err, "read conversation failed")
		return
	}
	response.OK(c, turns)
}

func (h *DirectHandler) Close(c *gin.Context) {
	if err := h.direct.Close(c.Param("id")); err != nil {
		h.directError(c, err, "close conversation failed")
		return
	}
	response.OK(c, gin.H{"closed": true})
}

func (h *DirectHandler) directError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrMessageEmpty):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrDirectSessionNotFound):
		response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
	default:
		response.Error(c, http.StatusBadGateway, response.CodeInternalServer, fallback)
	}
}
