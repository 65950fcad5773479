package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docmind/internal/app"
	"docmind/internal/transport/http/middleware"
	"docmind/internal/transport/http/response"
)

func getUserIDFromContext(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	return userID, ok
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id64, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id64 == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid "+name)
		return 0, false
	}
	return uint(id64), true
}

// room for multipart boundaries and part headers on top of the file itself
const multipartOverhead = 64 << 10

// readUpload reads the multipart "file" field, rejecting bodies over maxBytes.
// The request body is capped before it is parsed.
func readUpload(c *gin.Context, maxBytes int64) (app.Upload, bool) {
	if maxBytes > 0 {
		limit := maxBytes + multipartOverhead
		if c.Request.ContentLength > limit {
			uploadTooLarge(c, maxBytes)
			return app.Upload{}, false
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			uploadTooLarge(c, maxBytes)
			return app.Upload{}, false
		}
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return app.Upload{}, false
	}
	if maxBytes > 0 && file.Size > maxBytes {
		uploadTooLarge(c, maxBytes)
		return app.Upload{}, false
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return app.Upload{}, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return app.Upload{}, false
	}

	mimeType := strings.TrimSpace(file.Header.Get("Content-Type"))
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return app.Upload{Name: file.Filename, MimeType: mimeType, Data: data}, true
}

func uploadTooLarge(c *gin.Context, maxBytes int64) {
	response.Error(c, http.StatusRequestEntityTooLarge, response.CodePayloadTooLarge,
		fmt.Sprintf("file too large (max %dMB)", maxBytes>>20))
}

type eventStream struct {
	c       *gin.Context
	flusher http.Flusher
}

func startEventStream(c *gin.Context) (*eventStream, bool) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return nil, false
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	return &eventStream{c: c, flusher: flusher}, true
}

// send writes one named event with a JSON payload. An empty event name
// produces a default "message" event.
func (s *eventStream) send(event string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		body = []byte(strconv.Quote(err.Error()))
	}
	var frame string
	if event != "" {
		frame = "event: " + event + "\n"
	}
	frame += "data: " + sanitizeSSE(string(body)) + "\n\n"
	if _, writeErr := s.c.Writer.Write([]byte(frame)); writeErr == nil {
		s.flusher.Flush()
	}
}

func sanitizeSSE(input string) string {
	replaced := strings.ReplaceAll(input, "\r\n", "\\n")
	replaced = strings.ReplaceAll(replaced, "\n", "\\n")
	return replaced
}
