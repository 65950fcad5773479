package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docmind/internal/ai"
	"docmind/internal/app"
	"docmind/internal/rag"
	"docmind/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
	answerer    app.Answerer
}

type CreateSessionRequest struct {
	Title string `json:"title" binding:"max=255"`
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type HistoryTurn struct {
	Role    string `json:"role" binding:"required,oneof=user model assistant"`
	Content string `json:"content"`
}

type AskRequest struct {
	Query   string        `json:"query" binding:"required"`
	History []HistoryTurn `json:"history" binding:"dive"`
}

func NewChatHandler(chatService *app.ChatService, answerer app.Answerer) *ChatHandler {
	return &ChatHandler{chatService: chatService, answerer: answerer}
}

// Ask answers a query with caller-supplied history and stores nothing.
func (h *ChatHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	history := make([]ai.Turn, 0, len(req.History))
	for _, t := range req.History {
		history = append(history, ai.Turn{Role: t.Role, Content: t.Content})
	}

	answer, err := h.answerer.Answer(c.Request.Context(), req.Query, history)
	if err != nil {
		h.answerError(c, err)
		return
	}
	response.OK(c, answer)
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	session, err := h.chatService.CreateSession(app.CreateSessionInput{
		UserID: userID,
		Title:  req.Title,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "create session failed")
		}
		return
	}

	response.OK(c, session)
}

func (h *ChatHandler) ListSessions(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	sessions, err := h.chatService.ListSessions(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list sessions failed")
		return
	}

	response.OK(c, sessions)
}

func (h *ChatHandler) DeleteSession(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.chatService.DeleteSession(c.Request.Context(), userID, sessionID); err != nil {
		h.sessionError(c, err, "delete session failed")
		return
	}

	response.OK(c, gin.H{"deleted": true})
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.chatService.Ask(c.Request.Context(), app.AskInput{
		UserID:    userID,
		SessionID: sessionID,
		Content:   req.Content,
	})
	if err != nil {
		if errors.Is(err, app.ErrSessionNotFound) || errors.Is(err, app.ErrInvalidInput) {
			h.sessionError(c, err, "")
			return
		}
		h.answerError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
			limit = parsed
		}
	}

	history, err := h.chatService.GetHistory(c.Request.Context(), userID, sessionID, limit)
	if err != nil {
		h.sessionError(c, err, "get history failed")
		return
	}

	response.OK(c, history)
}

func (h *ChatHandler) sessionError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

func (h *ChatHandler) answerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, app.ErrMessageEmpty):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, rag.ErrEmbedding):
		response.Error(c, http.StatusBadGateway, response.CodeEmbeddingFailed, "embedding service failed")
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "answer failed")
	}
}
