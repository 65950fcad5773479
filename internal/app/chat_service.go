package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"docmind/internal/ai"
	"docmind/internal/model"
	"docmind/internal/repository"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrMessageEmpty    = errors.New("message content is empty")
)

type HistoryCache interface {
	GetHistory(ctx context.Context, sessionID uint) ([]model.ChatMessage, bool, error)
	SetHistory(ctx context.Context, sessionID uint, messages []model.ChatMessage) error
	DeleteHistory(ctx context.Context, sessionID uint) error
	MarkDirty(ctx context.Context, sessionID uint) error
	IsDirty(ctx context.Context, sessionID uint) (bool, error)
}

// Answerer is the retrieval-augmented answering capability.
type Answerer interface {
	Answer(ctx context.Context, query string, history []ai.Turn) (*Answer, error)
}

type CreateSessionInput struct {
	UserID uint
	Title  string
}

type AskInput struct {
	UserID    uint
	SessionID uint
	Content   string
}

type AskResult struct {
	Messages []model.ChatMessage `json:"messages"`
	Sources  []string            `json:"sources"`
}

type ChatService struct {
	sessionRepo  *repository.ChatSessionRepository
	messageRepo  *repository.ChatMessageRepository
	historyCache HistoryCache
	answerer     Answerer
	historyTurns int
	log          *zap.SugaredLogger
}

func NewChatService(
	sessionRepo *repository.ChatSessionRepository,
	messageRepo *repository.ChatMessageRepository,
	historyCache HistoryCache,
	answerer Answerer,
	historyTurns int,
	log *zap.SugaredLogger,
) *ChatService {
	if historyTurns <= 0 {
		historyTurns = defaultHistoryTurns
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &ChatService{
		sessionRepo:  sessionRepo,
		messageRepo:  messageRepo,
		historyCache: historyCache,
		answerer:     answerer,
		historyTurns: historyTurns,
		log:          log,
	}
}

func (s *ChatService) CreateSession(input CreateSessionInput) (*model.ChatSession, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = "New Chat"
	}

	session := &model.ChatSession{
		UserID: input.UserID,
		Title:  title,
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *ChatService) ListSessions(userID uint) ([]model.ChatSession, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.sessionRepo.ListByUserID(userID)
}

func (s *ChatService) DeleteSession(ctx context.Context, userID, sessionID uint) error {
	if userID == 0 || sessionID == 0 {
		return ErrInvalidInput
	}
	if _, err := s.ownedSession(userID, sessionID); err != nil {
		return err
	}
	if err := s.sessionRepo.DeleteByIDAndUserID(sessionID, userID); err != nil {
		return err
	}
	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(ctx, sessionID)
	}
	return nil
}

// Ask answers content against the document corpus using the session's recent
// turns as history, then stores both turns. The user turn is stored before
// answering, so a failed answer leaves it in the session.
func (s *ChatService) Ask(ctx context.Context, input AskInput) (*AskResult, error) {
	if input.UserID == 0 || input.SessionID == 0 {
		return nil, ErrInvalidInput
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrMessageEmpty
	}
	if _, err := s.ownedSession(input.UserID, input.SessionID); err != nil {
		return nil, err
	}

	recent, err := s.recentMessages(ctx, input.SessionID, s.historyTurns)
	if err != nil {
		return nil, err
	}
	history := make([]ai.Turn, 0, len(recent))
	for _, m := range recent {
		history = append(history, ai.Turn{Role: m.Role, Content: m.Content})
	}

	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(ctx, input.SessionID)
		_ = s.historyCache.DeleteHistory(ctx, input.SessionID)
	}

	userMessage := &model.ChatMessage{
		SessionID: input.SessionID,
		Role:      model.ChatRoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := s.messageRepo.Create(userMessage); err != nil {
		return nil, err
	}

	answer, err := s.answerer.Answer(ctx, content, history)
	if err != nil {
		s.log.Errorw("answer failed", "session_id", input.SessionID, "error", err)
		return nil, err
	}

	modelMessage := &model.ChatMessage{
		SessionID: input.SessionID,
		Role:      model.ChatRoleModel,
		Content:   answer.Text,
		CreatedAt: time.Now(),
	}
	modelMessage.SetSourceNames(answer.Sources)
	if err := s.messageRepo.Create(modelMessage); err != nil {
		return nil, err
	}
	if err := s.sessionRepo.Touch(input.SessionID); err != nil {
		s.log.Warnw("touch session failed", "session_id", input.SessionID, "error", err)
	}

	return &AskResult{
		Messages: []model.ChatMessage{*userMessage, *modelMessage},
		Sources:  answer.Sources,
	}, nil
}

func (s *ChatService) GetHistory(ctx context.Context, userID, sessionID uint, limit int) ([]model.ChatMessage, error) {
	if userID == 0 || sessionID == 0 {
		return nil, ErrInvalidInput
	}
	if _, err := s.ownedSession(userID, sessionID); err != nil {
		return nil, err
	}

	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, sessionID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, sessionID); cacheErr == nil && hit {
				return trimMessages(cached, limit), nil
			}
		}
	}

	messages, err := s.messageRepo.ListBySessionID(sessionID, 200)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, sessionID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, sessionID, messages)
		}
	}
	return trimMessages(messages, limit), nil
}

func (s *ChatService) recentMessages(ctx context.Context, sessionID uint, n int) ([]model.ChatMessage, error) {
	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, sessionID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, sessionID); cacheErr == nil && hit {
				return trimMessages(cached, n), nil
			}
		}
	}
	return s.messageRepo.ListRecent(sessionID, n)
}

func (s *ChatService) ownedSession(userID, sessionID uint) (*model.ChatSession, error) {
	session, err := s.sessionRepo.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func trimMessages(messages []model.ChatMessage, limit int) []model.ChatMessage {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[len(messages)-limit:]
}
