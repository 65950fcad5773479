package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docmind/internal/ai"
)

const (
	directSystemInstruction = "You are DocuMind, an intelligent document assistant. The user has uploaded a file. " +
		"Your task is to answer questions strictly based on the content of this file. " +
		"If the answer is not in the file, politely state that you cannot find the information. " +
		"Be concise, professional, and helpful."
	directPrimerRequest = "Here is the file I want to discuss. Please analyze it and confirm you are ready."
	directPrimerReply   = "I have analyzed the file and I am ready to answer your questions about it."
	directEmptyReply    = "I processed that, but I didn't have a text response."

	defaultMaxDirectSessions = 100
)

var ErrDirectSessionNotFound = errors.New("direct chat session not found")

// DirectConversation is a stateful chat primed with one file.
type DirectConversation interface {
	// SendStream delivers the reply through onChunk when it is non-nil.
	SendStream(ctx context.Context, text string, onChunk func(string) error) (string, error)
	Turns() []ai.Turn
}

// ConversationFactory starts a conversation from a system instruction and
// primer turns. *ai.Generator satisfies it through NewConversationFactory.
type ConversationFactory func(systemInstruction string, primer []ai.ChatMessage) DirectConversation

func NewConversationFactory(g *ai.Generator) ConversationFactory {
	return func(systemInstruction string, primer []ai.ChatMessage) DirectConversation {
		return g.NewSession(systemInstruction, primer)
	}
}

type DirectSessionInfo struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	MimeType  string    `json:"mime_type"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	Greeting  string    `json:"greeting"`
}

type directEntry struct {
	seq  uint64
	info DirectSessionInfo
	conv DirectConversation
}

// DirectChatService holds single-file conversations in memory, keyed by a
// generated id. Sessions live until closed or evicted as the oldest once
// the service is full.
type DirectChatService struct {
	mu          sync.Mutex
	sessions    map[string]*directEntry
	seq         uint64
	newConv     ConversationFactory
	maxSessions int
	log         *zap.SugaredLogger
}

func NewDirectChatService(newConv ConversationFactory, maxSessions int, log *zap.SugaredLogger) *DirectChatService {
	if maxSessions <= 0 {
		maxSessions = defaultMaxDirectSessions
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &DirectChatService{
		sessions:    make(map[string]*directEntry),
		newConv:     newConv,
		maxSessions: maxSessions,
		log:         log,
	}
}

func (s *DirectChatService) Create(upload Upload) (*DirectSessionInfo, error) {
	name := strings.TrimSpace(upload.Name)
	if name == "" || len(upload.Data) == 0 {
		return nil, ErrInvalidInput
	}

	primer := []ai.ChatMessage{
		{
			Role: ai.RoleUser,
			Parts: []ai.ContentPart{
				ai.FilePart(name, upload.MimeType, upload.Data),
				{Type: "text", Text: directPrimerRequest},
			},
		},
		{Role: ai.RoleAssistant, Content: directPrimerReply},
	}
	entry := &directEntry{
		info: DirectSessionInfo{
			ID:        uuid.NewString(),
			FileName:  name,
			MimeType:  upload.MimeType,
			Size:      len(upload.Data),
			CreatedAt: time.Now(),
			Greeting:  directPrimerReply,
		},
		conv: s.newConv(directSystemInstruction, primer),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) >= s.maxSessions {
		s.evictOldestLocked()
	}
	s.seq++
	entry.seq = s.seq
	s.sessions[entry.info.ID] = entry
	info := entry.info
	return &info, nil
}

func (s *DirectChatService) Send(ctx context.Context, id, text string) (string, error) {
	return s.SendStream(ctx, id, text, nil)
}

func (s *DirectChatService) SendStream(ctx context.Context, id, text string, onChunk func(string) error) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrMessageEmpty
	}
	entry, err := s.get(id)
	if err != nil {
		return "", err
	}
	reply, err := entry.conv.SendStream(ctx, text, onChunk)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		reply = directEmptyReply
	}
	return reply, nil
}

func (s *DirectChatService) History(id string) ([]ai.Turn, error) {
	entry, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return entry.conv.Turns(), nil
}

func (s *DirectChatService) Close(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrDirectSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// CloseAll drops every session.
func (s *DirectChatService) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*directEntry)
}

func (s *DirectChatService) get(id string) (*directEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[id]
	if !ok {
		return nil, ErrDirectSessionNotFound
	}
	return entry, nil
}

func (s *DirectChatService) evictOldestLocked() {
	var (
		oldestID  string
		oldestSeq uint64
	)
	for id, e := range s.sessions {
		if oldestID == "" || e.seq < oldestSeq {
			oldestID, oldestSeq = id, e.seq
		}
	}
	if oldestID != "" {
		delete(s.sessions, oldestID)
		s.log.Infow("direct chat session evicted", "session_id", oldestID)
	}
}
