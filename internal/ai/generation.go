package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Turn is one prior exchange passed to a stateless generation call.
// Role is "user" or "model"; "model" is sent as the assistant role.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator binds the client to one chat model.
type Generator struct {
	client *OpenAICompatibleClient
	cfg    ChatConfig
}

func NewGenerator(client *OpenAICompatibleClient, cfg ChatConfig) *Generator {
	return &Generator{client: client, cfg: cfg}
}

// Generate is stateless: history is sent explicitly on every call.
func (g *Generator) Generate(ctx context.Context, systemInstruction string, history []Turn, message string) (string, error) {
	messages := BuildMessages(systemInstruction, history, message)
	return g.client.Complete(ctx, g.cfg, messages)
}

// BuildMessages lays out system instruction, history and the new user message.
func BuildMessages(systemInstruction string, history []Turn, message string) []ChatMessage {
	messages := make([]ChatMessage, 0, len(history)+2)
	if strings.TrimSpace(systemInstruction) != "" {
		messages = append(messages, ChatMessage{Role: RoleSystem, Content: systemInstruction})
	}
	for _, turn := range history {
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		messages = append(messages, ChatMessage{Role: mapRole(turn.Role), Content: turn.Content})
	}
	messages = append(messages, ChatMessage{Role: RoleUser, Content: message})
	return messages
}

func mapRole(role string) string {
	switch role {
	case "model", RoleAssistant:
		return RoleAssistant
	default:
		return RoleUser
	}
}

// Session is the stateful generation variant: history is primed once at
// creation and grows with every successful exchange.
type Session struct {
	mu       sync.Mutex
	client   *OpenAICompatibleClient
	cfg      ChatConfig
	messages []ChatMessage
}

func (g *Generator) NewSession(systemInstruction string, primer []ChatMessage) *Session {
	messages := make([]ChatMessage, 0, len(primer)+1)
	if systemInstruction != "" {
		messages = append(messages, ChatMessage{Role: RoleSystem, Content: systemInstruction})
	}
	messages = append(messages, primer...)
	return &Session{
		client:   g.client,
		cfg:      g.cfg,
		messages: messages,
	}
}

func (s *Session) Send(ctx context.Context, text string) (string, error) {
	return s.SendStream(ctx, text, nil)
}

// SendStream streams the reply through onChunk when it is non-nil. Exchanges
// that fail are not recorded in the session history.
func (s *Session) SendStream(ctx context.Context, text string, onChunk func(string) error) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("session message is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	messages := append(append([]ChatMessage(nil), s.messages...), ChatMessage{Role: RoleUser, Content: text})

	var (
		reply string
		err   error
	)
	if onChunk != nil {
		reply, err = s.client.StreamComplete(ctx, s.cfg, messages, onChunk)
	} else {
		reply, err = s.client.Complete(ctx, s.cfg, messages)
	}
	if err != nil {
		return "", err
	}

	s.messages = append(messages, ChatMessage{Role: RoleAssistant, Content: reply})
	return reply, nil
}

// Turns returns the conversation so far, excluding the system instruction
// and any multimodal primer parts.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := make([]Turn, 0, len(s.messages))
	for _, m := range s.messages {
		if m.Role == RoleSystem || len(m.Parts) > 0 {
			continue
		}
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		turns = append(turns, Turn{Role: role, Content: m.Content})
	}
	return turns
}
