package aiclient

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry in a chat transcript.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatSession keeps the transcript of an operator conversation with the
// AI backend. The transcript backs the chat-history endpoint; each send
// still goes through the retrying client, so the session inherits the
// breaker and backoff behavior.
type ChatSession struct {
	mu         sync.Mutex
	client     *Client
	maxRetries int
	messages   []Message
}

// NewChatSession creates a session seeded with a generic system instruction.
func NewChatSession(client *Client, maxRetries int) *ChatSession {
	s := &ChatSession{
		client:     client,
		maxRetries: maxRetries,
	}
	s.AddSystemMessage("You are a helpful AI assistant.")
	return s
}

// AddSystemMessage appends a system instruction to the transcript.
func (s *ChatSession) AddSystemMessage(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, Message{
		Role:      RoleSystem,
		Content:   content,
		Timestamp: time.Now(),
	})
}

// Send records the user input, invokes the backend with the composed
// transcript through the retrying client, and records the assistant
// reply on success. Earlier system instructions and turns are part of
// every send, so the backend keeps conversation memory.
func (s *ChatSession) Send(ctx context.Context, input string) (string, error) {
	s.mu.Lock()
	s.messages = append(s.messages, Message{
		Role:      RoleUser,
		Content:   input,
		Timestamp: time.Now(),
	})
	transcript := make([]Message, len(s.messages))
	copy(transcript, s.messages)
	s.mu.Unlock()

	// Not holding the session lock across the network call: concurrent
	// sends interleave in the transcript but never block each other.
	reply, err := s.client.SendTranscriptWithRetry(ctx, transcript, s.maxRetries)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.messages = append(s.messages, Message{
		Role:      RoleAssistant,
		Content:   reply,
		Timestamp: time.Now(),
	})
	s.mu.Unlock()

	return reply, nil
}

// FlattenTranscript renders a transcript as role-prefixed text for
// senders that only accept a single input string.
func FlattenTranscript(msgs []Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

// History returns a copy of the transcript.
func (s *ChatSession) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}
