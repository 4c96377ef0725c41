package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPSender talks to an OpenAI-compatible chat-completions endpoint.
type HTTPSender struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewHTTPSender creates a sender for the given backend. baseURL is the API
// root (e.g. "https://api.openai.com/v1") without a trailing slash.
func NewHTTPSender(baseURL, apiKey, model string) *HTTPSender {
	return &HTTPSender{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// apiError carries the backend's HTTP status so rate limits classify.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("ai backend returned status %d: %s", e.status, e.body)
}

func (e *apiError) StatusCode() int { return e.status }

// Send performs one chat completion with a single user message.
func (s *HTTPSender) Send(ctx context.Context, input string) (string, error) {
	return s.complete(ctx, []chatMessage{{Role: RoleUser, Content: input}})
}

// SendMessages performs one chat completion over a full transcript,
// preserving system/user/assistant roles.
func (s *HTTPSender) SendMessages(ctx context.Context, msgs []Message) (string, error) {
	wire := make([]chatMessage, len(msgs))
	for i, m := range msgs {
		wire[i] = chatMessage{Role: m.Role, Content: m.Content}
	}
	return s.complete(ctx, wire)
}

func (s *HTTPSender) complete(ctx context.Context, msgs []chatMessage) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:    s.model,
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read chat response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &apiError{status: resp.StatusCode, body: truncateBody(body)}
	}

	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("chat response contained no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}

func truncateBody(body []byte) string {
	const max = 512
	s := string(body)
	if len(s) > max {
		return s[:max]
	}
	return s
}
