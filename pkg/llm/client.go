package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Roles used in chat messages
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when the provider answers without any choice
var ErrEmptyResponse = errors.New("llm returned no content")

// Message is one turn of a chat conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatClient is the chat-completion collaborator used by the advisor.
// Implementations must be safe for concurrent use.
type ChatClient interface {
	// ChatCompletion returns the full assistant reply
	ChatCompletion(ctx context.Context, messages []Message) (string, error)

	// StreamChatCompletion delivers the reply incrementally to onChunk
	StreamChatCompletion(ctx context.Context, messages []Message, onChunk func(chunk string)) error
}

// Options shared by provider implementations
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// ParseJSON extracts a JSON object from an LLM reply into T.
// Models often wrap JSON in prose or code fences, so the outermost {...} is used.
func ParseJSON[T any](reply string) (*T, error) {
	text := strings.TrimSpace(reply)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in LLM reply: %q", truncate(text, 200))
	}

	var result T
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		return nil, fmt.Errorf("failed to parse LLM JSON: %w (response: %s)", err, truncate(text, 200))
	}
	return &result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Observer receives the outcome of every completion call
type Observer func(operation string, duration time.Duration, err error)

type observedClient struct {
	next     ChatClient
	observer Observer
}

// WithObserver wraps a client so each call is reported to observer
func WithObserver(next ChatClient, observer Observer) ChatClient {
	return &observedClient{next: next, observer: observer}
}

func (o *observedClient) ChatCompletion(ctx context.Context, messages []Message) (string, error) {
	start := time.Now()
	reply, err := o.next.ChatCompletion(ctx, messages)
	o.observer("chat", time.Since(start), err)
	return reply, err
}

func (o *observedClient) StreamChatCompletion(ctx context.Context, messages []Message, onChunk func(string)) error {
	start := time.Now()
	err := o.next.StreamChatCompletion(ctx, messages, onChunk)
	o.observer("stream", time.Since(start), err)
	return err
}

// MockClient is a mock chat client for testing
type MockClient struct {
	ChatFunc   func(ctx context.Context, messages []Message) (string, error)
	StreamFunc func(ctx context.Context, messages []Message, onChunk func(string)) error

	Calls [][]Message
}

// NewMockClient creates a mock client that replies with reply
func NewMockClient(reply string) *MockClient {
	return &MockClient{
		ChatFunc: func(ctx context.Context, messages []Message) (string, error) {
			return reply, nil
		},
	}
}

func (m *MockClient) ChatCompletion(ctx context.Context, messages []Message) (string, error) {
	m.Calls = append(m.Calls, messages)
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, messages)
	}
	return `{"result": "mock"}`, nil
}

func (m *MockClient) StreamChatCompletion(ctx context.Context, messages []Message, onChunk func(string)) error {
	if m.StreamFunc != nil {
		m.Calls = append(m.Calls, messages)
		return m.StreamFunc(ctx, messages, onChunk)
	}
	reply, err := m.ChatCompletion(ctx, messages)
	if err != nil {
		return err
	}
	onChunk(reply)
	return nil
}
