package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient implements ChatClient with the OpenAI chat completions API
type OpenAIClient struct {
	client *openai.Client
	opts   Options
	logger *slog.Logger
}

// NewOpenAIClient creates a client for the OpenAI API (or a compatible baseURL when set)
func NewOpenAIClient(apiKey, baseURL string, opts Options, logger *slog.Logger) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		opts:   opts,
		logger: logger,
	}
}

func (c *OpenAIClient) request(messages []Message, stream bool) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	return openai.ChatCompletionRequest{
		Model:       c.opts.Model,
		Messages:    msgs,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: float32(c.opts.Temperature),
		Stream:      stream,
	}
}

// ChatCompletion sends the conversation and returns the first choice
func (c *OpenAIClient) ChatCompletion(ctx context.Context, messages []Message) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.request(messages, false))
	if err != nil {
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	c.logger.Debug("OpenAI response received",
		"model", resp.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// StreamChatCompletion streams deltas to onChunk until the provider closes the stream
func (c *OpenAIClient) StreamChatCompletion(ctx context.Context, messages []Message, onChunk func(string)) error {
	stream, err := c.client.CreateChatCompletionStream(ctx, c.request(messages, true))
	if err != nil {
		return fmt.Errorf("openai stream failed: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("openai stream receive failed: %w", err)
		}
		if len(resp.Choices) > 0 && resp.Choices[0].Delta.Content != "" {
			onChunk(resp.Choices[0].Delta.Content)
		}
	}
}
