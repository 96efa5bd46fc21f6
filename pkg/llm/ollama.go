package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type ollamaChatRequest struct {
	Model    string                 `json:"model"`
	Messages []Message              `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model   string  `json:"model"`
	Message Message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

// OllamaClient implements ChatClient for a local Ollama server
type OllamaClient struct {
	baseURL    string
	opts       Options
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOllamaClient creates a new Ollama chat client
func NewOllamaClient(baseURL string, opts Options, logger *slog.Logger) *OllamaClient {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &OllamaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		opts:       opts,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *OllamaClient) post(ctx context.Context, messages []Message, stream bool) (*http.Response, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model:    c.opts.Model,
		Messages: messages,
		Stream:   stream,
		Options: map[string]interface{}{
			"temperature": c.opts.Temperature,
			"num_predict": c.opts.MaxTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("LLM returned status %d: %s", resp.StatusCode, string(msg))
	}
	return resp, nil
}

// ChatCompletion sends the conversation and waits for the whole reply
func (c *OllamaClient) ChatCompletion(ctx context.Context, messages []Message) (string, error) {
	start := time.Now()

	resp, err := c.post(ctx, messages, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var chat ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if chat.Error != "" {
		return "", fmt.Errorf("ollama error: %s", chat.Error)
	}
	if chat.Message.Content == "" {
		return "", ErrEmptyResponse
	}

	c.logger.Debug("Ollama response received",
		"model", c.opts.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"response_length", len(chat.Message.Content))

	return strings.TrimSpace(chat.Message.Content), nil
}

// StreamChatCompletion reads the newline-delimited JSON stream and forwards each delta
func (c *OllamaClient) StreamChatCompletion(ctx context.Context, messages []Message, onChunk func(string)) error {
	resp, err := c.post(ctx, messages, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var chunk ollamaChatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return fmt.Errorf("failed to decode stream chunk: %w", err)
		}
		if chunk.Error != "" {
			return fmt.Errorf("ollama error: %s", chunk.Error)
		}
		if chunk.Message.Content != "" {
			onChunk(chunk.Message.Content)
		}
		if chunk.Done {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return nil
}
