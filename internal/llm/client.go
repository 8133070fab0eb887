// Package llm provides a streaming client for OpenAI-compatible chat
// completion endpoints (OpenRouter, DeepSeek, vLLM, LocalAI, and other
// /v1/chat/completions implementations).
//
// The client consumes the server-sent-event stream the API emits when
// "stream": true is set, invoking a caller-supplied callback for every text
// delta and returning the fully accumulated completion at end of stream.
// The caller relays deltas downstream while the full text is retained for
// persistence, so no buffering happens before the first byte reaches the
// client.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tbourn/go-docchat-backend/internal/config"
)

// Role values for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role-tagged prompt message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DeltaFunc receives each streamed text fragment as it arrives. Returning an
// error aborts the stream (e.g., the downstream client disconnected).
type DeltaFunc func(delta string) error

// Completer is the contract consumed by the message service. Implementations
// must honor ctx for cancellation and return the full accumulated text on
// success.
type Completer interface {
	StreamCompletion(ctx context.Context, messages []Message, onDelta DeltaFunc) (string, error)
}

// ErrNoContent is returned when the stream finishes without producing any
// text at all.
var ErrNoContent = errors.New("llm: stream produced no content")

// Client calls an OpenAI-compatible /chat/completions endpoint with
// streaming enabled.
type Client struct {
	baseURL           string
	apiKey            string
	model             string
	temperature       float64
	maxTokens         int
	firstTokenTimeout time.Duration
	httpClient        *http.Client
}

// NewClient builds a Client from configuration. The HTTP client timeout is
// the overall request bound; time-to-first-token is enforced separately.
func NewClient(cfg config.LLMConfig) *Client {
	return &Client{
		baseURL:           strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:            strings.TrimSpace(cfg.APIKey),
		model:             strings.TrimSpace(cfg.Model),
		temperature:       cfg.Temperature,
		maxTokens:         cfg.MaxTokens,
		firstTokenTimeout: cfg.FirstTokenTimeout,
		httpClient:        &http.Client{Timeout: cfg.RequestTimeout},
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// StreamCompletion posts the messages with stream=true and relays each
// "data:" chunk's delta content to onDelta until the "[DONE]" terminator.
// It returns the accumulated full text. If no delta arrives within the
// configured first-token window the request is cancelled.
func (c *Client) StreamCompletion(ctx context.Context, messages []Message, onDelta DeltaFunc) (string, error) {
	if c.model == "" {
		return "", errors.New("llm: model is required")
	}

	reqBody := chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	}
	if c.temperature > 0 {
		t := c.temperature
		reqBody.Temperature = &t
	}
	if c.maxTokens > 0 {
		m := c.maxTokens
		reqBody.MaxTokens = &m
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&apiErr)
		if apiErr.Error.Message != "" {
			return "", fmt.Errorf("llm: api error: %s", apiErr.Error.Message)
		}
		return "", fmt.Errorf("llm: api returned %s", resp.Status)
	}

	// Cancel the request when the first delta does not arrive in time.
	var sawFirst bool
	var timer *time.Timer
	if c.firstTokenTimeout > 0 {
		timer = time.AfterFunc(c.firstTokenTimeout, cancel)
		defer timer.Stop()
	}

	var full strings.Builder
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			if ctx.Err() != nil && !sawFirst {
				return "", fmt.Errorf("llm: no token within %s: %w", c.firstTokenTimeout, ctx.Err())
			}
			return "", fmt.Errorf("llm: read stream: %w", err)
		}

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		if data == "[DONE]" {
			break
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		content := chunk.Choices[0].Delta.Content
		if content == "" {
			continue
		}

		if !sawFirst {
			sawFirst = true
			if timer != nil {
				timer.Stop()
			}
		}

		full.WriteString(content)
		if onDelta != nil {
			if err := onDelta(content); err != nil {
				return "", fmt.Errorf("llm: relay delta: %w", err)
			}
		}
	}

	if full.Len() == 0 {
		return "", ErrNoContent
	}
	return full.String(), nil
}
