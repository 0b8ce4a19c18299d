package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/colloquy-ai/colloquy/internal/models"
)

const anthropicVersion = "2023-06-01"

// anthropicMaxTokens caps a single generation; the upstream API requires
// the field to be set.
const anthropicMaxTokens = 4096

var anthropicModels = []string{
	"claude-3-5-sonnet-20240620",
	"claude-3-opus-20240229",
	"claude-3-haiku-20240307",
}

// Anthropic serves Claude models. The wire format is SSE with named
// events: content_block_delta carries text fragments, message_stop ends
// the stream, and error events signal upstream failures in-band.
//
// The backend only accepts the user and assistant roles, so system
// messages are collapsed into assistant turns before sending.
type Anthropic struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	models     map[string]bool
}

func NewAnthropic(baseURL, apiKey string) *Anthropic {
	m := make(map[string]bool, len(anthropicModels))
	for _, name := range anthropicModels {
		m[name] = true
	}
	return &Anthropic{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{},
		models:     m,
	}
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Models() []string {
	out := make([]string, len(anthropicModels))
	copy(out, anthropicModels)
	return out
}

func (a *Anthropic) CanHandle(model string) bool {
	return a.models[model]
}

type anthropicRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []Message `json:"messages"`
	Stream    bool      `json:"stream"`
}

type anthropicDelta struct {
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

type anthropicStreamError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// collapseRoles rewrites messages for a backend that only accepts the
// user and assistant roles.
func collapseRoles(messages []Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			m.Role = models.RoleAssistant
		}
		out = append(out, m)
	}
	return out
}

func (a *Anthropic) StreamCompletion(ctx context.Context, messages []Message, model string, onToken TokenSink) (int, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     model,
		MaxTokens: anthropicMaxTokens,
		Messages:  collapseRoles(messages),
		Stream:    true,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("anthropic request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, readProviderError(a.Name(), resp)
	}

	reader := newSSEReader(resp.Body)
	tokens := 0

	for {
		select {
		case <-ctx.Done():
			return tokens, ctx.Err()
		default:
		}

		event, data, err := reader.next()
		if err != nil {
			if err == io.EOF {
				return tokens, nil
			}
			return tokens, fmt.Errorf("anthropic stream read failed: %w", err)
		}

		switch event {
		case "content_block_delta":
			var chunk anthropicDelta
			if err := json.Unmarshal(data, &chunk); err != nil {
				return tokens, &ProviderError{Provider: a.Name(), Message: fmt.Sprintf("malformed stream chunk: %v", err)}
			}
			if chunk.Delta.Text != "" {
				onToken(chunk.Delta.Text)
				tokens++
			}

		case "message_stop":
			return tokens, nil

		case "error":
			var streamErr anthropicStreamError
			if err := json.Unmarshal(data, &streamErr); err != nil {
				return tokens, &ProviderError{Provider: a.Name(), Message: string(data)}
			}
			return tokens, &ProviderError{Provider: a.Name(), Message: streamErr.Error.Message}

		default:
			// message_start, content_block_start, ping and friends carry
			// no text.
		}
	}
}
