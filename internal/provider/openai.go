package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// openAIModels is the static capability set for the OpenAI adapter.
var openAIModels = []string{
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4-turbo",
	"gpt-3.5-turbo",
}

// OpenAI serves OpenAI chat models over the SSE streaming wire format:
// "data:" events carrying delta JSON chunks, terminated by "[DONE]".
type OpenAI struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	models     map[string]bool
}

func NewOpenAI(baseURL, apiKey string) *OpenAI {
	models := make(map[string]bool, len(openAIModels))
	for _, m := range openAIModels {
		models[m] = true
	}
	return &OpenAI{
		baseURL: baseURL,
		apiKey:  apiKey,
		// Streaming requests are bounded by the caller's context, not a
		// client timeout.
		httpClient: &http.Client{},
		models:     models,
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Models() []string {
	out := make([]string, len(openAIModels))
	copy(out, openAIModels)
	return out
}

func (o *OpenAI) CanHandle(model string) bool {
	return o.models[model]
}

type openAIChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (o *OpenAI) StreamCompletion(ctx context.Context, messages []Message, model string, onToken TokenSink) (int, error) {
	body, err := json.Marshal(openAIChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, readProviderError(o.Name(), resp)
	}

	reader := newSSEReader(resp.Body)
	tokens := 0

	for {
		select {
		case <-ctx.Done():
			return tokens, ctx.Err()
		default:
		}

		_, data, err := reader.next()
		if err != nil {
			if err == io.EOF {
				return tokens, nil
			}
			return tokens, fmt.Errorf("openai stream read failed: %w", err)
		}

		if bytes.Equal(data, []byte("[DONE]")) {
			return tokens, nil
		}

		var chunk openAIStreamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			return tokens, &ProviderError{Provider: o.Name(), Message: fmt.Sprintf("malformed stream chunk: %v", err)}
		}

		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				onToken(choice.Delta.Content)
				tokens++
			}
			if choice.FinishReason != "" {
				return tokens, nil
			}
		}
	}
}

// readProviderError drains an error response into a ProviderError.
func readProviderError(name string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
	msg := string(bytes.TrimSpace(body))

	// Most backends wrap errors as {"error": {"message": ...}}.
	var wrapped struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error.Message != "" {
		msg = wrapped.Error.Message
	}

	return &ProviderError{Provider: name, Status: resp.StatusCode, Message: msg}
}
