package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var ollamaModels = []string{
	"llama3.1:8b",
	"llama3.1:70b",
	"mistral:7b",
}

// Ollama serves locally hosted models. The wire format is newline
// delimited JSON: one object per line, with the terminating object
// carrying done=true. An incomplete trailing line is held in the buffered
// reader until the rest of it arrives.
type Ollama struct {
	baseURL    string
	httpClient *http.Client
	models     map[string]bool
}

func NewOllama(baseURL string) *Ollama {
	m := make(map[string]bool, len(ollamaModels))
	for _, name := range ollamaModels {
		m[name] = true
	}
	return &Ollama{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		models:     m,
	}
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) Models() []string {
	out := make([]string, len(ollamaModels))
	copy(out, ollamaModels)
	return out
}

// CanHandle claims the static set exactly, plus any tagged model name
// ("name:tag"), since locally pulled models are not known ahead of time.
func (o *Ollama) CanHandle(model string) bool {
	if o.models[model] {
		return true
	}
	return strings.Contains(model, ":")
}

type ollamaChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type ollamaChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

func (o *Ollama) StreamCompletion(ctx context.Context, messages []Message, model string, onToken TokenSink) (int, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, readProviderError(o.Name(), resp)
	}

	reader := bufio.NewReader(resp.Body)
	tokens := 0

	for {
		select {
		case <-ctx.Done():
			return tokens, ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				if len(bytes.TrimSpace(line)) == 0 {
					return tokens, nil
				}
				// Final line without trailing newline.
			} else {
				return tokens, fmt.Errorf("ollama stream read failed: %w", err)
			}
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		var chunk ollamaChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return tokens, &ProviderError{Provider: o.Name(), Message: fmt.Sprintf("malformed stream chunk: %v", err)}
		}

		if chunk.Error != "" {
			return tokens, &ProviderError{Provider: o.Name(), Message: chunk.Error}
		}

		if chunk.Message.Content != "" {
			onToken(chunk.Message.Content)
			tokens++
		}

		if chunk.Done {
			return tokens, nil
		}
	}
}
