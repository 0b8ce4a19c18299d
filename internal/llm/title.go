package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const titlePrompt = `Summarize the following chat message into a short
conversation title of at most six words. Respond with only the title,
no quotes and no trailing punctuation.

Message: %s

Title:`

// Titler generates short conversation titles from the first user message.
type Titler struct {
	llm llms.LLM
}

func NewTitler(baseURL, token, model string) (*Titler, error) {
	llm, err := openai.New(
		openai.WithToken(token),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, err
	}
	return &Titler{llm: llm}, nil
}

// GenerateTitle produces a title for a conversation whose first user
// message is content. Falls back to a truncation of the message when the
// model call fails, so conversation creation never depends on the
// upstream being reachable.
func (t *Titler) GenerateTitle(ctx context.Context, content string) string {
	completion, err := llms.GenerateFromSinglePrompt(ctx, t.llm, fmt.Sprintf(titlePrompt, content))
	if err != nil {
		return truncateTitle(content)
	}

	title := strings.TrimSpace(completion)
	title = strings.Trim(title, `"`)
	if title == "" {
		return truncateTitle(content)
	}
	return truncateTitle(title)
}

func truncateTitle(s string) string {
	const maxLen = 60
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
