// Package llm orchestrates streamed chat completions: it resolves the
// provider for a model, relays tokens to the caller's sink as they
// arrive, and persists the result once the stream is fully drained.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/internal/models"
	"github.com/colloquy-ai/colloquy/internal/provider"
)

// Persister is the conversation persistence surface used by the pipeline.
type Persister interface {
	SaveMessage(msg *models.Message) error
}

// UsageRecorder records accounting for one completed generation.
type UsageRecorder interface {
	RecordUsage(userID int64, model string, tokensUsed int, promptSample string) (*models.UsageRecord, error)
}

type Service struct {
	registry *provider.Registry
	db       Persister
	usage    UsageRecorder
	logger   *zap.Logger
	timeout  time.Duration
}

func New(registry *provider.Registry, database Persister, usage UsageRecorder, logger *zap.Logger, timeout time.Duration) *Service {
	return &Service{
		registry: registry,
		db:       database,
		usage:    usage,
		logger:   logger,
		timeout:  timeout,
	}
}

// ResolveProvider returns the adapter serving model without starting a
// stream, so callers can reject unsupported models before committing
// response headers.
func (s *Service) ResolveProvider(model string) (provider.Adapter, error) {
	return s.registry.Resolve(model)
}

// Models returns the model identifiers claimed by registered providers.
func (s *Service) Models() []string {
	return s.registry.Models()
}

// StreamChatCompletion runs one end-to-end streamed completion.
//
// Tokens are forwarded to onToken in the exact order received upstream.
// The assistant message is persisted only after the stream is fully
// drained: if the stream errors mid-way, nothing is persisted and the
// caller keeps whatever was already flushed to the sink. Persistence and
// accounting failures after a complete stream are logged and surfaced,
// but the delivered stream is not unwound.
//
// Returns the number of stream fragments observed, an approximate token
// count.
func (s *Service) StreamChatCompletion(ctx context.Context, convID, userID int64, model string, history []models.Message, onToken provider.TokenSink) (int, error) {
	adapter, err := s.registry.Resolve(model)
	if err != nil {
		return 0, fmt.Errorf("unsupported model %q: %w", model, err)
	}

	messages := make([]provider.Message, 0, len(history))
	var promptSample string
	for _, msg := range history {
		messages = append(messages, provider.Message{Role: msg.Role, Content: msg.Content})
		if msg.Role == models.RoleUser {
			promptSample = msg.Content
		}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var accumulated strings.Builder
	tokens, err := adapter.StreamCompletion(ctx, messages, model, func(token string) {
		accumulated.WriteString(token)
		onToken(token)
	})
	if err != nil {
		s.logger.Error("streaming completion failed",
			zap.Error(err),
			zap.String("provider", adapter.Name()),
			zap.String("model", model),
			zap.Int64("conversation_id", convID),
			zap.Int("tokens_before_failure", tokens))
		return tokens, err
	}

	if accumulated.Len() == 0 {
		return tokens, nil
	}

	assistantMsg := &models.Message{
		ConvID:  convID,
		Role:    models.RoleAssistant,
		Content: accumulated.String(),
	}
	if err := s.db.SaveMessage(assistantMsg); err != nil {
		s.logger.Error("failed to persist assistant message",
			zap.Error(err),
			zap.Int64("conversation_id", convID))
		return tokens, fmt.Errorf("failed to save assistant message: %w", err)
	}

	if _, err := s.usage.RecordUsage(userID, model, tokens, promptSample); err != nil {
		// The user already received the text; accounting is best effort.
		s.logger.Error("failed to record usage",
			zap.Error(err),
			zap.Int64("user_id", userID),
			zap.String("model", model),
			zap.Int("tokens", tokens))
		return tokens, fmt.Errorf("failed to record usage: %w", err)
	}

	return tokens, nil
}
