// Package provider wraps the upstream model backends behind one adapter
// contract and dispatches completion requests to them by model name.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoProvider is returned when no registered adapter claims a model.
var ErrNoProvider = errors.New("no provider for model")

// Message is a single role/content pair sent to an upstream backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenSink receives each incremental text fragment in stream order.
type TokenSink func(token string)

// Adapter wraps one upstream backend's request and streaming wire format.
//
// StreamCompletion translates messages into the backend's expected shape,
// issues a streaming request, and invokes onToken synchronously once per
// text fragment received. The returned count is the number of fragments
// observed, an approximation of token count rather than an exact
// tokenizer count. No retries are attempted and nothing is persisted.
type Adapter interface {
	Name() string

	// Models returns the adapter's static set of exactly-claimed model
	// identifiers. Adapters with pattern-based claims may return a subset
	// of what CanHandle accepts.
	Models() []string

	// CanHandle reports whether the adapter can serve the model. Pure and
	// safe for unsynchronized concurrent use.
	CanHandle(model string) bool

	StreamCompletion(ctx context.Context, messages []Message, model string, onToken TokenSink) (int, error)
}

// ProviderError describes a failed upstream call.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: upstream returned HTTP %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}
