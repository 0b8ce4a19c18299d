// Package usage converts raw streamed token counts into monetary figures
// and records them against the owning user.
//
// Streamed-output token counts are the number of stream fragments
// observed, not an exact tokenizer count. Billing elsewhere depends on
// this approximation; do not replace it with a real tokenizer.
package usage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/internal/models"
)

const (
	// StatusCompleted marks a usage record for a fully drained stream.
	StatusCompleted = "completed"

	// promptSampleLimit bounds the stored prompt excerpt.
	promptSampleLimit = 200
)

// Store is the persistence surface the recorder writes through. The
// counter increment must be atomic at the store level (a single
// conditional update, not read-modify-write).
type Store interface {
	InsertUsageRecord(rec *models.UsageRecord) error
	AddUserTotals(userID int64, tokens int64, cost float64) error
	UsageRecordsForUser(userID int64) ([]models.UsageRecord, error)
}

// Recorder persists usage records and running per-user totals.
type Recorder struct {
	store   Store
	pricing map[string]float64
	enc     *tiktoken.Tiktoken
	logger  *zap.Logger
}

func NewRecorder(store Store, logger *zap.Logger) *Recorder {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logger.Warn("tiktoken encoding unavailable, using character heuristic for prompt estimates",
			zap.Error(err))
		enc = nil
	}
	return &Recorder{
		store:   store,
		pricing: defaultPricing,
		enc:     enc,
		logger:  logger,
	}
}

// EstimatePromptTokens estimates the token count of prompt text. Used
// only for the input-side field of a usage record; the billed output
// count always comes from the stream itself.
func (r *Recorder) EstimatePromptTokens(text string) int {
	if r.enc != nil {
		return len(r.enc.Encode(text, nil, nil))
	}
	// ~4 characters per token.
	return len(text) / 4
}

// RecordUsage computes the cost of one completed generation and persists
// a usage record plus an atomic increment of the user's running totals.
// Each call represents one real completion; calls are deliberately not
// idempotent.
func (r *Recorder) RecordUsage(userID int64, model string, tokensUsed int, promptSample string) (*models.UsageRecord, error) {
	cost, err := Cost(r.pricing, model, tokensUsed)
	if err != nil {
		return nil, fmt.Errorf("failed to price usage for model %s: %w", model, err)
	}

	promptTokens := r.EstimatePromptTokens(promptSample)
	if len(promptSample) > promptSampleLimit {
		promptSample = promptSample[:promptSampleLimit]
	}

	rec := &models.UsageRecord{
		ID:           uuid.NewString(),
		UserID:       userID,
		Model:        model,
		PromptTokens: promptTokens,
		TokensUsed:   tokensUsed,
		Cost:         cost,
		PromptSample: promptSample,
		Status:       StatusCompleted,
		CreatedAt:    time.Now(),
	}

	if err := r.store.InsertUsageRecord(rec); err != nil {
		return nil, fmt.Errorf("failed to insert usage record: %w", err)
	}
	if err := r.store.AddUserTotals(userID, int64(tokensUsed), cost); err != nil {
		return nil, fmt.Errorf("failed to increment user totals: %w", err)
	}

	return rec, nil
}

// ModelTotals aggregates usage for one model.
type ModelTotals struct {
	Model  string  `json:"model"`
	Tokens int64   `json:"tokens"`
	Cost   float64 `json:"cost"`
}

// Summary aggregates a user's usage records into per-model and grand
// totals.
type Summary struct {
	PerModel    []ModelTotals `json:"per_model"`
	TotalTokens int64         `json:"total_tokens"`
	TotalCost   float64       `json:"total_cost"`
}

// Summarize folds all of a user's usage records into a Summary. Models
// appear in first-seen order.
func (r *Recorder) Summarize(userID int64) (*Summary, error) {
	records, err := r.store.UsageRecordsForUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage records: %w", err)
	}

	byModel := make(map[string]*ModelTotals)
	var order []string
	summary := &Summary{}

	for _, rec := range records {
		mt, ok := byModel[rec.Model]
		if !ok {
			mt = &ModelTotals{Model: rec.Model}
			byModel[rec.Model] = mt
			order = append(order, rec.Model)
		}
		mt.Tokens += int64(rec.TokensUsed)
		mt.Cost += rec.Cost
		summary.TotalTokens += int64(rec.TokensUsed)
		summary.TotalCost += rec.Cost
	}

	summary.PerModel = make([]ModelTotals, 0, len(order))
	for _, model := range order {
		summary.PerModel = append(summary.PerModel, *byModel[model])
	}

	return summary, nil
}
