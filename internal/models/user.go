package models

import "time"

// Subscription status values, mapped from payment gateway events.
const (
	SubscriptionNone     = "none"
	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
	SubscriptionPastDue  = "past_due"
)

type User struct {
	ID               int64     `json:"id"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"`
	StripeCustomerID string    `json:"-"`
	Subscription     string    `json:"subscription"`
	CreatedAt        time.Time `json:"created_at"`
}

// HasSubscription reports whether the user currently has paid access.
func (u *User) HasSubscription() bool {
	return u.Subscription == SubscriptionActive
}

// UsageRecord is the persisted accounting entry for one completed
// streamed generation. Records are written once and never mutated.
type UsageRecord struct {
	ID           string    `json:"id"`
	UserID       int64     `json:"user_id"`
	Model        string    `json:"model"`
	PromptTokens int       `json:"prompt_tokens"`
	TokensUsed   int       `json:"tokens_used"`
	Cost         float64   `json:"cost"`
	PromptSample string    `json:"prompt_sample,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserTotals is the running per-user accounting counter, incremented
// atomically once per recorded usage.
type UserTotals struct {
	UserID      int64   `json:"user_id"`
	TotalTokens int64   `json:"total_tokens"`
	TotalCost   float64 `json:"total_cost"`
}
