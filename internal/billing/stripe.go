// Package billing integrates the Stripe payment gateway: checkout
// session creation for subscriptions and the webhook that maps gateway
// events onto a user's subscription status.
package billing

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"github.com/stripe/stripe-go/v72/webhook"
	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/internal/models"
)

// Store is the user persistence surface billing writes through.
type Store interface {
	GetUserByID(id int64) (*models.User, error)
	GetUserByStripeCustomer(customerID string) (*models.User, error)
	SetStripeCustomer(userID int64, customerID string) error
	SetSubscription(userID int64, status string) error
}

type Service struct {
	client        *client.API
	store         Store
	logger        *zap.Logger
	webhookSecret string
	priceID       string
	successURL    string
	cancelURL     string
}

func NewService(apiKey, webhookSecret, priceID, successURL, cancelURL string, store Store, logger *zap.Logger) (*Service, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("stripe API key is required")
	}

	sc := &client.API{}
	sc.Init(apiKey, nil)

	return &Service{
		client:        sc,
		store:         store,
		logger:        logger,
		webhookSecret: webhookSecret,
		priceID:       priceID,
		successURL:    successURL,
		cancelURL:     cancelURL,
	}, nil
}

// CreateCheckoutSession creates a subscription checkout session for the
// user, creating the Stripe customer on first use, and returns the
// hosted checkout URL.
func (s *Service) CreateCheckoutSession(userID int64) (string, error) {
	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return "", fmt.Errorf("failed to load user: %w", err)
	}

	customerID := user.StripeCustomerID
	if customerID == "" {
		customer, err := s.client.Customers.New(&stripe.CustomerParams{
			Email: stripe.String(user.Email),
		})
		if err != nil {
			return "", fmt.Errorf("failed to create stripe customer: %w", err)
		}
		customerID = customer.ID
		if err := s.store.SetStripeCustomer(userID, customerID); err != nil {
			return "", fmt.Errorf("failed to save stripe customer id: %w", err)
		}
	}

	params := &stripe.CheckoutSessionParams{
		Customer:   stripe.String(customerID),
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(s.successURL),
		CancelURL:  stripe.String(s.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.priceID),
				Quantity: stripe.Int64(1),
			},
		},
	}

	sess, err := s.client.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	return sess.URL, nil
}

// StatusForEvent maps a gateway event type to the subscription status it
// implies, or "" when the event does not affect subscription state.
func StatusForEvent(eventType string) string {
	switch eventType {
	case "checkout.session.completed":
		return models.SubscriptionActive
	case "invoice.payment_succeeded":
		return models.SubscriptionActive
	case "invoice.payment_failed":
		return models.SubscriptionPastDue
	case "customer.subscription.deleted":
		return models.SubscriptionCanceled
	}
	return ""
}

// HandleWebhook verifies a webhook payload and applies the subscription
// status change it implies. Unrecognized events are acknowledged without
// effect.
func (s *Service) HandleWebhook(payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return fmt.Errorf("webhook signature verification failed: %w", err)
	}

	status := StatusForEvent(string(event.Type))
	if status == "" {
		s.logger.Debug("ignoring webhook event", zap.String("type", string(event.Type)))
		return nil
	}

	customerID, err := customerFromEvent(event)
	if err != nil {
		return err
	}

	user, err := s.store.GetUserByStripeCustomer(customerID)
	if err != nil {
		return fmt.Errorf("no user for stripe customer %s: %w", customerID, err)
	}

	if err := s.store.SetSubscription(user.ID, status); err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	s.logger.Info("subscription status updated",
		zap.Int64("user_id", user.ID),
		zap.String("status", status),
		zap.String("event", string(event.Type)))
	return nil
}

// customerFromEvent extracts the customer identifier common to the
// checkout, invoice and subscription event payloads.
func customerFromEvent(event stripe.Event) (string, error) {
	var payload struct {
		Customer string `json:"customer"`
	}
	if err := json.Unmarshal(event.Data.Raw, &payload); err != nil {
		return "", fmt.Errorf("failed to parse webhook payload: %w", err)
	}
	if payload.Customer == "" {
		return "", fmt.Errorf("webhook event %s carries no customer", event.Type)
	}
	return payload.Customer, nil
}
