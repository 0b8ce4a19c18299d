package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/internal/auth"
	"github.com/colloquy-ai/colloquy/internal/db"
	"github.com/colloquy-ai/colloquy/internal/llm"
	"github.com/colloquy-ai/colloquy/internal/models"
	"github.com/colloquy-ai/colloquy/internal/ratelimit"
	"github.com/colloquy-ai/colloquy/internal/usage"
)

// Billing is the payment surface the handlers call into; nil disables
// the billing endpoints.
type Billing interface {
	CreateCheckoutSession(userID int64) (string, error)
	HandleWebhook(payload []byte, signature string) error
}

type Handler struct {
	db      *db.Database
	llm     *llm.Service
	titler  *llm.Titler
	auth    *auth.Service
	usage   *usage.Recorder
	billing Billing
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

func NewHandler(database *db.Database, llmService *llm.Service, titler *llm.Titler,
	authService *auth.Service, recorder *usage.Recorder, billing Billing,
	limiter *ratelimit.Limiter, logger *zap.Logger) *Handler {
	return &Handler{
		db:      database,
		llm:     llmService,
		titler:  titler,
		auth:    authService,
		usage:   recorder,
		billing: billing,
		limiter: limiter,
		logger:  logger,
	}
}

// requestUserID returns the authenticated user id, or the anonymous
// sentinel for unauthenticated requests.
func requestUserID(r *http.Request) int64 {
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
		return claims.UserID
	}
	return models.AnonymousUserID
}

type CreateConversationRequest struct {
	Title string `json:"title"`
}

type UpdateConversationRequest struct {
	Title string `json:"title"`
}

// Conversations handles listing (GET) and creation (POST).
func (h *Handler) Conversations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		conversations, err := h.db.GetConversations(requestUserID(r))
		if err != nil {
			h.logger.Error("Failed to get conversations", zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(conversations); err != nil {
			h.logger.Error("Failed to encode conversations", zap.Error(err))
		}

	case http.MethodPost:
		var req CreateConversationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Title == "" {
			req.Title = "New conversation"
		}

		conversation, err := h.db.CreateConversation(requestUserID(r), req.Title)
		if err != nil {
			h.logger.Error("Failed to create conversation", zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(conversation)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	convID, err := strconv.ParseInt(r.URL.Query().Get("conversation_id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	if !h.ownsConversation(w, r, convID) {
		return
	}

	messages, err := h.db.GetConversationHistory(convID, 50)
	if err != nil {
		h.logger.Error("Failed to get messages", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messages)
}

func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	convID, err := strconv.ParseInt(r.URL.Query().Get("conversation_id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	if !h.ownsConversation(w, r, convID) {
		return
	}

	if err := h.db.DeleteConversation(convID); err != nil {
		h.logger.Error("Failed to delete conversation", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) UpdateConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	convID, err := strconv.ParseInt(r.URL.Query().Get("conversation_id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	var req UpdateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if !h.ownsConversation(w, r, convID) {
		return
	}

	if err := h.db.UpdateConversationTitle(convID, req.Title); err != nil {
		h.logger.Error("Failed to update conversation", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// ownsConversation verifies the conversation exists and belongs to the
// requesting user, writing the error response itself when it does not.
func (h *Handler) ownsConversation(w http.ResponseWriter, r *http.Request, convID int64) bool {
	conv, err := h.db.GetConversation(convID)
	if err != nil {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return false
	}
	if conv.UserID != requestUserID(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return false
	}
	return true
}

// ListModels returns every model identifier the registered providers
// claim exactly.
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]string{"models": h.llm.Models()})
}

// UsageResponse pairs the per-record summary with the running counter,
// which is maintained independently by atomic increments.
type UsageResponse struct {
	usage.Summary
	Totals models.UserTotals `json:"totals"`
}

// GetUsage returns the authenticated user's per-model and grand totals.
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := requestUserID(r)
	summary, err := h.usage.Summarize(userID)
	if err != nil {
		h.logger.Error("Failed to summarize usage", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	totals, err := h.db.UserTotals(userID)
	if err != nil {
		h.logger.Error("Failed to load user totals", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(UsageResponse{Summary: *summary, Totals: *totals})
}
