package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/internal/models"
	"github.com/colloquy-ai/colloquy/internal/provider"
)

type ChatStreamRequest struct {
	ConversationID int64  `json:"conversation_id,omitempty"`
	Model          string `json:"model"`
	Content        string `json:"content"`
}

type tokenEvent struct {
	Token string `json:"token"`
}

type doneEvent struct {
	Tokens         int   `json:"tokens"`
	ConversationID int64 `json:"conversation_id"`
}

type errorEvent struct {
	Error string `json:"error"`
}

// ChatStream streams a completion over Server-Sent Events.
//
// Failures before the first upstream token surface as plain HTTP errors.
// Once the first token has been written the response framing is
// committed, so later failures are signaled in-band as an "error" event
// on the same stream. A fully drained stream ends with a "done" event
// carrying the token count.
func (h *Handler) ChatStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ChatStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Content == "" || req.Model == "" {
		http.Error(w, "model and content are required", http.StatusBadRequest)
		return
	}

	userID := requestUserID(r)

	// Anonymous chat is coarsely throttled per client IP.
	if userID == models.AnonymousUserID {
		if !h.limiter.Allow(clientIP(r)) {
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
	}

	// Fail fast on unsupported models before touching the conversation.
	if _, err := h.llm.ResolveProvider(req.Model); err != nil {
		if errors.Is(err, provider.ErrNoProvider) {
			http.Error(w, "Unsupported model", http.StatusBadRequest)
			return
		}
		h.logger.Error("Failed to resolve provider", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	convID := req.ConversationID
	if convID == 0 {
		title := h.titler.GenerateTitle(r.Context(), req.Content)
		conv, err := h.db.CreateConversation(userID, title)
		if err != nil {
			h.logger.Error("Failed to create conversation", zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		convID = conv.ID
	} else if !h.ownsConversation(w, r, convID) {
		return
	}

	userMsg := &models.Message{
		ConvID:  convID,
		Role:    models.RoleUser,
		Content: req.Content,
	}
	if err := h.db.SaveMessage(userMsg); err != nil {
		h.logger.Error("Failed to save user message", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	history, err := h.db.GetConversationHistory(convID, 50)
	if err != nil {
		h.logger.Error("Failed to load history", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	started := false
	sink := func(token string) {
		if !started {
			started = true
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.WriteHeader(http.StatusOK)
		}
		writeSSE(w, "", tokenEvent{Token: token})
		flusher.Flush()
	}

	tokens, err := h.llm.StreamChatCompletion(r.Context(), convID, userID, req.Model, history, sink)
	if err != nil {
		if !started {
			// Nothing committed yet; report as an ordinary failure.
			http.Error(w, "Completion failed: "+err.Error(), http.StatusBadGateway)
			return
		}
		writeSSE(w, "error", errorEvent{Error: err.Error()})
		flusher.Flush()
		return
	}

	if !started {
		// Empty stream; still report completion as a normal SSE response.
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
	}
	writeSSE(w, "done", doneEvent{Tokens: tokens, ConversationID: convID})
	flusher.Flush()
}

// writeSSE writes one event. An empty eventType writes a plain data
// event.
func writeSSE(w http.ResponseWriter, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if eventType != "" {
		w.Write([]byte("event: " + eventType + "\n"))
	}
	w.Write([]byte("data: "))
	w.Write(data)
	w.Write([]byte("\n\n"))
}

// clientIP extracts the originating client address, trusting the first
// X-Forwarded-For entry when present.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
