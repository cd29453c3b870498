package handlers

import (
	"encoding/json"
	"errors"
	"huddle/internal/core/contracts"
	"huddle/internal/core/domain"
	"huddle/internal/core/services"
	"huddle/internal/platform/logger"
	"huddle/pkg/middleware"
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

// MessageHandler is the REST side of message creation. It persists through
// the same MessageService as the WebSocket path and pushes the resulting
// new_message event through the same dispatcher, so REST-originated
// mutations reach live subscribers identically.
type MessageHandler struct {
	messages   *services.MessageService
	dispatcher contracts.Broadcaster
	presence   contracts.PresenceStore
}

func NewMessageHandler(messages *services.MessageService, dispatcher contracts.Broadcaster, presence contracts.PresenceStore) *MessageHandler {
	return &MessageHandler{
		messages:   messages,
		dispatcher: dispatcher,
		presence:   presence,
	}
}

func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	userID, ok := r.Context().Value(middleware.UserIDKey).(uuid.UUID)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	channelID, err := uuid.Parse(r.PathValue("channel_id"))
	if err != nil {
		http.Error(w, "invalid channel id", http.StatusBadRequest)
		return
	}
	var req struct {
		Content string `json:"content"`
		ReplyTo string `json:"reply_to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	var replyTo *uuid.UUID
	if req.ReplyTo != "" {
		id, err := uuid.Parse(req.ReplyTo)
		if err != nil {
			http.Error(w, "invalid reply_to", http.StatusBadRequest)
			return
		}
		replyTo = &id
	}
	msg, sender, err := h.messages.CreateMessage(r.Context(), channelID, userID, req.Content, replyTo)
	if err != nil {
		if errors.Is(err, domain.ErrNotChannelMember) {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		log.ErrorContext(r.Context(), "message handler - create failed", "channel_id", channelID, "user_id", userID, "err", err)
		http.Error(w, "failed to create message", http.StatusInternalServerError)
		return
	}
	h.dispatcher.Broadcast(r.Context(), channelID, domain.NewMessageEvent(msg, sender))

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"id":         msg.ID,
		"channel_id": msg.ChannelID,
		"user_id":    msg.UserID,
		"content":    msg.Content,
		"created_at": msg.CreatedAt,
	})
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	userID, ok := r.Context().Value(middleware.UserIDKey).(uuid.UUID)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	channelID, err := uuid.Parse(r.PathValue("channel_id"))
	if err != nil {
		http.Error(w, "invalid channel id", http.StatusBadRequest)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	msgs, err := h.messages.ChannelHistory(r.Context(), channelID, userID, limit)
	if err != nil {
		if errors.Is(err, domain.ErrNotChannelMember) {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		log.ErrorContext(r.Context(), "message handler - list failed", "channel_id", channelID, "err", err)
		http.Error(w, "failed to list messages", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"messages": msgs})
}

// Presence reports a user's current TTL-based status.
func (h *MessageHandler) Presence(w http.ResponseWriter, r *http.Request) {
	targetID, err := uuid.Parse(r.PathValue("user_id"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	status, err := h.presence.GetStatus(r.Context(), targetID.String())
	if err != nil {
		http.Error(w, "failed to read presence", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{
		"user_id": targetID.String(),
		"status":  status,
	})
}
