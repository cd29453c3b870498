package handlers

import (
	"encoding/json"
	"errors"
	"huddle/internal/core/domain"
	"huddle/internal/core/services"
	"huddle/internal/platform/logger"
	"huddle/pkg/middleware"
	"net/http"

	"github.com/google/uuid"
)

type ChannelHandler struct {
	channels *services.ChannelService
}

func NewChannelHandler(channels *services.ChannelService) *ChannelHandler {
	return &ChannelHandler{channels: channels}
}

func (h *ChannelHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	userID, ok := r.Context().Value(middleware.UserIDKey).(uuid.UUID)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	workspaceID, err := uuid.Parse(r.PathValue("workspace_id"))
	if err != nil {
		http.Error(w, "invalid workspace id", http.StatusBadRequest)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	ch, err := h.channels.CreateChannel(r.Context(), workspaceID, userID, req.Name)
	if err != nil {
		log.ErrorContext(r.Context(), "channel handler - create failed", "workspace_id", workspaceID, "err", err)
		http.Error(w, "failed to create channel", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"id":           ch.ID,
		"workspace_id": ch.WorkspaceID,
		"name":         ch.Name,
		"created_at":   ch.CreatedAt,
	})
}

func (h *ChannelHandler) Join(w http.ResponseWriter, r *http.Request) {
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
	if err := h.channels.Join(r.Context(), channelID, userID); err != nil {
		if errors.Is(err, domain.ErrChannelNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		log.ErrorContext(r.Context(), "channel handler - join failed", "channel_id", channelID, "user_id", userID, "err", err)
		http.Error(w, "failed to join channel", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChannelHandler) Get(w http.ResponseWriter, r *http.Request) {
	channelID, err := uuid.Parse(r.PathValue("channel_id"))
	if err != nil {
		http.Error(w, "invalid channel id", http.StatusBadRequest)
		return
	}
	ch, err := h.channels.GetChannel(r.Context(), channelID)
	if err != nil {
		if errors.Is(err, domain.ErrChannelNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load channel", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"id":           ch.ID,
		"workspace_id": ch.WorkspaceID,
		"name":         ch.Name,
		"created_at":   ch.CreatedAt,
	})
}
