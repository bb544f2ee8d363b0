package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"appointment-chatbot-api/internal/chatbot"
	"appointment-chatbot-api/internal/middleware"
	"appointment-chatbot-api/internal/model"
)

const maxChatMessageLen = 2000

func (h *Handler) handleChatToken(w http.ResponseWriter, r *http.Request) {
	result, err := h.chat.Open(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type chatMessageRequest struct {
	Message      string `json:"message"`
	SessionToken string `json:"sessionToken"`
}

// handleChatMessage always answers 200 when the relay degrades; only
// session-state problems surface as errors.
func (h *Handler) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	var req chatMessageRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Message == "" || len(req.Message) > maxChatMessageLen {
		writeError(w, http.StatusBadRequest, "invalid_request", "message must be 1 to 2000 characters")
		return
	}
	if req.SessionToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "sessionToken is required")
		return
	}

	reply, err := h.chat.Send(r.Context(), req.SessionToken, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, chatbot.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, "not_found", "session not found")
		case errors.Is(err, chatbot.ErrSessionNotActive):
			writeError(w, http.StatusBadRequest, "session_inactive", "session is no longer active")
		case errors.Is(err, chatbot.ErrSessionExpired):
			writeError(w, http.StatusBadRequest, "session_expired", "session has expired")
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		}
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (h *Handler) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chat.History(r.Context(), chi.URLParam(r, "sessionToken"), middleware.UserID(r.Context()))
	if err != nil {
		if errors.Is(err, chatbot.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	if messages == nil {
		messages = []model.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

type endSessionRequest struct {
	SessionToken string `json:"sessionToken"`
}

func (h *Handler) handleChatEnd(w http.ResponseWriter, r *http.Request) {
	var req endSessionRequest
	if !decode(w, r, &req) {
		return
	}
	if req.SessionToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "sessionToken is required")
		return
	}

	if err := h.chat.End(r.Context(), req.SessionToken, middleware.UserID(r.Context())); err != nil {
		if errors.Is(err, chatbot.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "session ended"})
}
