package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"appointment-chatbot-api/internal/chatbot"
	"appointment-chatbot-api/internal/middleware"
	"appointment-chatbot-api/internal/store"
)

type Handler struct {
	users        store.UserStore
	appointments store.AppointmentStore
	chat         *chatbot.Service
	secret       string
	accessTTL    time.Duration
	limiter      *middleware.RateLimiter
}

func New(users store.UserStore, appointments store.AppointmentStore, chat *chatbot.Service, secret string, accessTTL time.Duration, limiter *middleware.RateLimiter) *Handler {
	return &Handler{
		users:        users,
		appointments: appointments,
		chat:         chat,
		secret:       secret,
		accessTTL:    accessTTL,
		limiter:      limiter,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", h.handleHealth)

	// credential endpoints, rate limited per IP
	r.Group(func(r chi.Router) {
		if h.limiter != nil {
			r.Use(h.limiter.Limit)
		}
		r.Post("/api/auth/register", h.handleRegister)
		r.Post("/api/auth/login", h.handleLogin)
	})

	// the session token is the credential here, not the bearer token
	r.Post("/api/chatbot/message", h.handleChatMessage)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.secret))
		r.Get("/api/auth/me", h.handleMe)

		r.Route("/api/appointments", func(r chi.Router) {
			r.Get("/", h.handleListAppointments)
			r.Post("/", h.handleCreateAppointment)
			r.Get("/stats", h.handleAppointmentStats)
			r.Get("/{id}", h.handleGetAppointment)
			r.Put("/{id}", h.handleUpdateAppointment)
			r.Delete("/{id}", h.handleDeleteAppointment)
		})

		r.Post("/api/chatbot/token", h.handleChatToken)
		r.Get("/api/chatbot/history/{sessionToken}", h.handleChatHistory)
		r.Post("/api/chatbot/end-session", h.handleChatEnd)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"service":   "appointment-chatbot-api",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("http: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: responseError{Code: code, Message: message}})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}
