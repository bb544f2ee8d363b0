package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"appointment-chatbot-api/internal/middleware"
	"appointment-chatbot-api/internal/model"
	"appointment-chatbot-api/internal/store"
)

type appointmentRequest struct {
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          string     `json:"status"`
	Type            string     `json:"appointment_type"`
	Location        string     `json:"location"`
	Notes           string     `json:"notes"`
}

func (req *appointmentRequest) validate(forUpdate bool) (code, message string) {
	if req.Title == "" {
		return "invalid_request", "title is required"
	}
	if req.ScheduledAt == nil {
		return "invalid_request", "scheduled_at is required"
	}
	if req.DurationMinutes == 0 {
		req.DurationMinutes = 60
	}
	if !model.ValidDuration(req.DurationMinutes) {
		return "invalid_request", "duration_minutes must be between 15 and 480"
	}
	if req.Type == "" {
		req.Type = model.TypeGeneral
	}
	if !model.ValidAppointmentType(req.Type) {
		return "invalid_request", "unknown appointment_type"
	}
	if req.Status == "" {
		if forUpdate {
			return "invalid_request", "status is required"
		}
		req.Status = model.StatusPending
	}
	if !model.ValidAppointmentStatus(req.Status) {
		return "invalid_request", "unknown status"
	}
	return "", ""
}

func (h *Handler) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req appointmentRequest
	if !decode(w, r, &req) {
		return
	}
	// status is always pending on create
	req.Status = ""
	if code, message := req.validate(false); code != "" {
		writeError(w, http.StatusBadRequest, code, message)
		return
	}

	a := &model.Appointment{
		ID:              uuid.New().String(),
		UserID:          middleware.UserID(r.Context()),
		Title:           req.Title,
		Description:     req.Description,
		ScheduledAt:     *req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		Status:          req.Status,
		Type:            req.Type,
		Location:        req.Location,
		Notes:           req.Notes,
	}
	if err := h.appointments.CreateAppointment(r.Context(), a); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	f := store.AppointmentFilter{
		Status: r.URL.Query().Get("status"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	if f.Status != "" && !model.ValidAppointmentStatus(f.Status) {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown status filter")
		return
	}
	if f.Limit > 100 {
		f.Limit = 100
	}

	apts, err := h.appointments.ListAppointments(r.Context(), middleware.UserID(r.Context()), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	if apts == nil {
		apts = []model.Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": apts})
}

func (h *Handler) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	a, err := h.appointments.GetAppointment(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "appointment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleUpdateAppointment(w http.ResponseWriter, r *http.Request) {
	var req appointmentRequest
	if !decode(w, r, &req) {
		return
	}
	if code, message := req.validate(true); code != "" {
		writeError(w, http.StatusBadRequest, code, message)
		return
	}

	a := &model.Appointment{
		ID:              chi.URLParam(r, "id"),
		UserID:          middleware.UserID(r.Context()),
		Title:           req.Title,
		Description:     req.Description,
		ScheduledAt:     *req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		Status:          req.Status,
		Type:            req.Type,
		Location:        req.Location,
		Notes:           req.Notes,
	}
	if err := h.appointments.UpdateAppointment(r.Context(), a); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "appointment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleDeleteAppointment(w http.ResponseWriter, r *http.Request) {
	err := h.appointments.DeleteAppointment(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "appointment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "appointment deleted"})
}

func (h *Handler) handleAppointmentStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.appointments.AppointmentStats(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
