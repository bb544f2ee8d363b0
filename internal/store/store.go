package store

import (
	"context"
	"encoding/json"
	"errors"

	"appointment-chatbot-api/internal/model"
)

var (
	// ErrNotFound covers lookup misses and ownership mismatches alike, so
	// callers cannot distinguish "absent" from "someone else's".
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

type AppointmentFilter struct {
	Status string
	Limit  int
	Offset int
}

type AppointmentStats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	UserByID(ctx context.Context, id string) (*model.User, error)
}

type AppointmentStore interface {
	CreateAppointment(ctx context.Context, a *model.Appointment) error
	GetAppointment(ctx context.Context, ownerID, id string) (*model.Appointment, error)
	ListAppointments(ctx context.Context, ownerID string, f AppointmentFilter) ([]model.Appointment, error)
	UpdateAppointment(ctx context.Context, a *model.Appointment) error
	DeleteAppointment(ctx context.Context, ownerID, id string) error
	AppointmentStats(ctx context.Context, ownerID string) (AppointmentStats, error)
}

type ChatStore interface {
	CreateSession(ctx context.Context, s *model.ChatSession) error
	SessionByToken(ctx context.Context, token string) (*model.ChatSession, error)
	// UpdateSessionStatus applies active -> completed/expired. Zero rows
	// touched reports ErrNotFound.
	UpdateSessionStatus(ctx context.Context, sessionID, from, to string) error
	CompleteSession(ctx context.Context, token, ownerID string) error
	InsertMessage(ctx context.Context, sessionID, role, content string, metadata json.RawMessage) (*model.ChatMessage, error)
	Messages(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
}

type Store interface {
	UserStore
	AppointmentStore
	ChatStore
}
