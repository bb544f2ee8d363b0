package model

import (
	"encoding/json"
	"time"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Phone        string    `json:"phone,omitempty"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Appointment statuses. Owners may set any of these directly; there is no
// enforced transition order between them.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

const (
	TypeGeneral      = "general"
	TypeMedical      = "medical"
	TypeConsultation = "consultation"
	TypeFollowUp     = "follow-up"
)

const (
	MinDurationMinutes = 15
	MaxDurationMinutes = 480
)

type Appointment struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	Type            string    `json:"appointment_type"`
	Location        string    `json:"location,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func ValidAppointmentStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

func ValidAppointmentType(t string) bool {
	switch t {
	case TypeGeneral, TypeMedical, TypeConsultation, TypeFollowUp:
		return true
	}
	return false
}

func ValidDuration(minutes int) bool {
	return minutes >= MinDurationMinutes && minutes <= MaxDurationMinutes
}

// Chat session lifecycle: active -> completed (explicit end) or
// active -> expired (TTL passed, detected lazily on access). Both terminal.
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
	SessionExpired   = "expired"
)

var sessionTransitions = map[string][]string{
	SessionCompleted: {SessionActive},
	SessionExpired:   {SessionActive},
}

func ValidSessionTransition(from, to string) bool {
	for _, allowed := range sessionTransitions[to] {
		if allowed == from {
			return true
		}
	}
	return false
}

type ChatSession struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	SessionToken  string    `json:"session_token"`
	Status        string    `json:"status"`
	AppointmentID *string   `json:"appointment_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

func (s *ChatSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

const (
	MsgRoleUser   = "user"
	MsgRoleBot    = "bot"
	MsgRoleSystem = "system"
)

// ChatMessage is immutable once stored. Metadata is whatever the NLU
// collaborator returned, kept verbatim; this service never interprets it.
type ChatMessage struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
