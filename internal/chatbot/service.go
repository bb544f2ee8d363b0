package chatbot

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"appointment-chatbot-api/internal/auth"
	"appointment-chatbot-api/internal/model"
	"appointment-chatbot-api/internal/store"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionNotActive = errors.New("session not active")
	ErrSessionExpired   = errors.New("session expired")
)

// apology is what the user sees when the collaborator is unreachable. The
// failure is recorded in message metadata only; the HTTP response stays 200.
const apology = "I'm sorry, I'm having trouble responding right now. Please try again in a moment."

var unavailableMetadata = json.RawMessage(`{"error":"service_unavailable"}`)

type Config struct {
	JWTSecret    string
	SessionTTL   time.Duration
	ChatTokenTTL time.Duration
	RelayTimeout time.Duration
}

// Service owns the chat session lifecycle: open, relay, end, transcript.
type Service struct {
	chats store.ChatStore
	users store.UserStore
	nlu   Collaborator
	cfg   Config
}

func New(chats store.ChatStore, users store.UserStore, nlu Collaborator, cfg Config) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	if cfg.ChatTokenTTL <= 0 {
		cfg.ChatTokenTTL = time.Hour
	}
	if cfg.RelayTimeout <= 0 {
		cfg.RelayTimeout = 30 * time.Second
	}
	return &Service{chats: chats, users: users, nlu: nlu, cfg: cfg}
}

// OpenResult keeps the camelCase wire shape the chat frontend and the NLU
// collaborator already speak.
type OpenResult struct {
	SessionToken string    `json:"sessionToken"`
	ChatbotToken string    `json:"chatbotToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Open creates a fresh session. Each call makes a new row; a user may hold
// any number of concurrently active sessions.
func (s *Service) Open(ctx context.Context, userID string) (*OpenResult, error) {
	session := &model.ChatSession{
		ID:           uuid.New().String(),
		UserID:       userID,
		SessionToken: uuid.New().String(),
		Status:       model.SessionActive,
		ExpiresAt:    time.Now().Add(s.cfg.SessionTTL),
	}
	if err := s.chats.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	chatToken, err := auth.MakeChatToken(userID, session.ID, s.cfg.JWTSecret, s.cfg.ChatTokenTTL)
	if err != nil {
		return nil, err
	}

	return &OpenResult{
		SessionToken: session.SessionToken,
		ChatbotToken: chatToken,
		ExpiresAt:    session.ExpiresAt,
	}, nil
}

type Reply struct {
	Message      string          `json:"message"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	SessionToken string          `json:"sessionToken"`
}

// Send persists the user message, relays it to the collaborator, and
// persists the reply. Relay failures degrade to a canned reply rather than
// surfacing an error: the transcript records the failure, the caller does
// not see one.
func (s *Service) Send(ctx context.Context, sessionToken, message string) (*Reply, error) {
	session, err := s.chats.SessionByToken(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if session.Status != model.SessionActive {
		return nil, ErrSessionNotActive
	}
	if session.Expired(time.Now()) {
		// Persist the transition so storage agrees with what callers see.
		// A concurrent send may have already flipped it; that is fine.
		if err := s.chats.UpdateSessionStatus(ctx, session.ID, model.SessionActive, model.SessionExpired); err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Printf("chat: expire session %s: %v", session.ID, err)
		}
		return nil, ErrSessionExpired
	}

	// The user message is stored before the relay, whatever happens next.
	if _, err := s.chats.InsertMessage(ctx, session.ID, model.MsgRoleUser, message, nil); err != nil {
		return nil, err
	}

	reply := s.relay(ctx, session, message)
	bot, err := s.chats.InsertMessage(ctx, session.ID, model.MsgRoleBot, reply.Message, reply.Metadata)
	if err != nil {
		return nil, err
	}

	return &Reply{
		Message:      bot.Content,
		Metadata:     bot.Metadata,
		SessionToken: session.SessionToken,
	}, nil
}

func (s *Service) relay(ctx context.Context, session *model.ChatSession, message string) *ChatReply {
	req := ChatRequest{
		Message:   message,
		SessionID: session.ID,
		UserID:    session.UserID,
	}
	if user, err := s.users.UserByID(ctx, session.UserID); err == nil {
		req.UserInfo = UserInfo{FirstName: user.FirstName, LastName: user.LastName, Email: user.Email}
	} else {
		log.Printf("chat: user lookup for relay: %v", err)
	}

	relayCtx, cancel := context.WithTimeout(ctx, s.cfg.RelayTimeout)
	defer cancel()

	reply, err := s.nlu.Chat(relayCtx, req)
	if err != nil {
		log.Printf("chat: relay failed for session %s: %v", session.ID, err)
		return &ChatReply{Message: apology, Metadata: unavailableMetadata}
	}
	return reply
}

// End moves an owned active session to completed. Unknown tokens, foreign
// sessions, and already-terminal sessions all report not found.
func (s *Service) End(ctx context.Context, sessionToken, userID string) error {
	if err := s.chats.CompleteSession(ctx, sessionToken, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}

// History returns the full ordered transcript for the owner. No pagination;
// transcripts are bounded in practice by the session TTL.
func (s *Service) History(ctx context.Context, sessionToken, userID string) ([]model.ChatMessage, error) {
	session, err := s.chats.SessionByToken(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return s.chats.Messages(ctx, session.ID)
}
