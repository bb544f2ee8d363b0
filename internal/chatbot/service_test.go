package chatbot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"appointment-chatbot-api/internal/model"
	"appointment-chatbot-api/internal/store"
)

// memStore is an in-memory ChatStore + UserStore with the same semantics as
// the postgres implementation.
type memStore struct {
	sessions map[string]*model.ChatSession // keyed by session token
	messages []model.ChatMessage
	users    map[string]*model.User
	seq      int
}

func newMemStore() *memStore {
	return &memStore{
		sessions: map[string]*model.ChatSession{},
		users:    map[string]*model.User{},
	}
}

func (m *memStore) CreateSession(ctx context.Context, s *model.ChatSession) error {
	s.CreatedAt = time.Now()
	m.sessions[s.SessionToken] = s
	return nil
}

func (m *memStore) SessionByToken(ctx context.Context, token string) (*model.ChatSession, error) {
	s, ok := m.sessions[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	copy := *s
	return &copy, nil
}

func (m *memStore) UpdateSessionStatus(ctx context.Context, sessionID, from, to string) error {
	if !model.ValidSessionTransition(from, to) {
		return store.ErrNotFound
	}
	for _, s := range m.sessions {
		if s.ID == sessionID && s.Status == from {
			s.Status = to
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memStore) CompleteSession(ctx context.Context, token, ownerID string) error {
	s, ok := m.sessions[token]
	if !ok || s.UserID != ownerID || s.Status != model.SessionActive {
		return store.ErrNotFound
	}
	s.Status = model.SessionCompleted
	return nil
}

func (m *memStore) InsertMessage(ctx context.Context, sessionID, role, content string, metadata json.RawMessage) (*model.ChatMessage, error) {
	m.seq++
	msg := model.ChatMessage{
		ID:        fmt.Sprintf("msg-%d", m.seq),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now().Add(time.Duration(m.seq) * time.Millisecond),
	}
	m.messages = append(m.messages, msg)
	return &msg, nil
}

func (m *memStore) Messages(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	var out []model.ChatMessage
	for _, msg := range m.messages {
		if msg.SessionID == sessionID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memStore) CreateUser(ctx context.Context, u *model.User) error {
	m.users[u.ID] = u
	return nil
}

func (m *memStore) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) UserByID(ctx context.Context, id string) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

type fakeCollaborator struct {
	chatFn func(ctx context.Context, req ChatRequest) (*ChatReply, error)
	calls  int
}

func (f *fakeCollaborator) Chat(ctx context.Context, req ChatRequest) (*ChatReply, error) {
	f.calls++
	if f.chatFn == nil {
		return &ChatReply{Message: "hello"}, nil
	}
	return f.chatFn(ctx, req)
}

func newService(st *memStore, nlu Collaborator) *Service {
	return New(st, st, nlu, Config{JWTSecret: "test-secret"})
}

func seedUser(st *memStore) {
	st.users["user-1"] = &model.User{
		ID: "user-1", Email: "jane@example.com", FirstName: "Jane", LastName: "Doe",
	}
}

func TestOpenCreatesActiveSession(t *testing.T) {
	st := newMemStore()
	seedUser(st)
	svc := newService(st, &fakeCollaborator{})

	result, err := svc.Open(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if result.SessionToken == "" || result.ChatbotToken == "" {
		t.Fatal("expected both tokens")
	}
	if !result.ExpiresAt.After(time.Now()) {
		t.Error("expected future expiry")
	}

	session := st.sessions[result.SessionToken]
	if session == nil {
		t.Fatal("session not persisted")
	}
	if session.Status != model.SessionActive {
		t.Errorf("expected active, got %s", session.Status)
	}
}

func TestOpenAllowsConcurrentSessions(t *testing.T) {
	st := newMemStore()
	seedUser(st)
	svc := newService(st, &fakeCollaborator{})

	first, err := svc.Open(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	second, err := svc.Open(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	if first.SessionToken == second.SessionToken {
		t.Error("expected distinct session tokens")
	}
	if st.sessions[first.SessionToken].Status != model.SessionActive {
		t.Error("first session should stay active after second open")
	}
}

func TestSendRelaysAndPersists(t *testing.T) {
	st := newMemStore()
	seedUser(st)
	meta := json.RawMessage(`{"appointment_created":true,"appointment_id":7}`)
	nlu := &fakeCollaborator{chatFn: func(ctx context.Context, req ChatRequest) (*ChatReply, error) {
		if req.Message != "Book me a checkup tomorrow" {
			t.Errorf("unexpected relayed message %q", req.Message)
		}
		if req.UserInfo.FirstName != "Jane" || req.UserInfo.Email != "jane@example.com" {
			t.Errorf("expected user profile in relay, got %+v", req.UserInfo)
		}
		return &ChatReply{Message: "Booked for tomorrow at 10 AM.", Metadata: meta}, nil
	}}
	svc := newService(st, nlu)

	opened, _ := svc.Open(context.Background(), "user-1")
	reply, err := svc.Send(context.Background(), opened.SessionToken, "Book me a checkup tomorrow")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply.Message != "Booked for tomorrow at 10 AM." {
		t.Errorf("unexpected reply %q", reply.Message)
	}
	if string(reply.Metadata) != string(meta) {
		t.Errorf("metadata not passed through verbatim: %s", reply.Metadata)
	}
	if reply.SessionToken != opened.SessionToken {
		t.Errorf("reply should echo the session token")
	}

	if len(st.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(st.messages))
	}
	if st.messages[0].Role != model.MsgRoleUser || st.messages[1].Role != model.MsgRoleBot {
		t.Errorf("expected user then bot, got %s then %s", st.messages[0].Role, st.messages[1].Role)
	}
}

func TestSendDegradesOnRelayFailure(t *testing.T) {
	st := newMemStore()
	seedUser(st)
	nlu := &fakeCollaborator{chatFn: func(ctx context.Context, req ChatRequest) (*ChatReply, error) {
		return nil, errors.New("connection refused")
	}}
	svc := newService(st, nlu)

	opened, _ := svc.Open(context.Background(), "user-1")
	reply, err := svc.Send(context.Background(), opened.SessionToken, "Hello")
	if err != nil {
		t.Fatalf("relay failure must not surface: %v", err)
	}
	if reply.Message != apology {
		t.Errorf("expected apology, got %q", reply.Message)
	}

	var meta map[string]string
	if err := json.Unmarshal(reply.Metadata, &meta); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta["error"] != "service_unavailable" {
		t.Errorf("expected service_unavailable marker, got %v", meta)
	}

	// the user message must still be there, plus exactly one bot message
	if len(st.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(st.messages))
	}
	if st.messages[0].Role != model.MsgRoleUser {
		t.Error("user message must be persisted before the relay attempt")
	}
}

func TestSendUnknownToken(t *testing.T) {
	st := newMemStore()
	svc := newService(st, &fakeCollaborator{})

	_, err := svc.Send(context.Background(), "no-such-token", "Hello")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSendCompletedSession(t *testing.T) {
	st := newMemStore()
	seedUser(st)
	nlu := &fakeCollaborator{}
	svc := newService(st, nlu)

	opened, _ := svc.Open(context.Background(), "user-1")
	if err := svc.End(context.Background(), opened.SessionToken, "user-1"); err != nil {
		t.Fatalf("end: %v", err)
	}

	_, err := svc.Send(context.Background(), opened.SessionToken, "Hello again")
	if !errors.Is(err, ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive, got %v", err)
	}
	if nlu.calls != 0 {
		t.Error("relay must not be called for a terminal session")
	}
	if len(st.messages) != 0 {
		t.Error("no messages may be persisted for a terminal session")
	}
}

func TestSendExpiredSessionPersistsTransition(t *testing.T) {
	st := newMemStore()
	seedUser(st)
	nlu := &fakeCollaborator{}
	svc := newService(st, nlu)

	st.sessions["expired-token"] = &model.ChatSession{
		ID:           "session-old",
		UserID:       "user-1",
		SessionToken: "expired-token",
		Status:       model.SessionActive,
		ExpiresAt:    time.Now().Add(-time.Minute),
	}

	_, err := svc.Send(context.Background(), "expired-token", "Hello")
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if got := st.sessions["expired-token"].Status; got != model.SessionExpired {
		t.Errorf("expected stored status expired, got %s", got)
	}
	if nlu.calls != 0 {
		t.Error("relay must not be called for an expired session")
	}
	if len(st.messages) != 0 {
		t.Error("no messages may be persisted for an expired session")
	}
}

func TestEndOwnershipMismatch(t *testing.T) {
	st := newMemStore()
	seedUser(st)
	svc := newService(st, &fakeCollaborator{})

	opened, _ := svc.Open(context.Background(), "user-1")
	if err := svc.End(context.Background(), opened.SessionToken, "user-2"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for foreign session, got %v", err)
	}
	if st.sessions[opened.SessionToken].Status != model.SessionActive {
		t.Error("foreign end call must not mutate the session")
	}
}

func TestHistoryOrderAndOwnership(t *testing.T) {
	st := newMemStore()
	seedUser(st)
	svc := newService(st, &fakeCollaborator{})

	opened, _ := svc.Open(context.Background(), "user-1")
	if _, err := svc.Send(context.Background(), opened.SessionToken, "first"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.Send(context.Background(), opened.SessionToken, "second"); err != nil {
		t.Fatalf("send: %v", err)
	}

	messages, err := svc.History(context.Background(), opened.SessionToken, "user-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}
	for i := 1; i < len(messages); i++ {
		if messages[i].CreatedAt.Before(messages[i-1].CreatedAt) {
			t.Error("history must be in non-decreasing creation order")
		}
	}

	// a stranger gets not-found, never forbidden
	if _, err := svc.History(context.Background(), opened.SessionToken, "user-2"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for foreign history, got %v", err)
	}
}
