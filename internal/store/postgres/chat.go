package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"appointment-chatbot-api/internal/model"
	"appointment-chatbot-api/internal/store"
)

func (s *Store) CreateSession(ctx context.Context, cs *model.ChatSession) error {
	return s.pool.QueryRow(ctx,
		`INSERT INTO chat_sessions (id, user_id, session_token, status, expires_at)
		 VALUES ($1,$2,$3,$4,$5)
		 RETURNING created_at`,
		cs.ID, cs.UserID, cs.SessionToken, cs.Status, cs.ExpiresAt,
	).Scan(&cs.CreatedAt)
}

func (s *Store) SessionByToken(ctx context.Context, token string) (*model.ChatSession, error) {
	cs := &model.ChatSession{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, session_token, status, appointment_id, created_at, expires_at
		 FROM chat_sessions WHERE session_token = $1`, token,
	).Scan(&cs.ID, &cs.UserID, &cs.SessionToken, &cs.Status, &cs.AppointmentID, &cs.CreatedAt, &cs.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return cs, nil
}

func (s *Store) UpdateSessionStatus(ctx context.Context, sessionID, from, to string) error {
	if !model.ValidSessionTransition(from, to) {
		return store.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE chat_sessions SET status=$1 WHERE id=$2 AND status=$3`, to, sessionID, from,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CompleteSession(ctx context.Context, token, ownerID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE chat_sessions SET status=$1
		 WHERE session_token=$2 AND user_id=$3 AND status=$4`,
		model.SessionCompleted, token, ownerID, model.SessionActive,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) InsertMessage(ctx context.Context, sessionID, role, content string, metadata json.RawMessage) (*model.ChatMessage, error) {
	m := &model.ChatMessage{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Metadata:  metadata,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO chat_messages (id, session_id, role, content, metadata)
		 VALUES ($1,$2,$3,$4,$5)
		 RETURNING created_at`,
		m.ID, m.SessionID, m.Role, m.Content, metadataArg(metadata),
	).Scan(&m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) Messages(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, role, content, metadata, created_at
		 FROM chat_messages WHERE session_id = $1
		 ORDER BY created_at ASC`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		var meta []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &meta, &m.CreatedAt); err != nil {
			return nil, err
		}
		if meta != nil {
			m.Metadata = json.RawMessage(meta)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func metadataArg(metadata json.RawMessage) any {
	if len(metadata) == 0 {
		return nil
	}
	return []byte(metadata)
}
