package chatbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Collaborator is the external NLU service that turns a user message into a
// reply plus optional structured metadata. It may create appointments on its
// own side channel; this component never acts on the metadata.
type Collaborator interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatReply, error)
}

type ChatRequest struct {
	Message   string   `json:"message"`
	SessionID string   `json:"sessionId"`
	UserID    string   `json:"userId"`
	UserInfo  UserInfo `json:"userInfo"`
}

type UserInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

type ChatReply struct {
	Message  string          `json:"message"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// HTTPCollaborator posts to {baseURL}/chat.
type HTTPCollaborator struct {
	baseURL string
	client  *http.Client
}

func NewHTTPCollaborator(baseURL string, timeout time.Duration) *HTTPCollaborator {
	return &HTTPCollaborator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPCollaborator) Chat(ctx context.Context, req ChatRequest) (*ChatReply, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("chatbot service status %d", resp.StatusCode)
	}

	var reply ChatReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, err
	}
	if reply.Message == "" {
		return nil, fmt.Errorf("chatbot service returned empty message")
	}
	return &reply, nil
}
