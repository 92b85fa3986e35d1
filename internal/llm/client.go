package llm

import (
	"context"
	"errors"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known speaker roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ErrInferenceUnavailable is returned when the inference backend cannot be
// reached or answers with an error.
var ErrInferenceUnavailable = errors.New("inference backend unavailable")

type Client interface {
	Generate(ctx context.Context, messages []Message) (Response, error)
}
