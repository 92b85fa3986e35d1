package storage

import "time"

// Event is one completed generate turn: the prompt the user sent and the
// completion the model returned.
type Event struct {
	Timestamp        time.Time `json:"timestamp"`
	RequestID        string    `json:"request_id"`
	Model            string    `json:"model"`
	Prompt           string    `json:"prompt"`
	Completion       string    `json:"completion"`
	PromptTokens     int       `json:"prompt_tokens,omitempty"`
	CompletionTokens int       `json:"completion_tokens,omitempty"`
	TotalTokens      int       `json:"total_tokens,omitempty"`
}

// Recorder abstracts persistence of interaction events.
// LoadInteractions returns events in the order they were appended.
// Implementations must be safe for concurrent use.
type Recorder interface {
	AppendInteraction(event Event) error
	LoadInteractions() ([]Event, error)
}
