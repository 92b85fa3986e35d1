// Package chat runs the generate turn: read the transcript, ask the model,
// persist both new messages.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-gateway/internal/llm"
	"chat-gateway/internal/storage"
)

// ErrInvalidPrompt is returned for a missing or blank prompt.
var ErrInvalidPrompt = errors.New("prompt must be a non-empty string")

// HistoryStore is the persistence the service needs from the history file.
// Lock must exclude every other writer of the same file, including other
// processes.
type HistoryStore interface {
	Read() ([]llm.Message, error)
	Write(msgs []llm.Message) error
	Lock(ctx context.Context) (unlock func(), err error)
}

type Service struct {
	store    HistoryStore
	client   llm.Client
	recorder storage.Recorder
	model    string
	now      func() time.Time

	// serializes generate turns inside this process; the store lock covers
	// other processes
	mu sync.Mutex
}

// NewService wires the service. recorder may be nil.
func NewService(store HistoryStore, client llm.Client, recorder storage.Recorder, model string) *Service {
	return &Service{
		store:    store,
		client:   client,
		recorder: recorder,
		model:    model,
		now:      time.Now,
	}
}

func (s *Service) History() ([]llm.Message, error) {
	return s.store.Read()
}

// Generate appends the prompt and the model's answer to the transcript and
// returns the answer. Nothing is persisted unless the model call succeeds.
func (s *Service) Generate(ctx context.Context, prompt string) (llm.Message, error) {
	if strings.TrimSpace(prompt) == "" {
		return llm.Message{}, ErrInvalidPrompt
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.store.Lock(ctx)
	if err != nil {
		return llm.Message{}, err
	}
	defer unlock()

	msgs, err := s.store.Read()
	if err != nil {
		return llm.Message{}, err
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: prompt})

	resp, err := s.client.Generate(ctx, msgs)
	if err != nil {
		return llm.Message{}, err
	}
	reply := llm.Message{Role: llm.RoleAssistant, Content: resp.Content}
	msgs = append(msgs, reply)

	if err := s.store.Write(msgs); err != nil {
		return llm.Message{}, fmt.Errorf("persist history: %w", err)
	}

	s.record(ctx, prompt, resp)
	return reply, nil
}

func (s *Service) record(ctx context.Context, prompt string, resp llm.Response) {
	if s.recorder == nil {
		return
	}
	model := resp.Model
	if model == "" {
		model = s.model
	}
	ev := storage.Event{
		Timestamp:        s.now().UTC(),
		RequestID:        RequestID(ctx),
		Model:            model,
		Prompt:           prompt,
		Completion:       resp.Content,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
		TotalTokens:      resp.TotalTokens,
	}
	if err := s.recorder.AppendInteraction(ev); err != nil {
		log.Printf("failed to record interaction %s: %v", ev.RequestID, err)
	}
}

type requestIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id stored in ctx, or a fresh one.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
