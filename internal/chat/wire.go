package chat

import (
	"fmt"
	"log"

	"chat-gateway/internal/config"
	"chat-gateway/internal/history"
	"chat-gateway/internal/llm"
	"chat-gateway/internal/storage"
)

// NewFromConfig builds the service and its collaborators. The returned
// recorder is nil when the interaction log is disabled or unavailable.
func NewFromConfig(cfg *config.Config) (*Service, storage.Recorder, error) {
	store, err := history.NewStore(cfg.StorePath, cfg.SystemPrompt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init history store: %w", err)
	}

	client, err := llm.NewFactory(cfg).CreateClient(cfg.LLMProvider, cfg.ModelID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create llm client: %w", err)
	}

	var rec storage.Recorder
	if cfg.InteractionLogPath != "" {
		fr, err := storage.NewFileRecorder(cfg.InteractionLogPath)
		if err != nil {
			log.Printf("failed to init interaction log: %v", err)
		} else {
			rec = fr
		}
	}

	log.Printf("💬 History at %s, provider %s, model %s", store.Path(), cfg.LLMProvider, cfg.ModelID)
	return NewService(store, client, rec, cfg.ModelID), rec, nil
}
