package llm

import (
	"fmt"
	"net/http"
	"strings"

	"chat-gateway/internal/config"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderYandex = "yandex"
)

// Factory creates LLM clients with consistent logic
type Factory struct {
	OllamaBaseURL      string
	OpenaiAPIKey       string
	OpenaiBaseURL      string
	OpenRouterReferrer string
	OpenRouterTitle    string
	YandexOAuthToken   string
	YandexFolderID     string
}

func NewFactory(cfg *config.Config) *Factory {
	return &Factory{
		OllamaBaseURL:      cfg.OllamaBaseURL,
		OpenaiAPIKey:       cfg.OpenAIAPIKey,
		OpenaiBaseURL:      cfg.OpenAIBaseURL,
		OpenRouterReferrer: cfg.OpenRouterReferrer,
		OpenRouterTitle:    cfg.OpenRouterTitle,
		YandexOAuthToken:   cfg.YandexOAuthToken,
		YandexFolderID:     cfg.YandexFolderID,
	}
}

func (f *Factory) CreateClient(provider, model string) (Client, error) {
	switch strings.ToLower(provider) {
	case ProviderOllama, "":
		return NewOllama(f.OllamaBaseURL, model), nil
	case ProviderOpenAI:
		return NewOpenAI(f.OpenaiAPIKey, f.OpenaiBaseURL, model, f.extraHeaders()), nil
	case ProviderYandex:
		return NewYandex(f.YandexOAuthToken, f.YandexFolderID)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", provider)
	}
}

// extraHeaders are the optional OpenRouter attribution headers.
func (f *Factory) extraHeaders() http.Header {
	h := http.Header{}
	if f.OpenRouterReferrer != "" {
		h.Set("HTTP-Referer", f.OpenRouterReferrer)
	}
	if f.OpenRouterTitle != "" {
		h.Set("X-Title", f.OpenRouterTitle)
	}
	return h
}
