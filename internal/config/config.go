package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

const (
	DefaultSystemPrompt = "You're a Turkish speaking assistant! Please write your responses in Turkish."
	DefaultHistoryFile  = "message_history.json"
)

type Config struct {
	// Server settings
	Port            int           `env:"PORT" envDefault:"3000"`
	CORSOrigin      string        `env:"CORS_ORIGIN" envDefault:"http://localhost:3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`

	// LLM settings
	LLMProvider      string `env:"LLM_PROVIDER" envDefault:"ollama"`
	ModelID          string `env:"MODEL_ID" envDefault:"gemma2:2b"`
	OllamaBaseURL    string `env:"OLLAMA_BASE_URL" envDefault:"http://localhost:11434/v1"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string `env:"OPENAI_BASE_URL"`
	YandexOAuthToken string `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string `env:"YANDEX_FOLDER_ID"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Prompts
	SystemPrompt     string `env:"SYSTEM_PROMPT"`
	SystemPromptPath string `env:"SYSTEM_PROMPT_PATH"`

	// Storage
	StorePath          string `env:"STORE_PATH"`
	InteractionLogPath string `env:"INTERACTION_LOG_PATH" envDefault:"data/interactions.jsonl"`

	// Reports
	ReportCron string `env:"REPORT_CRON" envDefault:"0 21 * * *"`
}

// Load parses the environment into a Config and resolves the derived values.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT: %d", cfg.Port)
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		return nil, fmt.Errorf("MODEL_ID must not be empty")
	}
	if err := validateOrigin(cfg.CORSOrigin); err != nil {
		return nil, fmt.Errorf("invalid CORS_ORIGIN %q: %w", cfg.CORSOrigin, err)
	}
	if cfg.StorePath == "" {
		cfg.StorePath = defaultStorePath()
	}
	cfg.SystemPrompt = resolveSystemPrompt(cfg.SystemPrompt, cfg.SystemPromptPath)
	return cfg, nil
}

func New() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}

// Addr is the listen address for the HTTP gateway.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// validateOrigin accepts a bare http or https origin such as
// http://localhost:3000.
func validateOrigin(origin string) error {
	u, err := url.Parse(origin)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("must not carry a path, query or fragment")
	}
	return nil
}

// defaultStorePath places the history file next to the running executable.
func defaultStorePath() string {
	exe, err := os.Executable()
	if err != nil {
		return DefaultHistoryFile
	}
	return filepath.Join(filepath.Dir(exe), DefaultHistoryFile)
}

// resolveSystemPrompt prefers the file, then the inline value, then the default.
func resolveSystemPrompt(inline, path string) string {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("system prompt file not found or unreadable at %s: %v", path, err)
		} else if s := strings.TrimSpace(string(data)); s != "" {
			return s
		}
	}
	if inline != "" {
		return inline
	}
	return DefaultSystemPrompt
}
