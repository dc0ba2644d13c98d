package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one prior turn of a conversation.
type Message struct {
	Role Role
	Text string
}

// ChatGenerator answers a new user message given a system prompt and prior turns.
// All LLM providers (Gemini, Ollama, OpenAI-compatible) implement this interface.
type ChatGenerator interface {
	Chat(ctx context.Context, systemPrompt string, history []Message, message string) (string, error)
}

const defaultGeminiModel = "gemini-2.5-flash"

// GeneratorConfig selects and configures a chat provider.
type GeneratorConfig struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
}

// NewChatGenerator builds the configured provider. It returns (nil, nil)
// when the provider needs credentials that were not supplied, so callers
// can report the missing configuration per request.
func NewChatGenerator(cfg GeneratorConfig) (ChatGenerator, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "gemini"
	}
	model := strings.TrimSpace(cfg.Model)
	switch provider {
	case "gemini":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, nil
		}
		if model == "" {
			model = defaultGeminiModel
		}
		client, err := NewGeminiClient(cfg.APIKey, WithGeminiBaseURL(cfg.BaseURL), WithGeminiTimeout(cfg.Timeout))
		if err != nil {
			return nil, err
		}
		return NewGeminiGenerator(client, model), nil
	case "ollama":
		if model == "" {
			return nil, fmt.Errorf("ollama generation model required")
		}
		return NewOllamaGenerator(NewOllamaClient(cfg.BaseURL, cfg.Timeout), model), nil
	case "openai", "openai-compat":
		if strings.TrimSpace(cfg.BaseURL) == "" {
			return nil, fmt.Errorf("openai-compat base url required")
		}
		if model == "" {
			return nil, fmt.Errorf("openai-compat generation model required")
		}
		return NewOpenAICompatGenerator(cfg.BaseURL, cfg.APIKey, model, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown generation provider: %s", provider)
	}
}
