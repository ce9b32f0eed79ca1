package clara

import (
	"context"
	"fmt"
)

// Provider generates one assistant reply from a system context and the
// trimmed conversation history.
// Built-in: OpenAIProvider (OpenAI, generic OpenAI-compatible, HuggingFace),
// GeminiProvider, OllamaProvider, Fallback.
type Provider interface {
	Name() string
	Generate(ctx context.Context, system string, history []Message) (Completion, error)
}

// Completion is the raw text a provider produced.
type Completion struct {
	Text  string
	Model string
}

// Responder answers one conversation turn. Implemented by *Engine for
// in-process use and by *Client for a remote Clara server.
type Responder interface {
	Respond(ctx context.Context, req Request) (Reply, error)
}

// Request is one turn submitted to a Responder.
type Request struct {
	SessionID string
	Messages  []Message
}

// Reply is the relayed answer to a Request.
type Reply struct {
	Text       string `json:"text"`
	Disconnect bool   `json:"disconnect"`
	Model      string `json:"model,omitempty"`
}

// Provider kinds accepted in ProviderConfig.Kind.
const (
	ProviderOpenAI      = "openai"
	ProviderLLM         = "llm"
	ProviderHuggingFace = "huggingface"
	ProviderGemini      = "gemini"
	ProviderOllama      = "ollama"
)

// NewProvider constructs the provider described by cfg.
func NewProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	switch cfg.Kind {
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, openAIOptionsFrom(cfg)...), nil
	case ProviderLLM, "":
		return NewLLMProvider(cfg.APIKey, openAIOptionsFrom(cfg)...), nil
	case ProviderHuggingFace:
		return NewHuggingFaceProvider(cfg.APIKey, openAIOptionsFrom(cfg)...), nil
	case ProviderGemini:
		return NewGeminiProvider(ctx, cfg.APIKey, geminiOptionsFrom(cfg)...)
	case ProviderOllama:
		return NewOllamaProvider(ollamaOptionsFrom(cfg)...), nil
	default:
		return nil, newError(KindConfig, fmt.Sprintf("unknown provider %q", cfg.Kind), nil)
	}
}

func openAIOptionsFrom(cfg ProviderConfig) []OpenAIOption {
	var opts []OpenAIOption
	if cfg.Model != "" {
		opts = append(opts, WithOpenAIModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, WithOpenAIBaseURL(cfg.BaseURL))
	}
	if cfg.Temperature != nil || cfg.MaxTokens != 0 || cfg.TopP != nil || cfg.FrequencyPenalty != nil {
		opts = append(opts, WithOpenAISampling(func(s *Sampling) {
			if cfg.Temperature != nil {
				s.Temperature = *cfg.Temperature
			}
			if cfg.MaxTokens != 0 {
				s.MaxTokens = cfg.MaxTokens
			}
			if cfg.TopP != nil {
				s.TopP = *cfg.TopP
			}
			if cfg.FrequencyPenalty != nil {
				s.FrequencyPenalty = *cfg.FrequencyPenalty
			}
		}))
	}
	return opts
}

func geminiOptionsFrom(cfg ProviderConfig) []GeminiOption {
	var opts []GeminiOption
	if cfg.Model != "" {
		opts = append(opts, WithGeminiModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, WithGeminiBaseURL(cfg.BaseURL))
	}
	if cfg.Temperature != nil {
		opts = append(opts, WithGeminiTemperature(*cfg.Temperature))
	}
	if cfg.MaxTokens != 0 {
		opts = append(opts, WithGeminiMaxTokens(cfg.MaxTokens))
	}
	return opts
}

func ollamaOptionsFrom(cfg ProviderConfig) []OllamaOption {
	var opts []OllamaOption
	if cfg.Model != "" {
		opts = append(opts, WithOllamaModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, WithOllamaHost(cfg.BaseURL))
	}
	return opts
}

// HasCredentials reports whether cfg carries what its provider needs to authenticate.
func (cfg ProviderConfig) HasCredentials() bool {
	return cfg.Kind == ProviderOllama || cfg.APIKey != ""
}

// DefaultModel returns the model a provider kind uses when none is configured.
func (cfg ProviderConfig) DefaultModel() string {
	if cfg.Model != "" {
		return cfg.Model
	}
	switch cfg.Kind {
	case ProviderOpenAI:
		return defaultOpenAIModel
	case ProviderHuggingFace:
		return defaultHuggingFaceModel
	case ProviderGemini:
		return defaultGeminiModel
	case ProviderOllama:
		return defaultOllamaModel
	default:
		return defaultLLMModel
	}
}
