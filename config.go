package clara

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML config file (optional when path is empty), applies
// environment overrides and defaults, and validates the result.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, newError(KindConfig, "read config", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, newError(KindConfig, "parse "+path+": "+err.Error(), err)
		}
	}

	cfg.applyEnv(os.LookupEnv)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables on the file configuration.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	get := func(keys ...string) (string, bool) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v), true
			}
		}
		return "", false
	}

	if v, ok := get("PORT"); ok {
		if strings.Contains(v, ":") {
			c.Addr = v
		} else {
			c.Addr = ":" + v
		}
	}
	if v, ok := get("CLARA_PROVIDER"); ok {
		c.Provider.Kind = strings.ToLower(v)
	}
	if v, ok := get("CLARA_MODEL"); ok {
		c.Provider.Model = v
	}
	if v, ok := get("CLARA_PERSONA"); ok {
		c.PersonaPath = v
	}
	if v, ok := get("CLARA_LORE"); ok {
		c.LorePath = v
	}
	if v, ok := get("CLARA_SCRIPT"); ok {
		c.ScriptPath = v
	}
	if v, ok := get("CLARA_TRANSCRIPT_DB"); ok {
		c.TranscriptPath = v
	}

	kind := c.Provider.Kind
	if kind == "" {
		kind = ProviderLLM
	}
	if c.Provider.APIKey == "" {
		if v, ok := get(apiKeyEnv(kind)...); ok {
			c.Provider.APIKey = v
		}
	}
	if kind == ProviderHuggingFace && c.Provider.Model == "" {
		if v, ok := get("HF_MODEL"); ok {
			c.Provider.Model = v
		}
	}
	if c.Fallback != nil && c.Fallback.APIKey == "" {
		if v, ok := get(apiKeyEnv(c.Fallback.Kind)...); ok {
			c.Fallback.APIKey = v
		}
	}
}

// apiKeyEnv lists the environment variables holding a provider's key, in priority order.
func apiKeyEnv(kind string) []string {
	switch kind {
	case ProviderOpenAI:
		return []string{"OPENAI_API_KEY"}
	case ProviderGemini:
		return []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	case ProviderHuggingFace:
		return []string{"HUGGINGFACE_API_KEY", "HF_API_KEY"}
	case ProviderOllama:
		return nil
	default:
		return []string{"LLM_API_KEY"}
	}
}

// Validate rejects configurations that cannot serve any request.
// A missing API key is not an error here; it is reported per request.
func (c *Config) Validate() error {
	if !knownProvider(c.Provider.Kind) {
		return newError(KindConfig, fmt.Sprintf("unknown provider %q", c.Provider.Kind), nil)
	}
	if c.Fallback != nil && !knownProvider(c.Fallback.Kind) {
		return newError(KindConfig, fmt.Sprintf("unknown fallback provider %q", c.Fallback.Kind), nil)
	}
	if c.HistoryLimit < 0 {
		return newError(KindConfig, "history_limit must be positive", nil)
	}
	if c.MaxMessageLength < 0 {
		return newError(KindConfig, "max_message_length must be positive", nil)
	}
	if c.RequestTimeout < 0 || c.PruneInterval < 0 || c.TranscriptRetention < 0 {
		return newError(KindConfig, "durations must be positive", nil)
	}
	return nil
}

func knownProvider(kind string) bool {
	switch kind {
	case ProviderOpenAI, ProviderLLM, ProviderHuggingFace, ProviderGemini, ProviderOllama:
		return true
	}
	return false
}
