package clara

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn exchanged with the model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// DefaultSentinel is the out-of-band marker a reply carries when Clara ends the session.
const DefaultSentinel = "[DISCONNECT]"

// ProviderConfig selects and tunes one LLM backend.
type ProviderConfig struct {
	Kind             string   `yaml:"kind"`     // openai, llm, huggingface, gemini, ollama
	APIKey           string   `yaml:"api_key"`  // not needed for ollama
	Model            string   `yaml:"model"`    // default depends on Kind
	BaseURL          string   `yaml:"base_url"` // override for proxies and tests
	Temperature      *float64 `yaml:"temperature"`
	MaxTokens        int      `yaml:"max_tokens"`
	TopP             *float64 `yaml:"top_p"`
	FrequencyPenalty *float64 `yaml:"frequency_penalty"`
}

// Config holds Clara initialization parameters.
type Config struct {
	Addr      string `yaml:"addr"`       // HTTP listen address (default :3000)
	StaticDir string `yaml:"static_dir"` // Front-end assets (default ./public)

	PersonaPath string `yaml:"persona_path"` // Empty uses the embedded persona
	LorePath    string `yaml:"lore_path"`    // Empty uses the embedded lore
	ScriptPath  string `yaml:"script_path"`  // Empty uses the embedded intro script

	HistoryLimit     int           `yaml:"history_limit"`      // Messages kept for context (default 20, max 24)
	LoreSections     int           `yaml:"lore_sections"`      // Sections injected per turn (default 4)
	MaxMessageLength int           `yaml:"max_message_length"` // Runes per user message (default 1000)
	RequestTimeout   time.Duration `yaml:"request_timeout"`    // Outbound call deadline (default 60s)
	Sentinel         string        `yaml:"sentinel"`           // Disconnect marker (default [DISCONNECT])

	TranscriptPath      string        `yaml:"transcript_path"`      // SQLite archive; empty disables it
	TranscriptRetention time.Duration `yaml:"transcript_retention"` // Default 720h
	PruneInterval       time.Duration `yaml:"prune_interval"`       // Default 12h

	Provider ProviderConfig  `yaml:"provider"`
	Fallback *ProviderConfig `yaml:"fallback"`

	Debug bool `yaml:"debug"`
}

// MaxHistoryLimit caps the context window regardless of configuration.
const MaxHistoryLimit = 24

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.StaticDir == "" {
		c.StaticDir = "public"
	}
	if c.HistoryLimit == 0 {
		c.HistoryLimit = 20
	}
	if c.HistoryLimit > MaxHistoryLimit {
		c.HistoryLimit = MaxHistoryLimit
	}
	if c.LoreSections == 0 {
		c.LoreSections = DefaultLoreSections
	}
	if c.MaxMessageLength == 0 {
		c.MaxMessageLength = 1000
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 60 * time.Second
	}
	if c.Sentinel == "" {
		c.Sentinel = DefaultSentinel
	}
	if c.TranscriptRetention == 0 {
		c.TranscriptRetention = 30 * 24 * time.Hour
	}
	if c.PruneInterval == 0 {
		c.PruneInterval = 12 * time.Hour
	}
	if c.Provider.Kind == "" {
		c.Provider.Kind = ProviderLLM
	}
}
