package clara

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultOllamaModel = "llama3.1"

// OllamaProvider generates replies via a local Ollama server.
// Implements Provider. No API key required.
type OllamaProvider struct {
	host        string
	model       string
	temperature float64
	client      *http.Client
}

// OllamaOption configures an OllamaProvider.
type OllamaOption func(*OllamaProvider)

// WithOllamaHost sets the Ollama server URL (default: http://localhost:11434).
func WithOllamaHost(host string) OllamaOption {
	return func(p *OllamaProvider) { p.host = strings.TrimRight(host, "/") }
}

// WithOllamaModel sets the chat model. It must already be pulled.
func WithOllamaModel(model string) OllamaOption {
	return func(p *OllamaProvider) { p.model = model }
}

// NewOllamaProvider creates a provider for a local Ollama instance.
// The call deadline comes from the request context.
func NewOllamaProvider(opts ...OllamaOption) *OllamaProvider {
	p := &OllamaProvider{
		host:        "http://localhost:11434",
		model:       defaultOllamaModel,
		temperature: 0.85,
		client:      &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider kind.
func (p *OllamaProvider) Name() string { return ProviderOllama }

// Generate performs one non-streaming /api/chat call.
func (p *OllamaProvider) Generate(ctx context.Context, system string, history []Message) (Completion, error) {
	reqBody := ollamaChatRequest{
		Model:    p.model,
		Stream:   false,
		Messages: make([]ollamaMessage, 0, len(history)+1),
		Options:  ollamaChatOptions{Temperature: p.temperature},
	}
	reqBody.Messages = append(reqBody.Messages, ollamaMessage{Role: "system", Content: system})
	for _, m := range history {
		reqBody.Messages = append(reqBody.Messages, ollamaMessage{Role: string(m.Role), Content: m.Content})
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return Completion{}, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.host+"/api/chat", bytes.NewBuffer(jsonData))
	if err != nil {
		return Completion{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Completion{}, transportError(ctx, ProviderOllama, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var payload ollamaChatResponse
		detail := truncate(string(body), 200)
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			detail = truncate(payload.Error, 200)
		}
		return Completion{}, &Error{Kind: KindProvider, Status: resp.StatusCode, Detail: detail}
	}

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Completion{}, transportError(ctx, ProviderOllama, fmt.Errorf("decode: %w", err))
	}
	if out.Error != "" {
		return Completion{}, &Error{Kind: KindProvider, Status: http.StatusBadGateway, Detail: truncate(out.Error, 200)}
	}

	model := out.Model
	if model == "" {
		model = p.model
	}
	return Completion{Text: strings.TrimSpace(out.Message.Content), Model: model}, nil
}

// --- Ollama Chat API types ---

type ollamaChatRequest struct {
	Model    string            `json:"model"`
	Messages []ollamaMessage   `json:"messages"`
	Stream   bool              `json:"stream"`
	Options  ollamaChatOptions `json:"options"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Error   string        `json:"error,omitempty"`
}
