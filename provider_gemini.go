package clara

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-1.5-flash"

// GeminiProvider generates replies using the Gemini API.
// Implements Provider.
type GeminiProvider struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float32
	maxTokens   int32
	httpClient  *http.Client
	client      *genai.Client
}

// GeminiOption configures a GeminiProvider.
type GeminiOption func(*GeminiProvider)

// WithGeminiModel sets the model (default: gemini-1.5-flash).
func WithGeminiModel(model string) GeminiOption {
	return func(p *GeminiProvider) { p.model = model }
}

// WithGeminiBaseURL overrides the API endpoint.
func WithGeminiBaseURL(url string) GeminiOption {
	return func(p *GeminiProvider) { p.baseURL = url }
}

// WithGeminiTemperature sets the sampling temperature.
func WithGeminiTemperature(t float64) GeminiOption {
	return func(p *GeminiProvider) { p.temperature = float32(t) }
}

// WithGeminiMaxTokens caps the reply length.
func WithGeminiMaxTokens(n int) GeminiOption {
	return func(p *GeminiProvider) { p.maxTokens = int32(n) }
}

// WithGeminiHTTPClient sets the HTTP client used for requests.
func WithGeminiHTTPClient(c *http.Client) GeminiOption {
	return func(p *GeminiProvider) { p.httpClient = c }
}

// NewGeminiProvider creates a Gemini provider. An empty key yields a provider
// that fails every call with a configuration error.
func NewGeminiProvider(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiProvider, error) {
	p := &GeminiProvider{
		apiKey:      apiKey,
		model:       defaultGeminiModel,
		temperature: 0.85,
		maxTokens:   2000,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.apiKey == "" {
		return p, nil
	}

	cc := &genai.ClientConfig{
		APIKey:     p.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.httpClient,
	}
	if p.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	p.client = client
	return p, nil
}

// Name returns the provider kind.
func (p *GeminiProvider) Name() string { return ProviderGemini }

// Generate sends the history with the system context as system instruction.
func (p *GeminiProvider) Generate(ctx context.Context, system string, history []Message) (Completion, error) {
	if p.client == nil {
		return Completion{}, newError(KindConfig, "missing API key for provider gemini", nil)
	}

	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		var role genai.Role = genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		MaxOutputTokens:   p.maxTokens,
	}
	if p.temperature != 0 {
		config.Temperature = genai.Ptr(p.temperature)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			detail := apiErr.Message
			if detail == "" {
				detail = fmt.Sprintf("gemini HTTP %d", apiErr.Code)
			}
			return Completion{}, &Error{Kind: KindProvider, Status: apiErr.Code, Detail: truncate(detail, 200), Err: err}
		}
		return Completion{}, transportError(ctx, ProviderGemini, err)
	}

	model := resp.ModelVersion
	if model == "" {
		model = p.model
	}
	return Completion{Text: strings.TrimSpace(resp.Text()), Model: model}, nil
}
