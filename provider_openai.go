package clara

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	defaultOpenAIModel      = "gpt-4o-mini"
	defaultLLMModel         = "llm-chat"
	defaultHuggingFaceModel = "Qwen/Qwen2.5-7B-Instruct"

	openAIBaseURL      = "https://api.openai.com/v1/"
	llmBaseURL         = "https://api.llm.com/v1/"
	huggingFaceBaseURL = "https://router.huggingface.co/v1/"
)

// Sampling holds generation parameters. Zero values are left to the server.
type Sampling struct {
	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
}

// OpenAIProvider generates replies through an OpenAI-compatible Chat
// Completions endpoint. Implements Provider.
type OpenAIProvider struct {
	name       string
	apiKey     string
	model      string
	baseURL    string
	sampling   Sampling
	httpClient *http.Client
	client     openai.Client
}

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithOpenAIModel sets the chat model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) { p.model = model }
}

// WithOpenAIBaseURL sets the API base URL, e.g. for proxies or compatible APIs.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(p *OpenAIProvider) { p.baseURL = url }
}

// WithOpenAISampling adjusts the generation parameters.
func WithOpenAISampling(fn func(*Sampling)) OpenAIOption {
	return func(p *OpenAIProvider) { fn(&p.sampling) }
}

// WithOpenAIHTTPClient sets the HTTP client used for requests.
func WithOpenAIHTTPClient(c *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) { p.httpClient = c }
}

// NewOpenAIProvider creates a provider for the OpenAI API.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	return newOpenAICompatible(ProviderOpenAI, apiKey, openAIBaseURL, defaultOpenAIModel,
		Sampling{Temperature: 0.85, MaxTokens: 2000}, opts...)
}

// NewLLMProvider creates a provider for the generic LLM chat endpoint,
// tuned for natural, varied roleplay.
func NewLLMProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	return newOpenAICompatible(ProviderLLM, apiKey, llmBaseURL, defaultLLMModel,
		Sampling{Temperature: 0.85, MaxTokens: 2000, TopP: 0.95, FrequencyPenalty: 0.3}, opts...)
}

// NewHuggingFaceProvider creates a provider for the HuggingFace inference router.
func NewHuggingFaceProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	return newOpenAICompatible(ProviderHuggingFace, apiKey, huggingFaceBaseURL, defaultHuggingFaceModel,
		Sampling{Temperature: 0.7, MaxTokens: 220}, opts...)
}

func newOpenAICompatible(name, apiKey, baseURL, model string, sampling Sampling, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		name:     name,
		apiKey:   apiKey,
		model:    model,
		baseURL:  baseURL,
		sampling: sampling,
	}
	for _, opt := range opts {
		opt(p)
	}
	if !strings.HasSuffix(p.baseURL, "/") {
		p.baseURL += "/"
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(p.apiKey),
		option.WithBaseURL(p.baseURL),
		option.WithMaxRetries(0),
	}
	if p.httpClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(p.httpClient))
	}
	p.client = openai.NewClient(clientOpts...)
	return p
}

// Name returns the provider kind.
func (p *OpenAIProvider) Name() string { return p.name }

// Generate sends the system context and history as one chat completion.
func (p *OpenAIProvider) Generate(ctx context.Context, system string, history []Message) (Completion, error) {
	if p.apiKey == "" {
		return Completion{}, newError(KindConfig, "missing API key for provider "+p.name, nil)
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	msgs = append(msgs, openai.SystemMessage(system))
	for _, m := range history {
		if m.Role == RoleAssistant {
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		} else {
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.model),
		Messages: msgs,
	}
	if p.sampling.Temperature != 0 {
		params.Temperature = openai.Float(p.sampling.Temperature)
	}
	if p.sampling.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.sampling.MaxTokens))
	}
	if p.sampling.TopP != 0 {
		params.TopP = openai.Float(p.sampling.TopP)
	}
	if p.sampling.FrequencyPenalty != 0 {
		params.FrequencyPenalty = openai.Float(p.sampling.FrequencyPenalty)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			detail := apiErr.Message
			if detail == "" {
				detail = fmt.Sprintf("%s HTTP %d", p.name, apiErr.StatusCode)
			}
			return Completion{}, &Error{Kind: KindProvider, Status: apiErr.StatusCode, Detail: truncate(detail, 200), Err: err}
		}
		return Completion{}, transportError(ctx, p.name, err)
	}

	if len(resp.Choices) == 0 {
		return Completion{}, newError(KindEmptyResponse, p.name+" returned no choices", nil)
	}
	model := resp.Model
	if model == "" {
		model = p.model
	}
	return Completion{Text: strings.TrimSpace(resp.Choices[0].Message.Content), Model: model}, nil
}
