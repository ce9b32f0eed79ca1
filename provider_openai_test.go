package clara

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type chatCompletionRequest struct {
	Model            string    `json:"model"`
	Messages         []Message `json:"messages"`
	Temperature      *float64  `json:"temperature"`
	MaxTokens        *int      `json:"max_tokens"`
	TopP             *float64  `json:"top_p"`
	FrequencyPenalty *float64  `json:"frequency_penalty"`
}

func writeCompletion(w http.ResponseWriter, model, content string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   model,
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
}

func TestLLMProviderSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("wrong auth header: %s", r.Header.Get("Authorization"))
		}

		var req chatCompletionRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "llm-chat" {
			t.Errorf("expected model llm-chat, got %s", req.Model)
		}
		if len(req.Messages) != 3 {
			t.Fatalf("expected system + 2 messages, got %d", len(req.Messages))
		}
		if req.Messages[0].Role != "system" || req.Messages[0].Content != "persona" {
			t.Errorf("expected system context first, got %+v", req.Messages[0])
		}
		if req.Messages[2].Role != RoleAssistant {
			t.Errorf("expected assistant role preserved, got %s", req.Messages[2].Role)
		}
		if req.Temperature == nil || *req.Temperature != 0.85 {
			t.Errorf("expected temperature 0.85, got %v", req.Temperature)
		}
		if req.MaxTokens == nil || *req.MaxTokens != 2000 {
			t.Errorf("expected max_tokens 2000, got %v", req.MaxTokens)
		}
		if req.TopP == nil || *req.TopP != 0.95 {
			t.Errorf("expected top_p 0.95, got %v", req.TopP)
		}
		if req.FrequencyPenalty == nil || *req.FrequencyPenalty != 0.3 {
			t.Errorf("expected frequency_penalty 0.3, got %v", req.FrequencyPenalty)
		}

		writeCompletion(w, "llm-chat", "  Bonjour.  ")
	}))
	defer srv.Close()

	p := NewLLMProvider("test-key", WithOpenAIBaseURL(srv.URL+"/v1"))
	c, err := p.Generate(context.Background(), "persona", []Message{
		{Role: RoleUser, Content: "salut"},
		{Role: RoleAssistant, Content: "..."},
	})
	if err != nil {
		t.Fatal(err)
	}
	if c.Text != "Bonjour." {
		t.Errorf("expected trimmed text, got %q", c.Text)
	}
	if c.Model != "llm-chat" {
		t.Errorf("expected model llm-chat, got %s", c.Model)
	}
}

func TestHuggingFaceProviderDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "Qwen/Qwen2.5-7B-Instruct" {
			t.Errorf("unexpected model %s", req.Model)
		}
		if req.MaxTokens == nil || *req.MaxTokens != 220 {
			t.Errorf("expected max_tokens 220, got %v", req.MaxTokens)
		}
		if req.TopP != nil {
			t.Errorf("top_p should be omitted, got %v", *req.TopP)
		}
		writeCompletion(w, req.Model, "ok")
	}))
	defer srv.Close()

	p := NewHuggingFaceProvider("hf-key", WithOpenAIBaseURL(srv.URL+"/v1/"))
	if _, err := p.Generate(context.Background(), "sys", []Message{{Role: RoleUser, Content: "hi"}}); err != nil {
		t.Fatal(err)
	}
	if p.Name() != ProviderHuggingFace {
		t.Errorf("unexpected name %s", p.Name())
	}
}

func TestOpenAIProviderEmptyKey(t *testing.T) {
	p := NewOpenAIProvider("")
	_, err := p.Generate(context.Background(), "sys", []Message{{Role: RoleUser, Content: "hi"}})
	if KindOf(err) != KindConfig {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestOpenAIProviderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("bad-key", WithOpenAIBaseURL(srv.URL))
	_, err := p.Generate(context.Background(), "sys", []Message{{Role: RoleUser, Content: "hi"}})
	if KindOf(err) != KindProvider {
		t.Fatalf("expected provider error, got %v", err)
	}
	if StatusOf(err) != http.StatusUnauthorized {
		t.Errorf("expected upstream status 401, got %d", StatusOf(err))
	}
	if IsRetryable(err) {
		t.Error("401 must not be retryable")
	}
	if DetailOf(err) == "" {
		t.Error("expected a detail")
	}
}

func TestOpenAIProviderServerErrorRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewLLMProvider("k", WithOpenAIBaseURL(srv.URL))
	_, err := p.Generate(context.Background(), "sys", []Message{{Role: RoleUser, Content: "hi"}})
	if !IsRetryable(err) {
		t.Errorf("503 should be retryable, got %v", err)
	}
}

func TestOpenAIProviderNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`))
	}))
	defer srv.Close()

	p := NewLLMProvider("k", WithOpenAIBaseURL(srv.URL))
	_, err := p.Generate(context.Background(), "sys", []Message{{Role: RoleUser, Content: "hi"}})
	if KindOf(err) != KindEmptyResponse {
		t.Errorf("expected empty response, got %v", err)
	}
}

func TestOpenAIProviderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	p := NewLLMProvider("k", WithOpenAIBaseURL(srv.URL))
	_, err := p.Generate(ctx, "sys", []Message{{Role: RoleUser, Content: "hi"}})
	if KindOf(err) != KindTimeout {
		t.Errorf("expected timeout, got %v", err)
	}
}

func TestOpenAIProviderNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewLLMProvider("k", WithOpenAIBaseURL(url))
	_, err := p.Generate(context.Background(), "sys", []Message{{Role: RoleUser, Content: "hi"}})
	if KindOf(err) != KindNetwork {
		t.Errorf("expected network error, got %v", err)
	}
}
