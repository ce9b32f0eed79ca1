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

// Client answers turns through a remote Clara server's POST /api/clara.
// Implements Responder.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientHTTPClient sets the HTTP client used for requests.
func WithClientHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// NewClient creates a client for the server at baseURL (e.g. http://localhost:3000).
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Respond posts the conversation and decodes the reply or the classified error.
func (c *Client) Respond(ctx context.Context, req Request) (Reply, error) {
	jsonData, err := json.Marshal(chatRequest{Messages: req.Messages})
	if err != nil {
		return Reply{}, fmt.Errorf("marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/clara", bytes.NewBuffer(jsonData))
	if err != nil {
		return Reply{}, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.SessionID != "" {
		httpReq.Header.Set(SessionHeader, req.SessionID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Reply{}, transportError(ctx, "clara server", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Reply{}, transportError(ctx, "clara server", err)
	}

	if resp.StatusCode != http.StatusOK {
		var eb errorBody
		if json.Unmarshal(body, &eb) != nil || eb.Error == "" {
			return Reply{}, &Error{
				Kind:   KindProvider,
				Status: resp.StatusCode,
				Detail: truncate(strings.TrimSpace(string(body)), 200),
			}
		}
		return Reply{}, &Error{Kind: eb.Error, Status: resp.StatusCode, Detail: eb.Detail}
	}

	var reply Reply
	if err := json.Unmarshal(body, &reply); err != nil {
		return Reply{}, fmt.Errorf("decode reply: %w", err)
	}
	return reply, nil
}
