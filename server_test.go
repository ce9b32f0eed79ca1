package clara

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testServer(t *testing.T, p Provider, opts ...Option) (*httptest.Server, *Engine) {
	t.Helper()
	e := testEngine(t, p, opts...)
	srv := httptest.NewServer(NewServer(e, zaptest.NewLogger(t)))
	t.Cleanup(srv.Close)
	return srv, e
}

func postChat(t *testing.T, url string, body string, header ...string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest("POST", url+"/api/clara", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestServerPostChat(t *testing.T) {
	p := &fakeProvider{reply: "Le canal est ouvert."}
	srv, _ := testServer(t, p)

	resp, out := postChat(t, srv.URL, `{"messages":[{"role":"user","content":"bonjour"}]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Le canal est ouvert.", out["text"])
	assert.Equal(t, false, out["disconnect"])
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServerPostErrors(t *testing.T) {
	cases := []struct {
		name   string
		p      *fakeProvider
		body   string
		status int
		code   string
	}{
		{"empty messages", &fakeProvider{reply: "x"}, `{"messages":[]}`, 400, "EMPTY_INPUT"},
		{"blank content", &fakeProvider{reply: "x"}, `{"messages":[{"role":"user","content":"  "}]}`, 400, "EMPTY_INPUT"},
		{"bad json", &fakeProvider{reply: "x"}, `{"messages":`, 400, "INVALID_INPUT"},
		{"upstream status", &fakeProvider{err: &Error{Kind: KindProvider, Status: 429, Detail: "slow down"}}, `{"messages":[{"role":"user","content":"a"}]}`, 429, "LLM_ERROR"},
		{"network", &fakeProvider{err: &Error{Kind: KindNetwork, Detail: "refused"}}, `{"messages":[{"role":"user","content":"a"}]}`, 503, "NETWORK_ERROR"},
		{"timeout", &fakeProvider{err: &Error{Kind: KindTimeout}}, `{"messages":[{"role":"user","content":"a"}]}`, 504, "TIMEOUT"},
		{"empty reply", &fakeProvider{reply: ""}, `{"messages":[{"role":"user","content":"a"}]}`, 502, "EMPTY_RESPONSE"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv, _ := testServer(t, c.p)
			resp, out := postChat(t, srv.URL, c.body)
			assert.Equal(t, c.status, resp.StatusCode)
			assert.Equal(t, c.code, out["error"])
			assert.NotEmpty(t, out["detail"])
		})
	}
}

func TestServerPostTooLarge(t *testing.T) {
	srv, _ := testServer(t, &fakeProvider{reply: "x"})
	body := `{"messages":[{"role":"user","content":"` + strings.Repeat("a", maxBodyBytes) + `"}]}`
	resp, out := postChat(t, srv.URL, body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, "INVALID_INPUT", out["error"])
}

func TestServerMissingKey(t *testing.T) {
	e, err := New(Config{})
	require.NoError(t, err)
	defer e.Close()
	srv := httptest.NewServer(NewServer(e, nil))
	defer srv.Close()

	resp, out := postChat(t, srv.URL, `{"messages":[{"role":"user","content":"a"}]}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "CONFIG_ERROR", out["error"])
}

func TestServerSentinel(t *testing.T) {
	srv, _ := testServer(t, &fakeProvider{reply: "[DISCONNECT]"})
	_, out := postChat(t, srv.URL, `{"messages":[{"role":"user","content":"a"}]}`)
	assert.Equal(t, true, out["disconnect"])
	assert.Equal(t, "", out["text"])
}

func TestServerSessionHeaderTagsTranscript(t *testing.T) {
	s := testStore(t)
	srv, _ := testServer(t, &fakeProvider{reply: "ok"}, WithStore(s))

	postChat(t, srv.URL, `{"messages":[{"role":"user","content":"a"}]}`, SessionHeader, "web-42")
	msgs, err := s.SessionMessages(context.Background(), "web-42")
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestServerGetChat(t *testing.T) {
	p := &fakeProvider{reply: "Oui ?"}
	srv, _ := testServer(t, p)

	resp, err := http.Get(srv.URL + "/api/clara?text=allo")
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Oui ?", out["text"])
	assert.Equal(t, []Message{{Role: RoleUser, Content: "allo"}}, p.history)

	resp2, err := http.Get(srv.URL + "/api/clara")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var hint map[string]any
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&hint))
	assert.Equal(t, true, hint["ok"])
	assert.NotEmpty(t, hint["hint"])
}

func TestServerHealth(t *testing.T) {
	srv, _ := testServer(t, &fakeProvider{})
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, "fake", out["provider"])
	assert.Equal(t, "llm-chat", out["model"])
	assert.Equal(t, true, out["hasApiKey"])
}

func TestServerPreflight(t *testing.T) {
	srv, _ := testServer(t, &fakeProvider{})
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/clara", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), SessionHeader)
}

func TestServerStaticFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>orion</h1>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0644))

	e, err := New(Config{StaticDir: dir}, WithProvider(&fakeProvider{}))
	require.NoError(t, err)
	defer e.Close()
	srv := httptest.NewServer(NewServer(e, nil))
	defer srv.Close()

	get := func(path string) (int, string) {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(data)
	}

	status, body := get("/app.js")
	assert.Equal(t, 200, status)
	assert.Equal(t, "console.log(1)", body)

	status, body = get("/some/client/route")
	assert.Equal(t, 200, status)
	assert.Equal(t, "<h1>orion</h1>", body)

	status, body = get("/")
	assert.Equal(t, 200, status)
	assert.Equal(t, "<h1>orion</h1>", body)
}

func TestServerStaticMissingDir(t *testing.T) {
	e, err := New(Config{StaticDir: filepath.Join(t.TempDir(), "nope")}, WithProvider(&fakeProvider{}))
	require.NoError(t, err)
	defer e.Close()
	srv := httptest.NewServer(NewServer(e, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/anything")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
