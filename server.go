package clara

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// maxBodyBytes limits POST /api/clara request bodies.
const maxBodyBytes = 128 << 10

// SessionHeader optionally tags a request with a session id for transcripts.
const SessionHeader = "X-Clara-Session"

// Server exposes an Engine over HTTP and WebSocket.
type Server struct {
	engine   *Engine
	logger   *zap.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// NewServer builds the HTTP routes for e. A nil logger disables logging.
func NewServer(e *Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine: e,
		logger: logger.Named("http"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /api/clara", s.handlePost)
	s.mux.HandleFunc("GET /api/clara", s.handleGet)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ws", s.handleWS)
	s.mux.HandleFunc("GET /", s.handleStatic)
	return s
}

// ServeHTTP applies permissive CORS headers and dispatches to the routes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, "+SessionHeader)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.mux.ServeHTTP(w, r)
}

type chatRequest struct {
	Messages []Message `json:"messages"`
}

type errorBody struct {
	Error  Kind   `json:"error"`
	Detail string `json:"detail"`
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, &Error{Kind: KindInvalidInput, Status: http.StatusRequestEntityTooLarge, Detail: "request body too large"})
			return
		}
		s.writeError(w, newError(KindInvalidInput, "invalid JSON body", err))
		return
	}

	reply, err := s.engine.Respond(r.Context(), Request{
		SessionID: r.Header.Get(SessionHeader),
		Messages:  body.Messages,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimSpace(r.URL.Query().Get("text"))
	if text == "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":   true,
			"hint": "POST {messages:[{role,content}]} or GET ?text=...",
		})
		return
	}

	reply, err := s.engine.Respond(r.Context(), Request{
		SessionID: r.Header.Get(SessionHeader),
		Messages:  []Message{{Role: RoleUser, Content: text}},
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	cfg := s.engine.Config()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"provider":  s.engine.ProviderName(),
		"model":     cfg.Provider.DefaultModel(),
		"hasApiKey": s.engine.HasCredentials(),
	})
}

// handleStatic serves the front end, falling back to index.html for unknown paths.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	dir := s.engine.Config().StaticDir
	name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		http.ServeFile(w, r, name)
		return
	}
	index := filepath.Join(dir, "index.html")
	if _, err := os.Stat(index); err == nil {
		http.ServeFile(w, r, index)
		return
	}
	http.NotFound(w, r)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := KindOf(err)
	status := StatusOf(err)
	if status >= 500 {
		s.logger.Warn("request failed", zap.String("kind", string(kind)), zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, errorBody{Error: kind, Detail: DetailOf(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
