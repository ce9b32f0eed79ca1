package clara

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const wsWriteWait = 10 * time.Second

// wsInbound is a frame sent by the browser.
type wsInbound struct {
	Type string `json:"type"` // "input"
	Text string `json:"text"`
}

// wsOutbound is a frame sent to the browser.
type wsOutbound struct {
	Type      string  `json:"type"` // "events" or "error"
	Events    []Event `json:"events,omitempty"`
	Mode      string  `json:"mode,omitempty"`
	Error     Kind    `json:"error,omitempty"`
	Detail    string  `json:"detail,omitempty"`
	Retryable bool    `json:"retryable,omitempty"`
}

// handleWS runs one Session per connection. Frames are processed in order,
// so a session never has more than one call in flight.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("ws upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	log := s.logger.Named("ws")
	sess := s.engine.NewSession()
	log.Debug("session opened", zap.String("session", sess.ID()))

	send := func(msg wsOutbound) error {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(msg)
	}
	closeSession := func() {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
		log.Debug("session closed", zap.String("session", sess.ID()))
	}

	if err := send(wsOutbound{Type: "events", Events: sess.Start(), Mode: sess.Mode().String()}); err != nil {
		return
	}
	if sess.Mode() == ModeClosed {
		closeSession()
		return
	}

	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("ws read", zap.String("session", sess.ID()), zap.Error(err))
			}
			return
		}
		if in.Type != "input" {
			continue
		}

		events, err := sess.Submit(r.Context(), in.Text)
		if err != nil {
			if errors.Is(err, ErrSessionClosed) {
				closeSession()
				return
			}
			if err := send(wsOutbound{
				Type:      "error",
				Error:     KindOf(err),
				Detail:    DetailOf(err),
				Retryable: IsRetryable(err),
			}); err != nil {
				return
			}
			continue
		}

		if err := send(wsOutbound{Type: "events", Events: events, Mode: sess.Mode().String()}); err != nil {
			return
		}
		if sess.Mode() == ModeClosed {
			closeSession()
			return
		}
	}
}
