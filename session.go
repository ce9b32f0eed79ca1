package clara

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Mode is the phase a Session is in.
type Mode int32

const (
	ModeScripted Mode = iota // walking the intro script
	ModeFree                 // free chat relayed to the model
	ModeClosed               // no further input accepted
)

func (m Mode) String() string {
	switch m {
	case ModeScripted:
		return "scripted"
	case ModeFree:
		return "free"
	case ModeClosed:
		return "closed"
	}
	return fmt.Sprintf("mode(%d)", int32(m))
}

// SessionConfig bounds a Session's free-chat input.
type SessionConfig struct {
	HistoryLimit     int // messages kept for context
	MaxMessageLength int // runes per user message; 0 disables the check
}

// Session coordinates one user's conversation: the scripted intro first,
// then free chat through a Responder. Scripted answers never reach the model.
type Session struct {
	id        string
	cfg       SessionConfig
	walker    *Walker
	responder Responder

	mode atomic.Int32
	busy atomic.Bool

	mu      sync.Mutex // guards history and started
	history *History
	started bool
}

// NewSession creates a session over script answering free chat with r.
func NewSession(script *Script, r Responder, cfg SessionConfig) *Session {
	return &Session{
		id:        uuid.NewString(),
		cfg:       cfg,
		walker:    NewWalker(script),
		responder: r,
		history:   NewHistory(cfg.HistoryLimit),
	}
}

// ID returns the session identifier used to tag transcripts.
func (s *Session) ID() string { return s.id }

// Mode returns the current phase.
func (s *Session) Mode() Mode { return Mode(s.mode.Load()) }

// Busy reports whether a free-chat call is in flight.
func (s *Session) Busy() bool { return s.busy.Load() }

// History returns a copy of the free-chat history.
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Messages()
}

// Start enters the script's start node. Later calls return nil.
func (s *Session) Start() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true
	return s.apply(s.walker.Begin())
}

// Submit feeds one line of user input to the session and returns what the
// front end should display. A free-chat failure leaves the history as it
// was before the call, so the same text can be submitted again.
func (s *Session) Submit(ctx context.Context, text string) ([]Event, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.busy.Store(false)

	switch s.Mode() {
	case ModeClosed:
		return nil, ErrSessionClosed
	case ModeScripted:
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.started {
			s.started = true
			events := s.apply(s.walker.Begin())
			return append(events, s.apply(s.walker.Answer(text))...), nil
		}
		return s.apply(s.walker.Answer(text)), nil
	}
	return s.chat(ctx, text)
}

func (s *Session) chat(ctx context.Context, text string) ([]Event, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, newError(KindEmptyInput, "message is empty", nil)
	}
	if s.cfg.MaxMessageLength > 0 && utf8.RuneCountInString(text) > s.cfg.MaxMessageLength {
		return nil, newError(KindInvalidInput,
			fmt.Sprintf("message exceeds %d characters", s.cfg.MaxMessageLength), nil)
	}

	s.mu.Lock()
	snap := s.history.Snapshot()
	s.history.Append(RoleUser, text)
	msgs := s.history.Messages()
	s.mu.Unlock()

	reply, err := s.responder.Respond(ctx, Request{SessionID: s.id, Messages: msgs})
	if err != nil {
		s.mu.Lock()
		s.history.Restore(snap)
		s.mu.Unlock()
		return nil, err
	}

	if reply.Disconnect {
		s.mode.Store(int32(ModeClosed))
		return []Event{
			{Kind: EventSystem, Text: DisconnectNotice, Style: StyleWarning},
			{Kind: EventEnd, Text: "disconnect"},
		}, nil
	}

	s.mu.Lock()
	s.history.Append(RoleAssistant, reply.Text)
	s.mu.Unlock()
	return []Event{{Kind: EventReply, Text: reply.Text, Style: StyleClara}}, nil
}

// apply converts a walker step to events and updates the mode.
func (s *Session) apply(step Step) []Event {
	switch step.Outcome {
	case OutcomeSwitchToChat:
		s.mode.Store(int32(ModeFree))
	case OutcomeEnded, OutcomeCorrupted:
		s.mode.Store(int32(ModeClosed))
	}
	return stepEvents(step)
}
