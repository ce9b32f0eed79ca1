package clara

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"
)

// loreHeader separates the persona from the injected lore in the system context.
const loreHeader = "\n\n# CONTEXTE UNIVERS ORION\n\n"

// Engine relays conversation turns to the configured provider with the
// persona and the most relevant lore as system context.
// Script, lore and persona are loaded once and never mutated, so one Engine
// serves any number of sessions concurrently.
type Engine struct {
	config   Config
	persona  string
	lore     *LoreSelector
	script   *Script
	provider Provider
	hasKey   bool
	store    *Store
	ownStore bool
	logger   *zap.Logger

	cancelRetention context.CancelFunc
	retentionDone   chan struct{}
	closeOnce       sync.Once
}

// Option customizes an Engine.
type Option func(*Engine)

// WithProvider replaces the provider built from Config.Provider.
func WithProvider(p Provider) Option {
	return func(e *Engine) { e.provider = p }
}

// WithLogger sets the logger (default: no-op).
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithStore archives transcripts to s. The caller keeps ownership of s.
func WithStore(s *Store) Option {
	return func(e *Engine) { e.store = s }
}

// New loads persona, lore and script, builds the provider, and opens the
// transcript archive when one is configured.
func New(cfg Config, opts ...Option) (*Engine, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{config: cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}

	var err error
	if e.persona, err = LoadPersona(cfg.PersonaPath); err != nil {
		return nil, err
	}
	sections, err := LoadLore(cfg.LorePath)
	if err != nil {
		return nil, err
	}
	e.lore = NewLoreSelector(sections)
	if e.script, err = LoadScript(cfg.ScriptPath); err != nil {
		return nil, err
	}

	if e.provider != nil {
		e.hasKey = true
	} else {
		if e.provider, err = e.buildProvider(); err != nil {
			return nil, err
		}
	}

	if e.store == nil && cfg.TranscriptPath != "" {
		if e.store, err = NewStore(cfg.TranscriptPath); err != nil {
			return nil, err
		}
		e.ownStore = true
	}
	if e.store != nil {
		e.startRetentionWorker(cfg.PruneInterval, cfg.TranscriptRetention)
	}

	e.logger.Info("clara initialized",
		zap.String("provider", e.provider.Name()),
		zap.String("model", cfg.Provider.DefaultModel()),
		zap.Int("lore_sections", len(sections)),
		zap.Bool("transcripts", e.store != nil))
	return e, nil
}

func (e *Engine) buildProvider() (Provider, error) {
	ctx := context.Background()
	primary, err := NewProvider(ctx, e.config.Provider)
	if err != nil {
		return nil, err
	}
	e.hasKey = e.config.Provider.HasCredentials()
	if e.config.Fallback == nil {
		return primary, nil
	}

	secondary, err := NewProvider(ctx, *e.config.Fallback)
	if err != nil {
		return nil, fmt.Errorf("fallback: %w", err)
	}
	if !e.hasKey {
		// A keyless primary would fail every call; promote the fallback.
		if e.config.Fallback.HasCredentials() {
			e.hasKey = true
			return secondary, nil
		}
		return primary, nil
	}
	if !e.config.Fallback.HasCredentials() {
		e.logger.Warn("fallback provider has no credentials, ignoring it",
			zap.String("fallback", e.config.Fallback.Kind))
		return primary, nil
	}
	return &Fallback{Primary: primary, Secondary: secondary, Logger: e.logger.Named("fallback")}, nil
}

// Respond answers one turn. Implements Responder.
func (e *Engine) Respond(ctx context.Context, req Request) (Reply, error) {
	history := NormalizeMessages(req.Messages, e.config.HistoryLimit)
	if len(history) == 0 {
		return Reply{}, newError(KindEmptyInput, "no usable message", nil)
	}
	if last := history[len(history)-1]; last.Role == RoleUser && e.config.MaxMessageLength > 0 &&
		utf8.RuneCountInString(last.Content) > e.config.MaxMessageLength {
		return Reply{}, newError(KindInvalidInput,
			fmt.Sprintf("message exceeds %d characters", e.config.MaxMessageLength), nil)
	}
	if !e.hasKey {
		return Reply{}, newError(KindConfig, "missing API key for provider "+e.config.Provider.Kind, nil)
	}

	system := e.SystemContext(history)

	callCtx, cancel := context.WithTimeout(ctx, e.config.RequestTimeout)
	defer cancel()

	completion, err := e.provider.Generate(callCtx, system, history)
	if err != nil {
		e.logger.Warn("provider call failed",
			zap.String("session", req.SessionID),
			zap.String("kind", string(KindOf(err))),
			zap.Error(err))
		return Reply{}, err
	}

	text := strings.TrimSpace(completion.Text)
	if text == "" {
		return Reply{}, newError(KindEmptyResponse, "empty reply from model, try again", nil)
	}

	reply := Reply{Text: text, Model: completion.Model}
	if strings.Contains(text, e.config.Sentinel) {
		reply = Reply{Disconnect: true, Model: completion.Model}
	}

	e.archive(ctx, req.SessionID, history[len(history)-1], text, completion.Model)
	return reply, nil
}

// SystemContext builds the persona plus the lore sections selected for history.
func (e *Engine) SystemContext(history []Message) string {
	sections := e.lore.Select(history, e.config.LoreSections)
	return e.persona + loreHeader + RenderLore(sections)
}

func (e *Engine) archive(ctx context.Context, sessionID string, last Message, reply, model string) {
	if e.store == nil || sessionID == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if last.Role == RoleUser {
		if _, err := e.store.InsertMessage(ctx, TranscriptMessage{SessionID: sessionID, Role: RoleUser, Content: last.Content}); err != nil {
			e.logger.Warn("archive user turn", zap.String("session", sessionID), zap.Error(err))
			return
		}
	}
	if _, err := e.store.InsertMessage(ctx, TranscriptMessage{SessionID: sessionID, Role: RoleAssistant, Content: reply, Model: model}); err != nil {
		e.logger.Warn("archive reply", zap.String("session", sessionID), zap.Error(err))
	}
}

// NewSession starts a scripted session driven by this engine.
func (e *Engine) NewSession() *Session {
	return NewSession(e.script, e, SessionConfig{
		HistoryLimit:     e.config.HistoryLimit,
		MaxMessageLength: e.config.MaxMessageLength,
	})
}

// Lore returns the lore selector.
func (e *Engine) Lore() *LoreSelector { return e.lore }

// Persona returns the persona prompt.
func (e *Engine) Persona() string { return e.persona }

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.config }

// ProviderName returns the name of the provider answering turns.
func (e *Engine) ProviderName() string { return e.provider.Name() }

// HasCredentials reports whether the provider can authenticate.
func (e *Engine) HasCredentials() bool { return e.hasKey }

// Store returns the transcript archive, or nil when disabled.
func (e *Engine) Store() *Store { return e.store }

// Close stops the retention worker and closes an archive opened by New.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		if e.cancelRetention != nil {
			e.cancelRetention()
			<-e.retentionDone
		}
		if e.ownStore {
			err = e.store.Close()
		}
	})
	return err
}
