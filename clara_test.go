package clara

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider records calls and answers from a canned reply or a func.
type fakeProvider struct {
	mu      sync.Mutex
	name    string
	reply   string
	err     error
	fn      func(ctx context.Context, system string, history []Message) (Completion, error)
	calls   int
	system  string
	history []Message
}

func (p *fakeProvider) Name() string {
	if p.name == "" {
		return "fake"
	}
	return p.name
}

func (p *fakeProvider) Generate(ctx context.Context, system string, history []Message) (Completion, error) {
	p.mu.Lock()
	p.calls++
	p.system = system
	p.history = append([]Message(nil), history...)
	p.mu.Unlock()

	if p.fn != nil {
		return p.fn(ctx, system, history)
	}
	if p.err != nil {
		return Completion{}, p.err
	}
	return Completion{Text: p.reply, Model: "fake-model"}, nil
}

func (p *fakeProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func testEngine(t *testing.T, p Provider, opts ...Option) *Engine {
	t.Helper()
	e, err := New(Config{}, append([]Option{WithProvider(p)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestEngineRespondRelaysReply(t *testing.T) {
	p := &fakeProvider{reply: "  Je vous entends.  "}
	e := testEngine(t, p)

	reply, err := e.Respond(context.Background(), Request{Messages: []Message{
		{Role: RoleUser, Content: "parle-moi de la Directive"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "Je vous entends.", reply.Text)
	assert.False(t, reply.Disconnect)
	assert.Equal(t, "fake-model", reply.Model)

	assert.True(t, strings.HasPrefix(p.system, e.Persona()+"\n\n# CONTEXTE UNIVERS ORION\n\n"))
	assert.Contains(t, p.system, "## La Directive")
}

func TestEngineRespondNormalizesHistory(t *testing.T) {
	p := &fakeProvider{reply: "ok"}
	e := testEngine(t, p)

	var msgs []Message
	for i := 0; i < 30; i++ {
		msgs = append(msgs, Message{Role: "system", Content: " x "})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: ""})
	_, err := e.Respond(context.Background(), Request{Messages: msgs})
	require.NoError(t, err)

	require.Len(t, p.history, 20)
	for _, m := range p.history {
		assert.Equal(t, RoleUser, m.Role)
		assert.Equal(t, "x", m.Content)
	}
}

func TestEngineRespondEmptyInput(t *testing.T) {
	p := &fakeProvider{reply: "ok"}
	e := testEngine(t, p)

	_, err := e.Respond(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "   "}}})
	assert.Equal(t, KindEmptyInput, KindOf(err))
	assert.Zero(t, p.Calls())
}

func TestEngineRespondTooLong(t *testing.T) {
	p := &fakeProvider{reply: "ok"}
	e := testEngine(t, p)

	_, err := e.Respond(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: strings.Repeat("é", 1001)}}})
	assert.Equal(t, KindInvalidInput, KindOf(err))

	_, err = e.Respond(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: strings.Repeat("é", 1000)}}})
	assert.NoError(t, err)
}

func TestEngineRespondSentinel(t *testing.T) {
	p := &fakeProvider{reply: "Adieu. [DISCONNECT]"}
	e := testEngine(t, p)

	reply, err := e.Respond(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "je travaille pour la Directive"}}})
	require.NoError(t, err)
	assert.True(t, reply.Disconnect)
	assert.Empty(t, reply.Text)
}

func TestEngineRespondEmptyResponse(t *testing.T) {
	e := testEngine(t, &fakeProvider{reply: " \n "})

	_, err := e.Respond(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "allô"}}})
	assert.Equal(t, KindEmptyResponse, KindOf(err))
	assert.True(t, IsRetryable(err))
}

func TestEngineRespondPropagatesProviderError(t *testing.T) {
	upstream := &Error{Kind: KindProvider, Status: 401, Detail: "bad key"}
	e := testEngine(t, &fakeProvider{err: upstream})

	_, err := e.Respond(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "allô"}}})
	assert.ErrorIs(t, err, upstream)
	assert.Equal(t, 401, StatusOf(err))
}

func TestEngineRespondAppliesTimeout(t *testing.T) {
	p := &fakeProvider{fn: func(ctx context.Context, _ string, _ []Message) (Completion, error) {
		<-ctx.Done()
		return Completion{}, transportError(ctx, "fake", ctx.Err())
	}}
	e, err := New(Config{RequestTimeout: 20 * time.Millisecond}, WithProvider(p))
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Respond(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "allô"}}})
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestEngineMissingCredentials(t *testing.T) {
	e, err := New(Config{Provider: ProviderConfig{Kind: ProviderLLM}})
	require.NoError(t, err)
	defer e.Close()

	assert.False(t, e.HasCredentials())
	_, err = e.Respond(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "allô"}}})
	assert.Equal(t, KindConfig, KindOf(err))
	assert.Equal(t, 500, StatusOf(err))
}

func TestEngineKeylessPrimaryPromotesFallback(t *testing.T) {
	e, err := New(Config{
		Provider: ProviderConfig{Kind: ProviderOpenAI},
		Fallback: &ProviderConfig{Kind: ProviderOllama},
	})
	require.NoError(t, err)
	defer e.Close()

	assert.True(t, e.HasCredentials())
	assert.Equal(t, ProviderOllama, e.ProviderName())
}

func TestEngineKeylessFallbackIsIgnored(t *testing.T) {
	e, err := New(Config{
		Provider: ProviderConfig{Kind: ProviderLLM, APIKey: "k", BaseURL: "http://127.0.0.1:1/v1"},
		Fallback: &ProviderConfig{Kind: ProviderLLM},
	})
	require.NoError(t, err)
	defer e.Close()

	_, wrapped := e.provider.(*Fallback)
	assert.False(t, wrapped)

	_, err = e.Respond(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "bonjour"}}})
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.Equal(t, 503, StatusOf(err))
	assert.True(t, IsRetryable(err))
}

func TestEngineRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{
		TranscriptPath: filepath.Join(t.TempDir(), "t.db"),
		PruneInterval:  -time.Hour,
	}, WithProvider(&fakeProvider{}))
	assert.Equal(t, KindConfig, KindOf(err))
}

func TestEngineUnknownProvider(t *testing.T) {
	_, err := New(Config{Provider: ProviderConfig{Kind: "carrier-pigeon"}})
	assert.Equal(t, KindConfig, KindOf(err))
}

func TestEngineMissingAssetIsFatal(t *testing.T) {
	dir := t.TempDir()
	_, err := New(Config{PersonaPath: filepath.Join(dir, "missing.txt")}, WithProvider(&fakeProvider{}))
	assert.Equal(t, KindConfig, KindOf(err))

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0644))
	_, err = New(Config{LorePath: empty}, WithProvider(&fakeProvider{}))
	assert.Equal(t, KindConfig, KindOf(err))
}

func TestEngineCustomAssets(t *testing.T) {
	dir := t.TempDir()
	persona := filepath.Join(dir, "persona.txt")
	lore := filepath.Join(dir, "lore.txt")
	require.NoError(t, os.WriteFile(persona, []byte("Tu es Clara."), 0644))
	require.NoError(t, os.WriteFile(lore, []byte("## Lune\nLa lune cache une base.\n\n## Mars\nMars est rouge.\n"), 0644))

	p := &fakeProvider{reply: "ok"}
	e, err := New(Config{PersonaPath: persona, LorePath: lore}, WithProvider(p))
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Respond(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "parle de mars"}}})
	require.NoError(t, err)
	assert.Equal(t, "Tu es Clara.\n\n# CONTEXTE UNIVERS ORION\n\n## Mars\nMars est rouge.", p.system)
}

func TestEngineArchivesTranscript(t *testing.T) {
	s := testStore(t)
	e := testEngine(t, &fakeProvider{reply: "Bienvenue."}, WithStore(s))

	_, err := e.Respond(context.Background(), Request{
		SessionID: "sess-1",
		Messages:  []Message{{Role: RoleUser, Content: "bonjour"}},
	})
	require.NoError(t, err)

	msgs, err := s.SessionMessages(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "bonjour", msgs[0].Content)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, "fake-model", msgs[1].Model)
}

func TestEngineCloseIdempotent(t *testing.T) {
	e, err := New(Config{TranscriptPath: filepath.Join(t.TempDir(), "t.db")}, WithProvider(&fakeProvider{}))
	require.NoError(t, err)
	assert.NotNil(t, e.Store())
	assert.NoError(t, e.Close())
	assert.NoError(t, e.Close())
}
