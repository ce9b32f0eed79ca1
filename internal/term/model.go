// Package term is the terminal front end: it types out session events one
// rune at a time and relays the user's input to a clara.Session.
package term

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/goblincore/clara"
)

// TypeInterval is the delay between two typed runes.
const TypeInterval = 25 * time.Millisecond

const closedPlaceholder = "Connexion interrompue"

// Messages for tea updates
type (
	typeTickMsg struct{}
	eventsMsg   []clara.Event
	errMsg      struct{ err error }
)

// typing is the event currently being revealed.
type typing struct {
	event clara.Event
	runes []rune
	shown int
}

// Model is the bubbletea model of one terminal session.
type Model struct {
	session  *clara.Session
	timeout  time.Duration
	interval time.Duration

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	styles   Styles
	renderer *glamour.TermRenderer

	lines   []string
	queue   []clara.Event
	current *typing
	busy    bool
	closed  bool
	width   int
}

// Option customizes a Model.
type Option func(*Model)

// WithTypeInterval changes the typewriter speed. Zero reveals events instantly.
func WithTypeInterval(d time.Duration) Option {
	return func(m *Model) { m.interval = d }
}

// WithTimeout bounds each submitted turn.
func WithTimeout(d time.Duration) Option {
	return func(m *Model) { m.timeout = d }
}

// WithRenderer sets the markdown renderer used for Clara's replies. Nil
// disables markdown rendering.
func WithRenderer(r *glamour.TermRenderer) Option {
	return func(m *Model) { m.renderer = r }
}

// New creates the model for session s.
func New(s *clara.Session, opts ...Option) Model {
	styles := DefaultStyles()

	ti := textinput.New()
	ti.Placeholder = "oui / non"
	ti.Focus()
	ti.Prompt = "> "
	ti.CharLimit = 1000
	ti.Width = 80
	ti.PromptStyle = styles.Prompt

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	vp := viewport.New(80, 20)

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	m := Model{
		session:  s,
		timeout:  90 * time.Second,
		interval: TypeInterval,
		input:    ti,
		viewport: vp,
		spinner:  sp,
		styles:   styles,
		renderer: renderer,
		width:    80,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	s := m.session
	return tea.Batch(
		textinput.Blink,
		func() tea.Msg { return eventsMsg(s.Start()) },
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}
		if m.inputEnabled() {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-3, 1)
		m.input.Width = max(msg.Width-4, 10)
		if m.renderer != nil {
			m.renderer, _ = glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(max(msg.Width-4, 20)),
			)
		}
		m.refresh()
		return m, nil

	case eventsMsg:
		m.busy = false
		m.queue = append(m.queue, msg...)
		return m, m.advance()

	case errMsg:
		m.busy = false
		if errors.Is(msg.err, clara.ErrSessionClosed) {
			m.close()
			return m, nil
		}
		m.lines = append(m.lines, m.styles.Error.Render("[erreur] "+clara.DetailOf(msg.err)))
		m.refresh()
		return m, nil

	case typeTickMsg:
		return m, m.tick()

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// submit sends the input line to the session.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if !m.inputEnabled() {
		return m, nil
	}
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	m.input.Reset()
	m.lines = append(m.lines, m.styles.User.Render("> "+text))
	m.busy = true
	m.refresh()

	s, timeout := m.session, m.timeout
	call := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		events, err := s.Submit(ctx, text)
		if err != nil {
			return errMsg{err}
		}
		return eventsMsg(events)
	}
	return m, tea.Batch(call, m.spinner.Tick)
}

// advance starts typing the next queued event, applying non-text events
// immediately.
func (m *Model) advance() tea.Cmd {
	for m.current == nil && len(m.queue) > 0 {
		ev := m.queue[0]
		m.queue = m.queue[1:]

		switch ev.Kind {
		case clara.EventMode:
			if ev.Text == clara.ModeFree.String() {
				m.input.Placeholder = "Parlez à Clara..."
			}
			continue
		case clara.EventEnd:
			m.close()
			continue
		}

		m.current = &typing{event: ev, runes: []rune(ev.Text)}
		if m.interval <= 0 {
			m.current.shown = len(m.current.runes)
			m.finish()
		}
	}
	m.refresh()
	if m.current == nil {
		return nil
	}
	return m.scheduleTick()
}

// tick reveals one more rune of the current event.
func (m *Model) tick() tea.Cmd {
	if m.current == nil {
		return nil
	}
	m.current.shown++
	if m.current.shown >= len(m.current.runes) {
		m.finish()
		return m.advance()
	}
	m.refresh()
	return m.scheduleTick()
}

func (m *Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return typeTickMsg{} })
}

// finish commits the current event as a rendered line.
func (m *Model) finish() {
	ev := m.current.event
	m.current = nil
	m.lines = append(m.lines, m.render(ev))
}

func (m *Model) render(ev clara.Event) string {
	if ev.Kind == clara.EventReply && m.renderer != nil {
		if out, err := m.renderer.Render(ev.Text); err == nil {
			return strings.TrimRight(out, "\n")
		}
	}
	return m.styles.For(ev.Style).Render(ev.Text)
}

func (m *Model) close() {
	m.closed = true
	m.input.Reset()
	m.input.Placeholder = closedPlaceholder
	m.input.Blur()
}

func (m *Model) inputEnabled() bool {
	return !m.busy && !m.closed && m.current == nil && len(m.queue) == 0
}

func (m *Model) refresh() {
	content := append([]string(nil), m.lines...)
	if m.current != nil {
		partial := string(m.current.runes[:m.current.shown])
		content = append(content, m.styles.For(m.current.event.Style).Render(partial))
	}
	m.viewport.SetContent(strings.Join(content, "\n"))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Header.Render("ORION // CANAL CLARA"))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.busy {
		b.WriteString(m.spinner.View() + " ")
	}
	b.WriteString(m.input.View())
	return b.String()
}

// Lines returns the committed transcript lines, styled.
func (m Model) Lines() []string { return append([]string(nil), m.lines...) }

// Closed reports whether the session has ended.
func (m Model) Closed() bool { return m.closed }

// Busy reports whether a turn is in flight.
func (m Model) Busy() bool { return m.busy }

// Typing returns the partially revealed text of the current event.
func (m Model) Typing() string {
	if m.current == nil {
		return ""
	}
	return string(m.current.runes[:m.current.shown])
}

// Run starts the terminal UI for s and blocks until the user quits.
func Run(s *clara.Session, opts ...Option) error {
	p := tea.NewProgram(New(s, opts...), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
