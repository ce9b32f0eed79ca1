package clara

import (
	"fmt"
	"strings"
)

// Style tags a scripted line for the front end (color, effect).
type Style string

const (
	StyleSystem  Style = "system"
	StyleClara   Style = "clara"
	StyleWarning Style = "warning"
	StyleGlitch  Style = "glitch"
	StyleUser    Style = "user"
)

// Line is one displayed line of a dialogue node.
type Line struct {
	Text  string `yaml:"text" json:"text" jsonschema:"required,description=Displayed text"`
	Style Style  `yaml:"style,omitempty" json:"style,omitempty" jsonschema:"description=Style tag (system clara warning glitch)"`
}

// Action is the terminal behavior of a node without a question.
type Action string

const (
	ActionEndSession   Action = "end-session"
	ActionSwitchToChat Action = "switch-to-chat"
)

// Node is one step of the scripted dialogue graph.
// It is either a *QuestionNode or an *ActionNode.
type Node interface {
	NodeID() string
	NodeLines() []Line
	isNode()
}

// QuestionNode asks a yes/no question and branches on the answer.
type QuestionNode struct {
	ID       string
	Lines    []Line
	Question string
	Yes      string // node reached on an affirmative answer
	No       string // node reached on a negative answer
}

// ActionNode ends the scripted phase.
type ActionNode struct {
	ID     string
	Lines  []Line
	Action Action
}

func (n *QuestionNode) NodeID() string    { return n.ID }
func (n *QuestionNode) NodeLines() []Line { return n.Lines }
func (*QuestionNode) isNode()             {}

func (n *ActionNode) NodeID() string    { return n.ID }
func (n *ActionNode) NodeLines() []Line { return n.Lines }
func (*ActionNode) isNode()             {}

// Default texts used when a script does not provide its own.
var (
	DefaultGuidance  = Line{Text: "Répondez par OUI ou NON.", Style: StyleWarning}
	DefaultCorrupted = []Line{
		{Text: "ERREUR // SÉQUENCE D'AUTHENTIFICATION CORROMPUE", Style: StyleGlitch},
		{Text: "Connexion terminée.", Style: StyleSystem},
	}
)

// Script is a validated, immutable dialogue graph.
type Script struct {
	start     string
	nodes     map[string]Node
	order     []string
	guidance  Line
	corrupted []Line
}

// ScriptOption customizes a Script.
type ScriptOption func(*Script)

// WithGuidance sets the re-prompt line shown after a first invalid answer.
func WithGuidance(l Line) ScriptOption {
	return func(s *Script) { s.guidance = l }
}

// WithCorrupted sets the lines shown when a session is aborted.
func WithCorrupted(lines []Line) ScriptOption {
	return func(s *Script) { s.corrupted = lines }
}

// NewScript builds a script and checks the graph invariants: unique non-empty
// ids, a known start node, resolvable yes/no targets, non-empty questions and
// known actions.
func NewScript(start string, nodes []Node, opts ...ScriptOption) (*Script, error) {
	s := &Script{
		start:     start,
		nodes:     make(map[string]Node, len(nodes)),
		guidance:  DefaultGuidance,
		corrupted: DefaultCorrupted,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, n := range nodes {
		if n == nil {
			return nil, fmt.Errorf("script: nil node")
		}
		id := n.NodeID()
		if id == "" {
			return nil, fmt.Errorf("script: node with empty id")
		}
		if _, dup := s.nodes[id]; dup {
			return nil, fmt.Errorf("script: duplicate node %q", id)
		}
		s.nodes[id] = n
		s.order = append(s.order, id)
	}

	if _, ok := s.nodes[start]; !ok {
		return nil, fmt.Errorf("script: start node %q not declared", start)
	}

	for _, id := range s.order {
		switch n := s.nodes[id].(type) {
		case *QuestionNode:
			if strings.TrimSpace(n.Question) == "" {
				return nil, fmt.Errorf("script: node %q has an empty question", id)
			}
			for _, target := range []string{n.Yes, n.No} {
				if _, ok := s.nodes[target]; !ok {
					return nil, fmt.Errorf("script: node %q points to undeclared node %q", id, target)
				}
			}
		case *ActionNode:
			if n.Action != ActionEndSession && n.Action != ActionSwitchToChat {
				return nil, fmt.Errorf("script: node %q has unknown action %q", id, n.Action)
			}
		}
	}
	return s, nil
}

// Start returns the designated start node id.
func (s *Script) Start() string { return s.start }

// Node looks up a node by id.
func (s *Script) Node(id string) (Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// Nodes returns every node in declaration order.
func (s *Script) Nodes() []Node {
	out := make([]Node, len(s.order))
	for i, id := range s.order {
		out[i] = s.nodes[id]
	}
	return out
}

// Outcome is what a walker step leaves the session waiting for.
type Outcome int

const (
	OutcomeAwaiting     Outcome = iota // a question is pending
	OutcomeReprompt                    // invalid answer, question asked again
	OutcomeSwitchToChat                // scripted phase over, free chat begins
	OutcomeEnded                       // the script ended the session
	OutcomeCorrupted                   // too many invalid answers
	OutcomeIgnored                     // no question was pending
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAwaiting:
		return "awaiting"
	case OutcomeReprompt:
		return "reprompt"
	case OutcomeSwitchToChat:
		return "switch-to-chat"
	case OutcomeEnded:
		return "ended"
	case OutcomeCorrupted:
		return "corrupted"
	case OutcomeIgnored:
		return "ignored"
	}
	return "unknown"
}

// Step is the visible result of entering a node or answering a question.
type Step struct {
	Lines    []Line
	Question string
	Outcome  Outcome
}

// Terminal reports whether the walker accepts no further answers after this step.
func (s Step) Terminal() bool {
	return s.Outcome == OutcomeSwitchToChat || s.Outcome == OutcomeEnded || s.Outcome == OutcomeCorrupted
}

// maxInvalidAnswers is the number of consecutive invalid answers that aborts a session.
const maxInvalidAnswers = 2

// Walker advances one session through a Script.
type Walker struct {
	script  *Script
	current *QuestionNode // nil when no question is pending
	invalid int
	done    bool
}

// NewWalker creates a walker positioned before the start node.
func NewWalker(s *Script) *Walker {
	return &Walker{script: s}
}

// Begin enters the start node.
func (w *Walker) Begin() Step {
	return w.Enter(w.script.start)
}

// Enter emits the lines of node id and performs its question or action.
// An unknown id is a programming error and panics.
func (w *Walker) Enter(id string) Step {
	n, ok := w.script.nodes[id]
	if !ok {
		panic(fmt.Sprintf("clara: walker entered unknown node %q", id))
	}

	w.invalid = 0
	w.current = nil
	step := Step{Lines: append([]Line(nil), n.NodeLines()...)}

	switch n := n.(type) {
	case *ActionNode:
		w.done = true
		if n.Action == ActionSwitchToChat {
			step.Outcome = OutcomeSwitchToChat
		} else {
			step.Outcome = OutcomeEnded
		}
	case *QuestionNode:
		w.current = n
		step.Question = n.Question
		step.Outcome = OutcomeAwaiting
	}
	return step
}

// Answer consumes a raw yes/no reply to the pending question.
func (w *Walker) Answer(raw string) Step {
	if w.current == nil {
		return Step{Outcome: OutcomeIgnored}
	}

	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "oui":
		return w.Enter(w.current.Yes)
	case "no", "non":
		return w.Enter(w.current.No)
	}

	w.invalid++
	if w.invalid >= maxInvalidAnswers {
		w.current = nil
		w.done = true
		return Step{Lines: append([]Line(nil), w.script.corrupted...), Outcome: OutcomeCorrupted}
	}
	return Step{
		Lines:    []Line{w.script.guidance},
		Question: w.current.Question,
		Outcome:  OutcomeReprompt,
	}
}

// Pending reports whether a question awaits an answer.
func (w *Walker) Pending() bool { return w.current != nil }

// Done reports whether the walker reached a terminal state.
func (w *Walker) Done() bool { return w.done }

// Current returns the id of the node awaiting an answer, or "".
func (w *Walker) Current() string {
	if w.current == nil {
		return ""
	}
	return w.current.ID
}
