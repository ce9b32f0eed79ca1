package clara

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// scriptDoc is the on-disk form of a dialogue script.
type scriptDoc struct {
	Start     string    `yaml:"start" json:"start" jsonschema:"required,description=Id of the node entered first"`
	Guidance  *Line     `yaml:"guidance,omitempty" json:"guidance,omitempty" jsonschema:"description=Line shown after a first invalid answer"`
	Corrupted []Line    `yaml:"corrupted,omitempty" json:"corrupted,omitempty" jsonschema:"description=Lines shown when the session is aborted"`
	Nodes     []nodeDoc `yaml:"nodes" json:"nodes" jsonschema:"required,minItems=1"`
}

type nodeDoc struct {
	ID       string `yaml:"id" json:"id" jsonschema:"required"`
	Lines    []Line `yaml:"lines,omitempty" json:"lines,omitempty"`
	Question string `yaml:"question,omitempty" json:"question,omitempty" jsonschema:"description=Yes/no question; mutually exclusive with action"`
	Yes      string `yaml:"yes,omitempty" json:"yes,omitempty" jsonschema:"description=Node reached on oui/yes"`
	No       string `yaml:"no,omitempty" json:"no,omitempty" jsonschema:"description=Node reached on non/no"`
	Action   string `yaml:"action,omitempty" json:"action,omitempty" jsonschema:"enum=end-session,enum=switch-to-chat"`
}

func (d nodeDoc) node() (Node, error) {
	switch {
	case d.Question != "" && d.Action != "":
		return nil, fmt.Errorf("node %q has both a question and an action", d.ID)
	case d.Question != "":
		return &QuestionNode{ID: d.ID, Lines: d.Lines, Question: d.Question, Yes: d.Yes, No: d.No}, nil
	case d.Action != "":
		if d.Yes != "" || d.No != "" {
			return nil, fmt.Errorf("node %q is terminal but declares yes/no targets", d.ID)
		}
		return &ActionNode{ID: d.ID, Lines: d.Lines, Action: Action(d.Action)}, nil
	default:
		return nil, fmt.Errorf("node %q needs a question or an action", d.ID)
	}
}

// ParseScript decodes and validates a YAML dialogue script.
func ParseScript(data []byte) (*Script, error) {
	var doc scriptDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("script: decode: %w", err)
	}

	nodes := make([]Node, 0, len(doc.Nodes))
	for _, nd := range doc.Nodes {
		n, err := nd.node()
		if err != nil {
			return nil, fmt.Errorf("script: %w", err)
		}
		nodes = append(nodes, n)
	}

	var opts []ScriptOption
	if doc.Guidance != nil {
		opts = append(opts, WithGuidance(*doc.Guidance))
	}
	if len(doc.Corrupted) > 0 {
		opts = append(opts, WithCorrupted(doc.Corrupted))
	}
	return NewScript(doc.Start, nodes, opts...)
}

// LoadScript reads a script file, or the embedded intro when path is empty.
func LoadScript(path string) (*Script, error) {
	if path == "" {
		return ParseScript(defaultScript)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(KindConfig, "read script "+path, err)
	}
	return ParseScript(data)
}
