package clara

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultLoreSections is the number of sections injected when none is configured.
const DefaultLoreSections = 4

// fallbackSections is how many leading sections are used when nothing matches.
const fallbackSections = 2

// minTokenLen is the shortest token kept by Tokenize. Shorter words are
// treated as stopwords, which also drops meaningful two and three letter words.
const minTokenLen = 4

const headingMarker = "##"

// Section is one labeled block of background lore.
type Section struct {
	Title string
	Body  string
}

// ParseLore splits a flat document into sections on "## " headings.
// Text before the first heading becomes an untitled section. Sections with
// an empty body are dropped.
func ParseLore(doc string) []Section {
	doc = strings.ReplaceAll(doc, "\r\n", "\n")

	var (
		sections []Section
		title    string
		body     []string
	)
	flush := func() {
		b := strings.TrimSpace(strings.Join(body, "\n"))
		if b != "" {
			sections = append(sections, Section{Title: title, Body: b})
		}
		body = body[:0]
	}

	for _, line := range strings.Split(doc, "\n") {
		if isHeading(line) {
			flush()
			title = strings.TrimSpace(strings.TrimPrefix(line, headingMarker))
			continue
		}
		body = append(body, line)
	}
	flush()
	return sections
}

// isHeading matches "##" alone or followed by a space; "###" does not match.
func isHeading(line string) bool {
	if !strings.HasPrefix(line, headingMarker) {
		return false
	}
	rest := line[len(headingMarker):]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t'
}

// Tokenize lowercases text, strips everything but letters, digits and
// whitespace, and returns the set of words longer than three runes.
func Tokenize(text string) map[string]struct{} {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, text)

	tokens := make(map[string]struct{})
	for _, w := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(w) < minTokenLen {
			continue
		}
		tokens[w] = struct{}{}
	}
	return tokens
}

// LoreSelector ranks a fixed set of sections against recent user input.
// It is immutable after construction and safe for concurrent use.
type LoreSelector struct {
	sections []Section
	tokens   []map[string]struct{}
}

// NewLoreSelector indexes sections for selection.
func NewLoreSelector(sections []Section) *LoreSelector {
	ls := &LoreSelector{
		sections: append([]Section(nil), sections...),
		tokens:   make([]map[string]struct{}, len(sections)),
	}
	for i, s := range sections {
		ls.tokens[i] = Tokenize(s.Title + " " + s.Body)
	}
	return ls
}

// Sections returns all indexed sections in document order.
func (ls *LoreSelector) Sections() []Section {
	return append([]Section(nil), ls.sections...)
}

type rankedSection struct {
	index int
	score int
}

// Select picks up to maxSections sections relevant to the user turns of
// history. Each query token present in a section counts once. With no user
// text it returns the leading sections; with no overlap at all it falls back
// to the first two sections so the model always gets some grounding.
func (ls *LoreSelector) Select(history []Message, maxSections int) []Section {
	if maxSections <= 0 {
		maxSections = DefaultLoreSections
	}
	if len(ls.sections) == 0 {
		return nil
	}

	var userText []string
	for _, m := range history {
		if m.Role == RoleUser {
			userText = append(userText, m.Content)
		}
	}
	query := Tokenize(strings.Join(userText, " "))
	if len(query) == 0 {
		return ls.leading(maxSections)
	}

	ranked := make([]rankedSection, len(ls.sections))
	for i, toks := range ls.tokens {
		score := 0
		for q := range query {
			if _, ok := toks[q]; ok {
				score++
			}
		}
		ranked[i] = rankedSection{index: i, score: score}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})

	var out []Section
	for _, r := range ranked {
		if r.score == 0 || len(out) == maxSections {
			break
		}
		out = append(out, ls.sections[r.index])
	}
	if len(out) == 0 {
		return ls.leading(fallbackSections)
	}
	return out
}

func (ls *LoreSelector) leading(n int) []Section {
	if n > len(ls.sections) {
		n = len(ls.sections)
	}
	return append([]Section(nil), ls.sections[:n]...)
}

// RenderLore formats sections as "## title\nbody" blocks separated by a blank line.
func RenderLore(sections []Section) string {
	blocks := make([]string, len(sections))
	for i, s := range sections {
		blocks[i] = headingMarker + " " + s.Title + "\n" + s.Body
	}
	return strings.Join(blocks, "\n\n")
}
