package clara

import "strings"

// NormalizeMessages coerces roles, trims content, drops empty turns and keeps
// only the most recent limit messages. A limit <= 0 keeps everything.
func NormalizeMessages(msgs []Message, limit int) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		role := RoleUser
		if m.Role == RoleAssistant {
			role = RoleAssistant
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		out = append(out, Message{Role: role, Content: content})
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// History is the bounded, ordered message log of one session.
// It is not safe for concurrent use; a Session serializes access.
type History struct {
	limit int
	msgs  []Message
}

// NewHistory creates a history retaining at most limit messages.
func NewHistory(limit int) *History {
	if limit <= 0 || limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return &History{limit: limit}
}

// Append adds a message, evicting the oldest ones beyond the limit.
// Blank content is ignored.
func (h *History) Append(role Role, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	h.msgs = append(h.msgs, Message{Role: role, Content: content})
	if len(h.msgs) > h.limit {
		h.msgs = append([]Message(nil), h.msgs[len(h.msgs)-h.limit:]...)
	}
}

// Messages returns a copy of the retained messages in insertion order.
func (h *History) Messages() []Message {
	return append([]Message(nil), h.msgs...)
}

// Len returns the number of retained messages.
func (h *History) Len() int { return len(h.msgs) }

// Snapshot captures the current contents for a later Restore.
func (h *History) Snapshot() []Message { return h.Messages() }

// Restore replaces the contents with a previous Snapshot.
func (h *History) Restore(snap []Message) {
	h.msgs = append([]Message(nil), snap...)
}
