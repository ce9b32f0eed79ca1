package clara

// EventKind identifies what a front end should do with an Event.
type EventKind string

const (
	EventLine     EventKind = "line"     // scripted line, typed out
	EventQuestion EventKind = "question" // yes/no prompt awaiting input
	EventReply    EventKind = "reply"    // Clara's free-chat answer
	EventSystem   EventKind = "system"   // status or error notice
	EventMode     EventKind = "mode"     // session switched mode; Text holds the new mode
	EventEnd      EventKind = "end"      // session closed; Text holds the reason
)

// Event is one front-end instruction produced by a Session.
type Event struct {
	Kind  EventKind `json:"kind"`
	Text  string    `json:"text"`
	Style Style     `json:"style,omitempty"`
}

// DisconnectNotice is shown when Clara ends a free-chat session.
const DisconnectNotice = "Clara a quitté le canal. Connexion interrompue."

func stepEvents(step Step) []Event {
	events := make([]Event, 0, len(step.Lines)+2)
	for _, l := range step.Lines {
		style := l.Style
		if style == "" {
			style = StyleClara
		}
		events = append(events, Event{Kind: EventLine, Text: l.Text, Style: style})
	}
	if step.Question != "" {
		events = append(events, Event{Kind: EventQuestion, Text: step.Question, Style: StyleClara})
	}
	switch step.Outcome {
	case OutcomeSwitchToChat:
		events = append(events, Event{Kind: EventMode, Text: ModeFree.String()})
	case OutcomeEnded, OutcomeCorrupted:
		events = append(events, Event{Kind: EventEnd, Text: step.Outcome.String()})
	}
	return events
}
