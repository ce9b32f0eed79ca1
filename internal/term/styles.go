package term

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/goblincore/clara"
)

// Styles maps event style tags to terminal styles.
type Styles struct {
	System  lipgloss.Style
	Clara   lipgloss.Style
	Warning lipgloss.Style
	Glitch  lipgloss.Style
	User    lipgloss.Style
	Error   lipgloss.Style
	Header  lipgloss.Style
	Prompt  lipgloss.Style
	Spinner lipgloss.Style
}

// DefaultStyles is the green-on-black terminal look of the Orion network.
func DefaultStyles() Styles {
	return Styles{
		System:  lipgloss.NewStyle().Foreground(lipgloss.Color("#5f8787")).Italic(true),
		Clara:   lipgloss.NewStyle().Foreground(lipgloss.Color("#87ffaf")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#ffaf00")).Bold(true),
		Glitch:  lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f87")).Strikethrough(true),
		User:    lipgloss.NewStyle().Foreground(lipgloss.Color("#d0d0d0")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f")),
		Header:  lipgloss.NewStyle().Foreground(lipgloss.Color("#87ffaf")).Bold(true).Padding(0, 1),
		Prompt:  lipgloss.NewStyle().Foreground(lipgloss.Color("#87ffaf")),
		Spinner: lipgloss.NewStyle().Foreground(lipgloss.Color("#5f8787")),
	}
}

// For returns the style of a scripted or chat line.
func (s Styles) For(style clara.Style) lipgloss.Style {
	switch style {
	case clara.StyleSystem:
		return s.System
	case clara.StyleWarning:
		return s.Warning
	case clara.StyleGlitch:
		return s.Glitch
	case clara.StyleUser:
		return s.User
	default:
		return s.Clara
	}
}
