package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles contains lipgloss styles for command output
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Border  lipgloss.Style
}

// DefaultStyles returns the default lipgloss styles
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#044D22")),
		Label: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			Width(14),
		Value: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")), // Green
		Warning: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("226")), // Yellow
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")), // Red
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")), // Gray
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#044D22")).
			Padding(0, 1),
	}
}

// PlainStyles renders without color or borders, for pipes and tests
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Title:   plain,
		Label:   plain.Width(14),
		Value:   plain,
		Success: plain,
		Warning: plain,
		Error:   plain,
		Muted:   plain,
		Border:  plain,
	}
}

// Field is one labelled line of a panel
type Field struct {
	Label string
	Value string
}

// Panel renders a titled block of fields. Empty values print as "-".
func (s Styles) Panel(title string, fields []Field) string {
	var b strings.Builder
	b.WriteString(s.Title.Render(title))
	for _, f := range fields {
		v := f.Value
		if v == "" {
			v = "-"
		}
		b.WriteString("\n")
		b.WriteString(s.Label.Render(f.Label + ":"))
		b.WriteString(s.Value.Render(v))
	}
	return s.Border.Render(b.String())
}

// Check renders a ✓ or ✗ line.
func (s Styles) Check(ok bool, format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	if ok {
		return s.Success.Render("✓ " + msg)
	}
	return s.Error.Render("✗ " + msg)
}
