package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles holds the lipgloss styles used for text output.
type Styles struct {
	Header1    lipgloss.Style
	Header2    lipgloss.Style
	Bold       lipgloss.Style
	Muted      lipgloss.Style
	Success    lipgloss.Style
	Warning    lipgloss.Style
	Error      lipgloss.Style
	Info       lipgloss.Style
	ColumnName lipgloss.Style
	Bar        lipgloss.Style

	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
}

// NewStyles builds the style set on lr.
func NewStyles(lr *lipgloss.Renderer) *Styles {
	return &Styles{
		Header1:    lr.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Header2:    lr.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		Bold:       lr.NewStyle().Bold(true),
		Muted:      lr.NewStyle().Foreground(lipgloss.Color("8")),
		Success:    lr.NewStyle().Foreground(lipgloss.Color("10")),
		Warning:    lr.NewStyle().Foreground(lipgloss.Color("11")),
		Error:      lr.NewStyle().Foreground(lipgloss.Color("9")),
		Info:       lr.NewStyle().Foreground(lipgloss.Color("12")),
		ColumnName: lr.NewStyle().Foreground(lipgloss.Color("13")),
		Bar:        lr.NewStyle().Foreground(lipgloss.Color("6")),

		StatusSuccess: lr.NewStyle().Foreground(lipgloss.Color("10")).SetString("✓"),
		StatusFailed:  lr.NewStyle().Foreground(lipgloss.Color("9")).SetString("✗"),
	}
}

// FormatHeader returns a markdown header.
func FormatHeader(level int, text string) string {
	level = max(1, min(level, 6))
	return strings.Repeat("#", level) + " " + text
}

// FormatKeyValue returns a markdown list item with a bold key.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("- **%s**: %s", key, value)
}
