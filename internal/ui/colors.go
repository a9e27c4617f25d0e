package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FFA500", "#FF0000", "#626262")

// Palette holds the styles used by the identity table and the sync summary.
type Palette struct {
	heading lipgloss.Style
	good    lipgloss.Style
	stale   lipgloss.Style
	broken  lipgloss.Style
	hint    lipgloss.Style
}

// NewPalette builds a palette from foreground colors for headings, healthy,
// stale and broken values, and hints.
func NewPalette(heading, good, stale, broken, hint string) *Palette {
	return &Palette{
		heading: bold(heading).MarginBottom(1),
		good:    bold(good),
		stale:   fg(stale),
		broken:  bold(broken),
		hint:    fg(hint).Italic(true),
	}
}

func (p *Palette) Title(s string) string { return p.heading.Render(s) }
func (p *Palette) OK(s string) string    { return p.good.Render(s) }
func (p *Palette) Warn(s string) string  { return p.stale.Render(s) }
func (p *Palette) Err(s string) string   { return p.broken.Render(s) }
func (p *Palette) Help(s string) string  { return p.hint.Render(s) }

func fg(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

func bold(color string) lipgloss.Style {
	return fg(color).Bold(true)
}
