package cli

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/petekp/claude-hud-sub008/pkg/models"
)

// Colors is the palette used by every styled command. Each entry adapts to
// light and dark terminals (Kanagawa Dragon / Wave).
type Colors struct {
	Green  lipgloss.AdaptiveColor
	Yellow lipgloss.AdaptiveColor
	Red    lipgloss.AdaptiveColor
	Orange lipgloss.AdaptiveColor
	Cyan   lipgloss.AdaptiveColor
	Blue   lipgloss.AdaptiveColor
	Violet lipgloss.AdaptiveColor
	Muted  lipgloss.AdaptiveColor
	Border lipgloss.AdaptiveColor
}

// Theme bundles the colors with the styles built from them.
type Theme struct {
	Colors Colors

	Muted       lipgloss.Style
	Italic      lipgloss.Style
	Bold        lipgloss.Style
	Highlight   lipgloss.Style
	TableHeader lipgloss.Style
	Success     lipgloss.Style
	Error       lipgloss.Style
}

// DefaultTheme is shared by help, tables and the watch view.
var DefaultTheme = newTheme()

func newTheme() *Theme {
	c := Colors{
		Green:  lipgloss.AdaptiveColor{Light: "#4E7C5A", Dark: "#98BB6C"},
		Yellow: lipgloss.AdaptiveColor{Light: "#A68A64", Dark: "#FF9E3B"},
		Red:    lipgloss.AdaptiveColor{Light: "#C34043", Dark: "#FF5D62"},
		Orange: lipgloss.AdaptiveColor{Light: "#CC6B4E", Dark: "#FFA066"},
		Cyan:   lipgloss.AdaptiveColor{Light: "#5B8BBE", Dark: "#7E9CD8"},
		Blue:   lipgloss.AdaptiveColor{Light: "#4F7CAC", Dark: "#7FB4CA"},
		Violet: lipgloss.AdaptiveColor{Light: "#674D7A", Dark: "#957FB8"},
		Muted:  lipgloss.AdaptiveColor{Light: "#6C7086", Dark: "#727169"},
		Border: lipgloss.AdaptiveColor{Light: "#B5BDC5", Dark: "#363646"},
	}
	return &Theme{
		Colors:      c,
		Muted:       lipgloss.NewStyle().Foreground(c.Muted),
		Italic:      lipgloss.NewStyle().Italic(true),
		Bold:        lipgloss.NewStyle().Bold(true),
		Highlight:   lipgloss.NewStyle().Foreground(c.Cyan),
		TableHeader: lipgloss.NewStyle().Bold(true).Foreground(c.Orange),
		Success:     lipgloss.NewStyle().Bold(true).Foreground(c.Green),
		Error:       lipgloss.NewStyle().Bold(true).Foreground(c.Red),
	}
}

// State returns the style a session state is rendered with.
func (t *Theme) State(s models.SessionState) lipgloss.Style {
	switch s {
	case models.StateWorking:
		return lipgloss.NewStyle().Foreground(t.Colors.Yellow)
	case models.StateWaiting:
		return lipgloss.NewStyle().Bold(true).Foreground(t.Colors.Red)
	case models.StateCompacting:
		return lipgloss.NewStyle().Foreground(t.Colors.Violet)
	case models.StateReady:
		return lipgloss.NewStyle().Foreground(t.Colors.Green)
	default:
		return t.Muted
	}
}

// InitializeColor forces a true-color profile when the environment asks for
// it, so output captured by tests and CI keeps its styling.
func InitializeColor() {
	if os.Getenv("CLICOLOR_FORCE") == "1" || os.Getenv("COLORTERM") == "truecolor" {
		lipgloss.SetColorProfile(termenv.TrueColor)
	}
}
