package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Semantic colors, same in both modes
var (
	colorSuccess = lipgloss.Color("#8BC34A") // Lime Green
	colorError   = lipgloss.Color("#e53935") // Red
	colorWarning = lipgloss.Color("#FFC107") // Yellow
	colorInfo    = lipgloss.Color("#2196F3") // Blue

	lightForeground = lipgloss.Color("#101F38")
	lightMuted      = lipgloss.Color("#6b7280")
	darkForeground  = lipgloss.Color("#f2f2f2")
	darkMuted       = lipgloss.Color("#8a94a6")
)

// styles holds the rendered output components for forge commands.
type styles struct {
	Title   lipgloss.Style
	Body    lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Code    lipgloss.Style
	Badge   lipgloss.Style
}

func newStyles(dark bool) styles {
	fg, muted := lightForeground, lightMuted
	if dark {
		fg, muted = darkForeground, darkMuted
	}
	return styles{
		Title:   lipgloss.NewStyle().Foreground(fg).Bold(true),
		Body:    lipgloss.NewStyle().Foreground(fg),
		Muted:   lipgloss.NewStyle().Foreground(muted),
		Bold:    lipgloss.NewStyle().Bold(true),
		Success: lipgloss.NewStyle().Foreground(colorSuccess).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(colorError).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(colorWarning),
		Info:    lipgloss.NewStyle().Foreground(colorInfo),
		Code: lipgloss.NewStyle().
			Foreground(fg).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1),
		Badge: lipgloss.NewStyle().
			Foreground(darkForeground).
			Background(colorInfo).
			Padding(0, 1),
	}
}

// detectDarkMode checks the terminal background via COLORFGBG, then the
// FORGE_DARK_MODE escape hatch. Defaults to light.
func detectDarkMode() bool {
	if colorTerm := os.Getenv("COLORFGBG"); colorTerm != "" {
		// Format is usually "foreground;background"
		parts := strings.Split(colorTerm, ";")
		if len(parts) == 2 {
			if bgIdx, err := strconv.Atoi(parts[1]); err == nil {
				// ANSI indexes 0-6 and 8 are dark backgrounds
				if (bgIdx >= 0 && bgIdx <= 6) || bgIdx == 8 {
					return true
				}
			}
		}
	}
	return os.Getenv("FORGE_DARK_MODE") == "1"
}

var out = newStyles(detectDarkMode())

func divider() string {
	return out.Muted.Render(strings.Repeat("─", 50))
}
