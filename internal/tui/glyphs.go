package tui

import (
	"os"
	"strings"
)

// Glyph sets for board affordances. Some terminal fonts render box-drawing and arrows
// poorly, so an ASCII fallback is available via TASKBOARD_TUI_GLYPHS=ascii.

type glyphSet int

const (
	glyphSetUnicode glyphSet = iota
	glyphSetASCII
)

func glyphPreference() glyphSet {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("TASKBOARD_TUI_GLYPHS"))) {
	case "ascii":
		return glyphSetASCII
	default:
		return glyphSetUnicode
	}
}

type glyphs struct {
	Arrow   string
	HRule   string
	Grip    string
	Overdue string
	Spinner []string
}

func glyphsFor(gs glyphSet) glyphs {
	if gs == glyphSetASCII {
		return glyphs{Arrow: "->", HRule: "-", Grip: "=", Overdue: "!", Spinner: []string{"|", "/", "-", "\\"}}
	}
	return glyphs{Arrow: "→", HRule: "─", Grip: "⠿", Overdue: "▲", Spinner: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}}
}
