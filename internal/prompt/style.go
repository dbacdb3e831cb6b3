package prompt

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Color is a semantic highlight color.
type Color int

const (
	ColorNone Color = iota
	ColorRed
	ColorGreen
	ColorYellow
)

// Styler applies highlight colors, or nothing when color is disabled.
type Styler struct {
	enabled bool
	styles  map[Color]lipgloss.Style
}

// NewStyler returns a styler writing ANSI colors when enabled.
func NewStyler(w io.Writer, enabled bool) *Styler {
	r := lipgloss.NewRenderer(w)
	if enabled {
		r.SetColorProfile(termenv.ANSI)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}

	return &Styler{
		enabled: enabled,
		styles: map[Color]lipgloss.Style{
			ColorRed:    r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
			ColorGreen:  r.NewStyle().Foreground(lipgloss.Color("2")),
			ColorYellow: r.NewStyle().Foreground(lipgloss.Color("3")),
		},
	}
}

// Highlight wraps text in the markup for c.
func (s *Styler) Highlight(text string, c Color) string {
	if s == nil || !s.enabled || text == "" {
		return text
	}
	style, ok := s.styles[c]
	if !ok {
		return text
	}
	return style.Render(text)
}

// Strip removes terminal markup from text.
func Strip(text string) string {
	return ansi.Strip(text)
}

// VisibleWidth returns the number of terminal cells text occupies.
func VisibleWidth(text string) int {
	return ansi.StringWidth(text)
}

// ColorEnabled reports whether f should receive color, honoring NO_COLOR and
// TERM=dumb.
func ColorEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
