// Package prompt renders the single status line the console redraws in place.
package prompt

import (
	"strings"

	"github.com/openloop/podctl/internal/podstate"
)

// indicatorFrames cycle while no state has been reported. Every frame is as
// wide as a state short code so the prompt does not jitter.
var indicatorFrames = []string{"    ", ".   ", "..  ", "... ", "...."}

// View is everything the prompt line is derived from.
type View struct {
	Address  string
	State    podstate.State
	HasState bool
	// Err is the last connect error, shown while no state is known.
	Err string
}

// Renderer builds prompt lines and pads each one so it fully covers the line
// drawn before it. It is not safe for concurrent use; the console serializes
// access.
type Renderer struct {
	styler *Styler
	last   string
	phase  int
}

// NewRenderer returns a renderer using styler for colors. A nil styler
// renders plain text.
func NewRenderer(styler *Styler) *Renderer {
	return &Renderer{styler: styler}
}

// Render returns the prompt for v, padded against the previous line. Each
// call without a known state advances the connecting indicator.
func (r *Renderer) Render(v View) string {
	var body strings.Builder
	body.WriteString("Pod(")
	body.WriteString(v.Address)
	body.WriteByte(' ')

	color := ColorYellow
	if v.HasState {
		body.WriteString(v.State.ShortCode())
		if v.State.IsFault() {
			color = ColorRed
		} else {
			color = ColorGreen
		}
	} else {
		body.WriteString(indicatorFrames[r.phase%len(indicatorFrames)])
		r.phase++
	}
	body.WriteByte(')')

	line := r.styler.Highlight(body.String(), color)
	if v.Err != "" && !v.HasState {
		line += " " + r.styler.Highlight("("+v.Err+")", ColorRed)
	}
	line += r.styler.Highlight(">", color) + " "

	return r.Overwrite(line)
}

// Overwrite pads line with trailing spaces when it is visibly narrower than
// the previous line, and remembers it for the next comparison.
func (r *Renderer) Overwrite(line string) string {
	prev := VisibleWidth(r.last)
	r.last = line
	if w := VisibleWidth(line); w < prev {
		return line + strings.Repeat(" ", prev-w)
	}
	return line
}

// Track records line as what the terminal currently shows, without rendering.
func (r *Renderer) Track(line string) {
	r.last = line
}

// Last returns the previously rendered line.
func (r *Renderer) Last() string {
	return r.last
}
