// Package console runs the interactive side of podctl: the in-place prompt,
// the operator input reader, the session loop and its supervisor.
package console

import (
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/openloop/podctl/internal/prompt"
	"github.com/openloop/podctl/internal/session"
)

// Source supplies the session state the prompt is rendered from.
type Source interface {
	Snapshot() session.Snapshot
}

// Console serializes everything written to the operator's terminal. The
// prompt occupies the current line and is redrawn in place with a carriage
// return; telemetry and notices overwrite it and the prompt follows them.
type Console struct {
	mu       sync.Mutex
	out      io.Writer
	styler   *prompt.Styler
	renderer *prompt.Renderer
	source   Source
	address  string
	lastErr  string
}

// New returns a console writing to out. A nil styler disables color.
func New(out io.Writer, styler *prompt.Styler) *Console {
	return &Console{
		out:      out,
		styler:   styler,
		renderer: prompt.NewRenderer(styler),
	}
}

// SetSource sets where prompt state comes from. Until a source is set the
// prompt shows only the connecting indicator.
func (c *Console) SetSource(src Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.source = src
}

// SetAddress sets the address shown while no source is attached.
func (c *Console) SetAddress(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.address = address
}

// SetConnectError annotates the connecting prompt with the cause of err. A nil
// err clears the annotation.
func (c *Console) SetConnectError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		c.lastErr = ""
		return
	}
	c.lastErr = rootCause(err).Error()
}

// Print writes telemetry verbatim after blanking the prompt it replaces.
func (c *Console) Print(text string) {
	if text == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.write(c.blank() + text)
	c.renderer.Track(text[strings.LastIndex(text, "\n")+1:])
}

// Notice writes a highlighted operator notice on a line of its own.
func (c *Console) Notice(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.write(c.blank() + c.styler.Highlight(text, prompt.ColorRed) + "\n")
	c.renderer.Track("")
}

// blank returns the sequence that erases the current line and returns the
// cursor to its start.
func (c *Console) blank() string {
	w := prompt.VisibleWidth(c.renderer.Last())
	if w == 0 {
		return "\r"
	}
	return "\r" + strings.Repeat(" ", w) + "\r"
}

// Redraw re-renders the prompt on the current line.
func (c *Console) Redraw() {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := prompt.View{Address: c.address, Err: c.lastErr}
	if c.source != nil {
		snap := c.source.Snapshot()
		view.Address = snap.Address
		view.State = snap.State
		view.HasState = snap.HasState
	}
	c.write("\r" + c.renderer.Render(view))
}

// Finish moves the cursor off the prompt line so the shell starts cleanly.
func (c *Console) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.write("\n")
	c.renderer.Track("")
}

func (c *Console) write(s string) {
	// The terminal going away is not something the console can report to.
	io.WriteString(c.out, s)
}

// rootCause returns the innermost error of a wrap chain, which for dial
// failures is the short system message such as "connection refused".
func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
