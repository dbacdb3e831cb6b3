package prompt

import (
	"io"
	"strings"
	"testing"

	"github.com/openloop/podctl/internal/podstate"
)

func TestOverwritePadsShorterLine(t *testing.T) {
	r := NewRenderer(nil)
	r.Overwrite(strings.Repeat("a", 20))

	got := r.Overwrite(strings.Repeat("b", 12))

	want := strings.Repeat("b", 12) + strings.Repeat(" ", 8)
	if got != want {
		t.Errorf("Overwrite() = %q, want %q", got, want)
	}
}

func TestOverwriteComparesVisibleWidth(t *testing.T) {
	s := NewStyler(io.Discard, true)
	r := NewRenderer(s)

	r.Overwrite(s.Highlight(strings.Repeat("a", 20), ColorRed))
	got := r.Overwrite(s.Highlight(strings.Repeat("b", 12), ColorGreen))

	stripped := Strip(got)
	if len(stripped) != 20 {
		t.Errorf("visible width = %d, want 20 (%q)", len(stripped), stripped)
	}
	if !strings.HasSuffix(got, strings.Repeat(" ", 8)) {
		t.Errorf("Overwrite() = %q, want 8 trailing spaces", got)
	}
}

func TestOverwriteLongerLineUnpadded(t *testing.T) {
	r := NewRenderer(nil)
	r.Overwrite("short")
	if got := r.Overwrite("a longer line"); got != "a longer line" {
		t.Errorf("Overwrite() = %q, want no padding", got)
	}
}

func TestRenderKnownState(t *testing.T) {
	r := NewRenderer(nil)
	got := r.Render(View{Address: "127.0.0.1:7779", State: podstate.Armed, HasState: true})
	if want := "Pod(127.0.0.1:7779 ARMD)> "; got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRenderIsStable(t *testing.T) {
	r := NewRenderer(nil)
	v := View{Address: "127.0.0.1:7779", State: podstate.Boot, HasState: true}
	first := r.Render(v)
	for i := 0; i < 3; i++ {
		if got := r.Render(v); got != first {
			t.Errorf("Render() #%d = %q, want %q", i+2, got, first)
		}
	}
}

func TestRenderIndicatorRotates(t *testing.T) {
	r := NewRenderer(nil)
	v := View{Address: "10.0.0.2:7779"}

	seen := make(map[string]bool)
	width := -1
	for i := 0; i < len(indicatorFrames); i++ {
		line := r.Render(v)
		if !strings.HasPrefix(line, "Pod(10.0.0.2:7779 ") || !strings.HasSuffix(line, ")> ") {
			t.Fatalf("Render() = %q, unexpected shape", line)
		}
		if width >= 0 && len(line) != width {
			t.Errorf("indicator frame changed width: %q", line)
		}
		width = len(line)
		seen[line] = true
	}
	if len(seen) != len(indicatorFrames) {
		t.Errorf("saw %d distinct frames, want %d", len(seen), len(indicatorFrames))
	}

	if again := r.Render(v); !seen[again] {
		t.Errorf("indicator did not cycle back: %q", again)
	}
}

func TestRenderConnectError(t *testing.T) {
	r := NewRenderer(nil)
	withErr := r.Render(View{Address: "127.0.0.1:7779", Err: "connection refused"})
	if !strings.Contains(withErr, "(connection refused)") {
		t.Errorf("Render() = %q, want error annotation", withErr)
	}

	// The following shorter prompt must cover the annotated one.
	plain := r.Render(View{Address: "127.0.0.1:7779", State: podstate.Boot, HasState: true})
	if len(plain) != len(withErr) {
		t.Errorf("len(Render()) = %d, want %d after a longer line", len(plain), len(withErr))
	}
}

func TestRenderColors(t *testing.T) {
	s := NewStyler(io.Discard, true)
	tests := []struct {
		name  string
		view  View
		color Color
	}{
		{"fault", View{Address: "a:1", State: podstate.Emergency, HasState: true}, ColorRed},
		{"nominal", View{Address: "a:1", State: podstate.Coasting, HasState: true}, ColorGreen},
		{"connecting", View{Address: "a:1"}, ColorYellow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := NewRenderer(s).Render(tt.view)
			body := strings.TrimSuffix(Strip(line), "> ")
			if want := s.Highlight(body, tt.color); !strings.HasPrefix(line, want) {
				t.Errorf("Render() = %q, want prefix %q", line, want)
			}
		})
	}
}

func TestHighlightAndStrip(t *testing.T) {
	s := NewStyler(io.Discard, true)
	h := s.Highlight("PING TIMEOUT!", ColorRed)
	if !strings.Contains(h, "\x1b[") {
		t.Errorf("Highlight() = %q, want ANSI markup", h)
	}
	if got := Strip(h); got != "PING TIMEOUT!" {
		t.Errorf("Strip() = %q, want %q", got, "PING TIMEOUT!")
	}
	if got := VisibleWidth(h); got != len("PING TIMEOUT!") {
		t.Errorf("VisibleWidth() = %d, want %d", got, len("PING TIMEOUT!"))
	}
}

func TestHighlightDisabled(t *testing.T) {
	s := NewStyler(io.Discard, false)
	if got := s.Highlight("text", ColorRed); got != "text" {
		t.Errorf("Highlight() = %q, want plain text", got)
	}

	var nilStyler *Styler
	if got := nilStyler.Highlight("text", ColorGreen); got != "text" {
		t.Errorf("nil Highlight() = %q, want plain text", got)
	}
}

func TestColorEnabledHonorsNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if ColorEnabled(nil) {
		t.Error("ColorEnabled() = true with NO_COLOR set")
	}
}
