package console

import (
	"bufio"
	"io"

	"github.com/openloop/podctl/internal/logger"
)

// maxLineSize bounds a single operator line.
const maxLineSize = 64 * 1024

// ReadLines reads newline-terminated lines from r on its own goroutine. The
// returned channel is closed at end of input. It is started once per process
// and shared by every run of the loop.
func ReadLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 4096), maxLineSize)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			logger.Error("Operator input failed", "error", err)
		}
	}()
	return lines
}
