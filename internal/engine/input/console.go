package input

import (
	"bufio"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/quick3d/internal/logger"
)

// ConsoleReader reads lines from r on a background goroutine so the frame
// loop can pick up commands without blocking.
type ConsoleReader struct {
	mu       sync.Mutex
	lines    []string
	finished bool
	closer   io.Closer
	done     chan struct{}
}

// NewConsoleReader starts reading r. If r is also an io.Closer, Close
// closes it to unblock the reader; for os.Stdin that closes the process's
// standard input.
func NewConsoleReader(r io.Reader) *ConsoleReader {
	c := &ConsoleReader{done: make(chan struct{})}
	if closer, ok := r.(io.Closer); ok {
		c.closer = closer
	}
	go c.read(r)
	return c
}

func (c *ConsoleReader) read(r io.Reader) {
	defer close(c.done)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c.mu.Lock()
		c.lines = append(c.lines, line)
		c.mu.Unlock()
	}
	if err := scanner.Err(); err != nil {
		logger.Debug("console reader stopped", zap.Error(err))
	}

	c.mu.Lock()
	c.finished = true
	c.mu.Unlock()
}

// Lines returns the lines read since the last call.
func (c *ConsoleReader) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := c.lines
	c.lines = nil
	return lines
}

// Finished reports whether the input reached EOF or failed.
func (c *ConsoleReader) Finished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished
}

// Done is closed when the reader goroutine exits.
func (c *ConsoleReader) Done() <-chan struct{} {
	return c.done
}

// Close closes the underlying reader when it supports it. The goroutine
// exits once the pending read returns.
func (c *ConsoleReader) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}
