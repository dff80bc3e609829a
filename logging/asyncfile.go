package logging

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/acarl005/stripansi"
)

var errLogClosed = errors.New("run log is closed")

// lineLog appends plain-text lines to a file from a background goroutine so
// result sinks never block on disk I/O. Colour codes are removed before writing.
type lineLog struct {
	lines chan string
	done  chan struct{}

	mu     sync.Mutex
	closed bool

	// written and err are owned by the writer goroutine until done is closed.
	written int
	err     error
}

func openLineLog(path string) (*lineLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", path, err)
	}
	l := &lineLog{
		lines: make(chan string, 128),
		done:  make(chan struct{}),
	}
	go l.drain(f)
	return l, nil
}

func (l *lineLog) drain(f *os.File) {
	defer close(l.done)

	w := bufio.NewWriter(f)
	for line := range l.lines {
		if l.err != nil {
			continue
		}
		if _, err := w.WriteString(stripansi.Strip(line) + "\n"); err != nil {
			l.err = err
			continue
		}
		l.written++
	}
	l.err = errors.Join(l.err, w.Flush(), f.Close())
}

// Append queues one line. It fails once the log is closed.
func (l *lineLog) Append(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errLogClosed
	}
	l.lines <- line
	return nil
}

// Close flushes queued lines and reports the first write error, if any.
// Later calls return the same result.
func (l *lineLog) Close() error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.lines)
	}
	l.mu.Unlock()

	<-l.done
	return l.err
}

// Written is the number of lines on disk. Only meaningful after Close.
func (l *lineLog) Written() int {
	<-l.done
	return l.written
}
