package logging

import (
	"bytes"
	"io"
	"os"
	"sync"
)

// stderrSink is the shared stderr output of every component logger. While a
// full-screen program owns the terminal the sink is held: entries are
// buffered and flushed once the terminal is released.
type stderrSink struct {
	mu   sync.Mutex
	w    io.Writer
	held int
	buf  bytes.Buffer
}

// maxHeldBytes caps the buffer of a long-held sink; older output is dropped.
const maxHeldBytes = 1 << 20

func (s *stderrSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held == 0 {
		return s.w.Write(p)
	}
	if s.buf.Len()+len(p) > maxHeldBytes {
		s.buf.Reset()
	}
	return s.buf.Write(p)
}

func (s *stderrSink) hold() func() {
	s.mu.Lock()
	s.held++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.held--
			if s.held == 0 && s.buf.Len() > 0 {
				_, _ = s.w.Write(s.buf.Bytes())
				s.buf.Reset()
			}
		})
	}
}

var stderr = &stderrSink{w: os.Stderr}

// HoldStderr buffers stderr log output until the returned release func is
// called. `hud watch` holds it for the lifetime of its alt-screen.
func HoldStderr() (release func()) {
	return stderr.hold()
}
