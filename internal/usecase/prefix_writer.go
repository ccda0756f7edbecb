package usecase

import (
	"bytes"
	"io"
	"sync"
)

// prefixWriter writes complete lines to a shared writer, each prefixed with
// the job number, so output of parallel jobs does not interleave mid-line.
type prefixWriter struct {
	out    io.Writer
	mu     *sync.Mutex // Shared by every writer of one build
	prefix []byte
	buf    []byte
}

func newPrefixWriter(out io.Writer, mu *sync.Mutex, prefix string) *prefixWriter {
	return &prefixWriter{out: out, mu: mu, prefix: []byte(prefix)}
}

// Write buffers p and flushes every complete line.
// The shared mutex also guards buf: stdout and stderr of a session arrive
// on separate goroutines.
func (w *prefixWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			return len(p), nil
		}
		if err := w.emit(w.buf[:i+1]); err != nil {
			return len(p), err
		}
		w.buf = w.buf[i+1:]
	}
}

// Flush writes a trailing partial line.
func (w *prefixWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) == 0 {
		return nil
	}
	line := append(w.buf, '\n')
	w.buf = nil
	return w.emit(line)
}

// emit writes one prefixed line. Callers must hold w.mu.
func (w *prefixWriter) emit(line []byte) error {
	if _, err := w.out.Write(w.prefix); err != nil {
		return err
	}
	_, err := w.out.Write(line)
	return err
}

// lockedWriter serializes writes to a writer shared by goroutines.
type lockedWriter struct {
	w  io.Writer
	mu sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
