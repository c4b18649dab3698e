package runner

import (
	"bytes"
	"sync"

	"github.com/apex/log"
)

// logWriter turns a byte stream into one debug entry per line.
// stdout and stderr share a writer, hence the mutex.
type logWriter struct {
	mu  sync.Mutex
	log log.Interface
	buf bytes.Buffer
}

func newLogWriter(l log.Interface) *logWriter {
	return &logWriter{log: l}
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// incomplete line, keep it for the next write
			w.buf.WriteString(line)
			break
		}
		w.log.Debug(line[:len(line)-1])
	}
	return len(p), nil
}

// Flush logs any trailing partial line.
func (w *logWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() > 0 {
		w.log.Debug(w.buf.String())
		w.buf.Reset()
	}
}
