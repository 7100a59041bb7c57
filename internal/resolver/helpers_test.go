package resolver

import (
	"bytes"
	"log"
	"sync"
)

// safeBuffer is a bytes.Buffer safe for concurrent writes from loggers.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newLogger(b *safeBuffer) *log.Logger {
	return log.New(b, "", 0)
}
