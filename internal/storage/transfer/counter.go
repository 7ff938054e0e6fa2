// Package transfer tracks object store transfer progress.
package transfer

import (
	"io"
	"sync"

	"dealdossier/internal/port"
)

// ProgressCounter turns byte counts into percentage callbacks.
// Callbacks fire only when the percentage increases.
type ProgressCounter struct {
	mu    sync.Mutex
	total int64
	read  int64
	last  int
	fn    port.ProgressFunc
}

// NewProgressCounter returns a counter for a transfer of total bytes.
// A nil fn yields a counter that only counts.
func NewProgressCounter(total int64, fn port.ProgressFunc) *ProgressCounter {
	return &ProgressCounter{total: total, fn: fn, last: -1}
}

// Add records n more bytes transferred.
func (c *ProgressCounter) Add(n int64) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	c.read += n
	pct := c.percentLocked()
	fire := pct > c.last
	if fire {
		c.last = pct
	}
	c.mu.Unlock()

	if fire && c.fn != nil {
		c.fn(pct)
	}
}

// Read implements io.Reader so the counter can be handed to clients that
// report progress by reading from a sink.
func (c *ProgressCounter) Read(p []byte) (int, error) {
	c.Add(int64(len(p)))
	return len(p), nil
}

// Done forces a final 100 callback.
func (c *ProgressCounter) Done() {
	c.mu.Lock()
	fire := c.last < 100
	c.last = 100
	c.mu.Unlock()
	if fire && c.fn != nil {
		c.fn(100)
	}
}

func (c *ProgressCounter) percentLocked() int {
	if c.total <= 0 {
		return 0
	}
	pct := int(c.read * 100 / c.total)
	if pct > 100 {
		pct = 100
	}
	return pct
}

type countingReader struct {
	r io.Reader
	c *ProgressCounter
}

// NewCountingReader wraps r so every read advances c.
func NewCountingReader(r io.Reader, c *ProgressCounter) io.Reader {
	return &countingReader{r: r, c: c}
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.c.Add(int64(n))
	return n, err
}
