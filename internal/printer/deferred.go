package printer

import (
	"bytes"
	"io"
	"sync"
)

// Deferred holds printer output while the TUI owns the terminal. Safe for
// concurrent use.
type Deferred struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewDeferred returns a Printer whose lines are held until Flush.
func NewDeferred() (*Printer, *Deferred) {
	d := &Deferred{}
	return New(d), d
}

func (d *Deferred) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.Write(p)
}

// Flush writes the held lines to w and clears them.
func (d *Deferred) Flush(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.buf.Len() == 0 {
		return nil
	}
	_, err := d.buf.WriteTo(w)
	return err
}
