package gateway

import "sync/atomic"

// Counter is the live connection count shared by every event loop.
type Counter struct {
	n atomic.Int64
}

// Inc records an opened connection and returns the new count.
func (c *Counter) Inc() int64 {
	return c.n.Add(1)
}

// Dec records a closed connection. A decrement at zero is refused and reported
// through the second return value.
func (c *Counter) Dec() (int64, bool) {
	for {
		current := c.n.Load()
		if current <= 0 {
			return current, false
		}

		if c.n.CompareAndSwap(current, current-1) {
			return current - 1, true
		}
	}
}

// Load returns the current count.
func (c *Counter) Load() int64 {
	return c.n.Load()
}
