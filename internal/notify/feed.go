package notify

import (
	"context"
	"sync"
)

const defaultFeedSize = 100

// Feed keeps the most recent events in a fixed-size ring.
type Feed struct {
	mu    sync.RWMutex
	buf   []Event
	next  int
	count int
}

// NewFeed returns a feed holding up to size events; size <= 0 uses 100.
func NewFeed(size int) *Feed {
	if size <= 0 {
		size = defaultFeedSize
	}
	return &Feed{buf: make([]Event, size)}
}

func (f *Feed) Notify(_ context.Context, ev Event) error {
	f.mu.Lock()
	f.buf[f.next] = ev
	f.next = (f.next + 1) % len(f.buf)
	if f.count < len(f.buf) {
		f.count++
	}
	f.mu.Unlock()
	return nil
}

// Recent returns up to n events, newest first. n <= 0 returns everything held.
func (f *Feed) Recent(n int) []Event {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if n <= 0 || n > f.count {
		n = f.count
	}
	out := make([]Event, 0, n)
	for i := 1; i <= n; i++ {
		idx := (f.next - i + len(f.buf)) % len(f.buf)
		out = append(out, f.buf[idx])
	}
	return out
}

// Len returns the number of events held.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.count
}
