package matchhub

import (
	"sync"
	"time"
)

// waitTracker keeps a rolling average of the last N time-to-pair samples.
type waitTracker struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	full    bool
	sum     time.Duration
}

func newWaitTracker(size int) *waitTracker {
	if size < 1 {
		size = 1
	}
	return &waitTracker{samples: make([]time.Duration, size)}
}

func (w *waitTracker) Add(d time.Duration) {
	if d < 0 {
		d = 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sum -= w.samples[w.next]
	w.samples[w.next] = d
	w.sum += d
	w.next = (w.next + 1) % len(w.samples)
	if w.next == 0 {
		w.full = true
	}
}

// Average returns 0 until the first sample arrives.
func (w *waitTracker) Average() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := w.next
	if w.full {
		n = len(w.samples)
	}
	if n == 0 {
		return 0
	}
	return w.sum / time.Duration(n)
}
