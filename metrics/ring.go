package metrics

import "time"

// durationRing is a fixed-capacity ring of durations. Not safe for
// concurrent use; callers hold the owning queueMetrics lock.
type durationRing struct {
	buf  []time.Duration
	next int
	full bool
}

func newDurationRing(capacity int) *durationRing {
	return &durationRing{buf: make([]time.Duration, capacity)}
}

func (r *durationRing) push(d time.Duration) {
	r.buf[r.next] = d
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *durationRing) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// snapshot copies the live window, oldest entries not ordered (the
// percentile calculation sorts anyway).
func (r *durationRing) snapshot() []time.Duration {
	out := make([]time.Duration, r.len())
	copy(out, r.buf[:r.len()])
	return out
}

// timeRing is a fixed-capacity ring of timestamps used for windowed
// rate counting.
type timeRing struct {
	buf  []time.Time
	next int
	full bool
}

func newTimeRing(capacity int) *timeRing {
	return &timeRing{buf: make([]time.Time, capacity)}
}

func (r *timeRing) push(t time.Time) {
	r.buf[r.next] = t
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *timeRing) countSince(cutoff time.Time) int {
	n := r.next
	if r.full {
		n = len(r.buf)
	}
	count := 0
	for i := range n {
		if !r.buf[i].Before(cutoff) {
			count++
		}
	}
	return count
}
