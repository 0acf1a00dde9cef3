package texture

import (
	"image"
	"sync"
)

// payload is a decoded image waiting for upload.
type payload struct {
	job *job
	img *image.NRGBA
}

// uploadQueue is the FIFO between decode workers (many producers) and
// DispatchUploads (one consumer).
type uploadQueue struct {
	mu    sync.Mutex
	items []payload
}

func (q *uploadQueue) push(p payload) {
	q.mu.Lock()
	q.items = append(q.items, p)
	q.mu.Unlock()
}

// drain removes up to max payloads in FIFO order.
func (q *uploadQueue) drain(max int) []payload {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := min(max, len(q.items))
	if n <= 0 {
		return nil
	}
	out := make([]payload, n)
	copy(out, q.items[:n])
	clear(q.items[:n])
	q.items = q.items[n:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return out
}

// reset removes and returns everything queued.
func (q *uploadQueue) reset() []payload {
	q.mu.Lock()
	out := q.items
	q.items = nil
	q.mu.Unlock()
	return out
}

func (q *uploadQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// failure is a FailedSet record. job.handle is the placeholder the key was
// bound to when it failed.
type failure struct {
	job *job
	err *LoadError
}

// failList collects failures not yet rebound to Missing.
type failList struct {
	mu    sync.Mutex
	items []*failure
}

func (l *failList) push(f *failure) {
	l.mu.Lock()
	l.items = append(l.items, f)
	l.mu.Unlock()
}

func (l *failList) take() []*failure {
	l.mu.Lock()
	out := l.items
	l.items = nil
	l.mu.Unlock()
	return out
}
