package app

import "sync"

type job struct {
	partial []float32
	final   *Session
}

// queue hands buffers to the consumer worker in arrival order. Partial
// buffers are bounded and refused when the limit is reached; finals are
// always accepted so the run loop never waits on a slow consumer.
type queue struct {
	mu       sync.Mutex
	items    []job
	partials int
	limit    int
	ready    chan struct{}
}

func newQueue(limit int) *queue {
	return &queue{limit: limit, ready: make(chan struct{}, 1)}
}

// offerPartial never blocks. It reports false when the buffer was dropped.
func (q *queue) offerPartial(samples []float32) bool {
	q.mu.Lock()
	if q.partials >= q.limit {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, job{partial: samples})
	q.partials++
	q.mu.Unlock()
	q.signal()
	return true
}

func (q *queue) pushFinal(s *Session) {
	q.mu.Lock()
	q.items = append(q.items, job{final: s})
	q.mu.Unlock()
	q.signal()
}

func (q *queue) pop() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return job{}, false
	}
	j := q.items[0]
	q.items[0] = job{}
	q.items = q.items[1:]
	if j.final == nil {
		q.partials--
	}
	return j, true
}

func (q *queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
