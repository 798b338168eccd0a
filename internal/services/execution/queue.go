package execution

import (
	"container/heap"
	"errors"
	"sync"

	"ChainPilot/internal/domain/models"
)

// ErrQueueClosed is returned by Enqueue after shutdown has begun.
var ErrQueueClosed = errors.New("order queue closed")

type queueItem struct {
	order    *models.Order
	priority int
	seq      uint64
}

// orderHeap orders by priority descending, then arrival sequence ascending
// so equal priorities drain FIFO.
type orderHeap []*queueItem

func (h orderHeap) Len() int { return len(h) }
func (h orderHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h orderHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *orderHeap) Push(x interface{}) { *h = append(*h, x.(*queueItem)) }
func (h *orderHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// Queue is the priority order queue. Enqueue never blocks a producer;
// Dequeue blocks a worker until an order arrives or the queue closes.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  orderHeap
	seq    uint64
	closed bool
}

// NewQueue creates an empty order queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue adds an order at its priority. Returns ErrQueueClosed once
// shutdown has begun.
func (q *Queue) Enqueue(o *models.Order) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.seq++
	heap.Push(&q.items, &queueItem{order: o, priority: o.Priority, seq: q.seq})
	q.mu.Unlock()
	q.cond.Signal()
	return nil
}

// Dequeue removes the highest-priority order, blocking until one is
// available. The second return is false once the queue is closed and empty.
func (q *Queue) Dequeue() (*models.Order, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	it := heap.Pop(&q.items).(*queueItem)
	return it.order, true
}

// Len returns the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops intake and wakes all blocked workers.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// DrainPending removes and returns every queued order. Used at shutdown
// to force-cancel orders that never started.
func (q *Queue) DrainPending() []*models.Order {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*models.Order, 0, len(q.items))
	for len(q.items) > 0 {
		it := heap.Pop(&q.items).(*queueItem)
		out = append(out, it.order)
	}
	return out
}
