// Package staging holds the hand-off queues between pipeline stages.
// Each queue keeps items awaiting one specific stage in insertion order.
package staging

// Queue is a FIFO of items awaiting a stage.
//
// Queue is not safe for concurrent use. All queues of a run are guarded by
// the scheduler's lock.
type Queue[T any] struct {
	items []T
}

// NewQueue creates an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends item at the back.
func (q *Queue[T]) Push(item T) {
	q.items = append(q.items, item)
}

// PushAll appends items at the back, preserving their order.
func (q *Queue[T]) PushAll(items []T) {
	q.items = append(q.items, items...)
}

// PopUpTo removes and returns at most n items from the front.
// It never blocks; fewer than n items are returned if fewer are queued.
func (q *Queue[T]) PopUpTo(n int) []T {
	if n <= 0 || len(q.items) == 0 {
		return nil
	}
	if n > len(q.items) {
		n = len(q.items)
	}
	out := make([]T, n)
	copy(out, q.items[:n])

	// Zero the vacated slots so popped items can be collected.
	var zero T
	for i := 0; i < n; i++ {
		q.items[i] = zero
	}
	q.items = q.items[n:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return out
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	return len(q.items)
}

// Each calls fn for every queued item, front to back, without removing them.
func (q *Queue[T]) Each(fn func(T)) {
	for _, item := range q.items {
		fn(item)
	}
}
