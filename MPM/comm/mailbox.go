package comm

import (
	"context"
	"sync"
)

type mailKey struct {
	src, tag int
}

// MailBox buffers messages for one receiving rank, one FIFO queue per (source, tag).
// Posting never blocks, receiving waits until a matching message has been posted.
type MailBox[T any] struct {
	mu      sync.Mutex
	queues  map[mailKey][]T
	arrived chan struct{} // closed and replaced on every post
	closed  bool
}

func NewMailBox[T any]() *MailBox[T] {
	return &MailBox[T]{
		queues:  make(map[mailKey][]T),
		arrived: make(chan struct{}),
	}
}

func (mb *MailBox[T]) PostMessage(src, tag int, msg T) (err error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return ErrClosed
	}
	key := mailKey{src, tag}
	mb.queues[key] = append(mb.queues[key], msg)
	close(mb.arrived)
	mb.arrived = make(chan struct{})
	return
}

func (mb *MailBox[T]) ReceiveMessage(ctx context.Context, src, tag int) (msg T, err error) {
	key := mailKey{src, tag}
	for {
		mb.mu.Lock()
		if q := mb.queues[key]; len(q) > 0 {
			msg = q[0]
			var zero T
			q[0] = zero
			if len(q) == 1 {
				delete(mb.queues, key)
			} else {
				mb.queues[key] = q[1:]
			}
			mb.mu.Unlock()
			return
		}
		if mb.closed {
			mb.mu.Unlock()
			err = ErrClosed
			return
		}
		wait := mb.arrived
		mb.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			err = ctx.Err()
			return
		}
	}
}

// Pending is the number of undelivered messages
func (mb *MailBox[T]) Pending() (n int) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for _, q := range mb.queues {
		n += len(q)
	}
	return
}

// Close wakes every waiting receiver, later posts and receives fail with ErrClosed
func (mb *MailBox[T]) Close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if !mb.closed {
		mb.closed = true
		close(mb.arrived)
	}
}
