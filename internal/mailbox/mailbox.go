// Package mailbox is the inbound side of a participant's messaging channel.
//
// A transport goroutine is the single writer (Push, Close); the session turn
// loop is the single reader. Every operation is guarded by one mutex, so pops
// are atomic with respect to concurrent pushes.
package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

var ErrChannelClosed = errors.New("channel closed")

// Message is a decoded {type, payload} envelope.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type Queue struct {
	mu       sync.Mutex
	items    []Message
	closed   bool
	done     chan struct{}
	notify   chan struct{}
	watchers map[chan<- struct{}]struct{}
}

func NewQueue() *Queue {
	return &Queue{
		done:     make(chan struct{}),
		notify:   make(chan struct{}, 1),
		watchers: make(map[chan<- struct{}]struct{}),
	}
}

// Push appends m in arrival order and wakes any waiter.
func (q *Queue) Push(m Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrChannelClosed
	}
	q.items = append(q.items, m)
	signal(q.notify)
	for w := range q.watchers {
		signal(w)
	}
	return nil
}

// Close marks the channel disconnected. Messages already queued can still be
// popped; waits fail with ErrChannelClosed once the queue is drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
	for w := range q.watchers {
		signal(w)
	}
}

// Done is closed when the channel disconnects.
func (q *Queue) Done() <-chan struct{} { return q.done }

func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// PopOldest removes and returns the oldest message.
func (q *Queue) PopOldest() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Message{}, false
	}
	m := q.items[0]
	q.items = q.items[1:]
	return m, true
}

// PopOldestOfType returns the oldest message of msgType. Every message of
// another type ahead of it is discarded, not requeued. When nothing matches
// the queue ends up empty.
func (q *Queue) PopOldestOfType(msgType string) (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) > 0 {
		m := q.items[0]
		q.items = q.items[1:]
		if m.Type == msgType {
			return m, true
		}
	}
	return Message{}, false
}

// TryOfType is PopOldestOfType for callers that must not block but still need
// to observe a disconnect.
func (q *Queue) TryOfType(msgType string) (Message, bool, error) {
	if m, ok := q.PopOldestOfType(msgType); ok {
		return m, true, nil
	}
	if q.Closed() {
		return Message{}, false, ErrChannelClosed
	}
	return Message{}, false, nil
}

// WaitOfType blocks until a message of msgType arrives, the channel closes,
// or ctx ends. It consumes messages with PopOldestOfType semantics.
func (q *Queue) WaitOfType(ctx context.Context, msgType string) (Message, error) {
	for {
		m, ok, err := q.TryOfType(msgType)
		if err != nil {
			return Message{}, err
		}
		if ok {
			return m, nil
		}
		select {
		case <-q.notify:
		case <-q.done:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

// Watch registers w to be signalled on every push and on close. Used by the
// auction to wait on several bidders at once.
func (q *Queue) Watch(w chan<- struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.watchers[w] = struct{}{}
}

func (q *Queue) Unwatch(w chan<- struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.watchers, w)
}

func signal(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
