package tracker

import "sync"

// feedBuffer is the per-subscriber channel capacity. A subscriber that
// cannot keep up loses events rather than blocking the scheduler; the
// feeds promise at-most-once, in-order delivery, not replay.
const feedBuffer = 64

// feed is a broadcast channel fan-out. Every currently registered
// subscriber receives each published value; late subscribers miss prior
// values.
type feed[T any] struct {
	mu     sync.Mutex
	subs   map[int]chan T
	nextID int
	closed bool
}

func newFeed[T any]() *feed[T] {
	return &feed[T]{subs: make(map[int]chan T)}
}

// subscribe registers a new listener and returns its channel together with
// a cancel function. The channel is closed on cancel or when the feed
// itself closes.
func (f *feed[T]) subscribe() (<-chan T, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan T, feedBuffer)
	if f.closed {
		close(ch)
		return ch, func() {}
	}

	id := f.nextID
	f.nextID++
	f.subs[id] = ch

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if sub, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// publish delivers v to every subscriber, dropping it for any subscriber
// whose buffer is full.
func (f *feed[T]) publish(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	for _, ch := range f.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// close shuts the feed down; all subscriber channels are closed and no
// further emissions are valid.
func (f *feed[T]) close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}
