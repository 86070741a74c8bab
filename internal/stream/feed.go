// Package stream provides a conflating feed for state snapshots.
package stream

import "sync"

// Feed carries full-state snapshots to one consumer. The first snapshot is
// always delivered. After that only the most recent unread snapshot is kept,
// so a slow consumer skips intermediate states but always sees the latest
// one. Publish never blocks.
type Feed[T any] struct {
	mu        sync.Mutex
	first     T
	hasFirst  bool
	latest    T
	hasLatest bool
	started   bool
	closed    bool

	out    chan T
	notify chan struct{}
	done   chan struct{}
	exited chan struct{}
}

func NewFeed[T any]() *Feed[T] {
	f := &Feed[T]{
		out:    make(chan T),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go f.run()
	return f
}

// Publish queues v, replacing any unread snapshot other than the first. It
// reports false once the feed is closed.
func (f *Feed[T]) Publish(v T) bool {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return false
	}
	if !f.started {
		f.started = true
		f.first, f.hasFirst = v, true
	} else {
		f.latest, f.hasLatest = v, true
	}
	f.mu.Unlock()

	select {
	case f.notify <- struct{}{}:
	default:
	}
	return true
}

// take hands the next snapshot to run. pinned is set for the first one.
func (f *Feed[T]) take() (v T, pinned, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var zero T
	switch {
	case f.hasFirst:
		v, f.first, f.hasFirst = f.first, zero, false
		return v, true, true
	case f.hasLatest:
		v, f.latest, f.hasLatest = f.latest, zero, false
		return v, false, true
	}
	return zero, false, false
}

func (f *Feed[T]) run() {
	defer close(f.exited)
	defer close(f.out)

	var (
		cur    T
		pinned bool
		has    bool
	)
	for {
		if !has {
			cur, pinned, has = f.take()
		}
		if !has {
			select {
			case <-f.notify:
				continue
			case <-f.done:
				return
			}
		}

		select {
		case f.out <- cur:
			has = false
		case <-f.notify:
			if !pinned {
				if v, _, ok := f.take(); ok {
					cur = v
				}
			}
		case <-f.done:
			return
		}
	}
}

// C returns the receive side. It is closed by Close.
func (f *Feed[T]) C() <-chan T {
	return f.out
}

// Done is closed together with the feed.
func (f *Feed[T]) Done() <-chan struct{} {
	return f.done
}

// Close discards any unread snapshot and closes the channel. Nothing is
// received after Close returns other than the zero value of a closed channel.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		<-f.exited
		return
	}
	f.closed = true
	var zero T
	f.first, f.hasFirst = zero, false
	f.latest, f.hasLatest = zero, false
	f.mu.Unlock()

	close(f.done)
	<-f.exited
}
