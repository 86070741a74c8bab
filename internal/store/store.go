// Package store defines the path-addressed realtime store that holds the
// live class record, plus an in-process implementation of it.
package store

import (
	"context"
	"sync"
)

// PathLiveSession is the fixed path of the single live class record.
const PathLiveSession = "active_class"

// Unsubscribe stops a subscription. Once it returns the callback is never
// invoked again.
type Unsubscribe func()

// Store is a realtime key/value store addressed by path. Every write is a
// full overwrite of the value at that path and is atomic per path.
type Store interface {
	// Get returns the value at path, or nil when nothing is stored there.
	Get(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, value []byte) error
	// Delete removes the value at path. Deleting a missing path is not an error.
	Delete(ctx context.Context, path string) error
	// Subscribe calls fn once with the current value (nil when absent) and
	// again after every change. fn runs on the store's delivery goroutine and
	// must not block or call back into the store or the returned Unsubscribe.
	Subscribe(ctx context.Context, path string, fn func(value []byte)) (Unsubscribe, error)
}

type pendingValue struct {
	version uint64
	value   []byte
}

// Watcher delivers versioned values to a subscriber callback. Values older
// than the last delivered version are dropped, and values that arrive before
// the initial snapshot are held until Prime.
type Watcher struct {
	mu      sync.Mutex
	fn      func([]byte)
	closed  bool
	primed  bool
	last    uint64
	pending *pendingValue
}

func NewWatcher(fn func([]byte)) *Watcher {
	return &Watcher{fn: fn}
}

// Prime delivers the initial snapshot, followed by any newer value that
// arrived while the snapshot was being read.
func (w *Watcher) Prime(version uint64, value []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.primed {
		return
	}
	w.primed = true
	w.last = version
	w.fn(value)

	if p := w.pending; p != nil {
		w.pending = nil
		if p.version > w.last {
			w.last = p.version
			w.fn(p.value)
		}
	}
}

// Offer delivers a change notification.
func (w *Watcher) Offer(version uint64, value []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if !w.primed {
		if w.pending == nil || version > w.pending.version {
			w.pending = &pendingValue{version: version, value: value}
		}
		return
	}
	if version <= w.last {
		return
	}
	w.last = version
	w.fn(value)
}

// Close waits for an in-flight delivery to finish and blocks all later ones.
func (w *Watcher) Close() {
	w.mu.Lock()
	w.closed = true
	w.pending = nil
	w.mu.Unlock()
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
