package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store. Changes are delivered synchronously, in
// write order, before Write or Delete returns.
type Memory struct {
	mu       sync.Mutex
	values   map[string][]byte
	versions map[string]uint64
	watchers map[string]map[*Watcher]struct{}
	failure  error
}

func NewMemory() *Memory {
	return &Memory{
		values:   make(map[string][]byte),
		versions: make(map[string]uint64),
		watchers: make(map[string]map[*Watcher]struct{}),
	}
}

// SetFailure makes every subsequent operation fail with err until it is
// called again with nil.
func (m *Memory) SetFailure(err error) {
	m.mu.Lock()
	m.failure = err
	m.mu.Unlock()
}

func (m *Memory) Get(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failure != nil {
		return nil, m.failure
	}
	return cloneBytes(m.values[path]), nil
}

func (m *Memory) Write(ctx context.Context, path string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	return m.apply(path, cloneBytes(value))
}

func (m *Memory) Delete(ctx context.Context, path string) error {
	return m.apply(path, nil)
}

func (m *Memory) apply(path string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failure != nil {
		return m.failure
	}

	if value == nil {
		delete(m.values, path)
	} else {
		m.values[path] = value
	}
	m.versions[path]++
	version := m.versions[path]

	for w := range m.watchers[path] {
		w.Offer(version, cloneBytes(value))
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, path string, fn func([]byte)) (Unsubscribe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failure != nil {
		return nil, m.failure
	}

	w := NewWatcher(fn)
	if m.watchers[path] == nil {
		m.watchers[path] = make(map[*Watcher]struct{})
	}
	m.watchers[path][w] = struct{}{}
	w.Prime(m.versions[path], cloneBytes(m.values[path]))

	var once sync.Once
	return func() {
		once.Do(func() {
			w.Close()
			m.mu.Lock()
			delete(m.watchers[path], w)
			if len(m.watchers[path]) == 0 {
				delete(m.watchers, path)
			}
			m.mu.Unlock()
		})
	}, nil
}

// WatcherCount reports the number of live subscriptions on path.
func (m *Memory) WatcherCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watchers[path])
}
