package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	values []string
}

func (r *recorder) record(v []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v == nil {
		r.values = append(r.values, "<nil>")
		return
	}
	r.values = append(r.values, string(v))
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.values...)
}

func TestMemory_GetWriteDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	v, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, m.Write(ctx, "a", []byte("one")))
	v, err = m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "one", string(v))

	require.NoError(t, m.Write(ctx, "a", []byte("two")))
	v, _ = m.Get(ctx, "a")
	assert.Equal(t, "two", string(v))

	require.NoError(t, m.Delete(ctx, "a"))
	require.NoError(t, m.Delete(ctx, "a"))
	v, _ = m.Get(ctx, "a")
	assert.Nil(t, v)
}

func TestMemory_WriteCopiesValue(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	buf := []byte("abc")
	require.NoError(t, m.Write(ctx, "a", buf))
	buf[0] = 'x'

	v, _ := m.Get(ctx, "a")
	assert.Equal(t, "abc", string(v))
}

func TestMemory_Subscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("fires immediately with current value", func(t *testing.T) {
		m := NewMemory()
		require.NoError(t, m.Write(ctx, "a", []byte("one")))

		rec := &recorder{}
		unsub, err := m.Subscribe(ctx, "a", rec.record)
		require.NoError(t, err)
		defer unsub()

		assert.Equal(t, []string{"one"}, rec.all())
	})

	t.Run("fires with nil when path is empty", func(t *testing.T) {
		m := NewMemory()
		rec := &recorder{}
		unsub, err := m.Subscribe(ctx, "a", rec.record)
		require.NoError(t, err)
		defer unsub()

		assert.Equal(t, []string{"<nil>"}, rec.all())
	})

	t.Run("delivers every change in order", func(t *testing.T) {
		m := NewMemory()
		rec := &recorder{}
		unsub, err := m.Subscribe(ctx, "a", rec.record)
		require.NoError(t, err)
		defer unsub()

		require.NoError(t, m.Write(ctx, "a", []byte("one")))
		require.NoError(t, m.Write(ctx, "a", []byte("two")))
		require.NoError(t, m.Delete(ctx, "a"))

		assert.Equal(t, []string{"<nil>", "one", "two", "<nil>"}, rec.all())
	})

	t.Run("ignores other paths", func(t *testing.T) {
		m := NewMemory()
		rec := &recorder{}
		unsub, err := m.Subscribe(ctx, "a", rec.record)
		require.NoError(t, err)
		defer unsub()

		require.NoError(t, m.Write(ctx, "b", []byte("other")))
		assert.Equal(t, []string{"<nil>"}, rec.all())
	})

	t.Run("no callbacks after unsubscribe returns", func(t *testing.T) {
		m := NewMemory()
		rec := &recorder{}
		unsub, err := m.Subscribe(ctx, "a", rec.record)
		require.NoError(t, err)

		unsub()
		unsub()
		require.NoError(t, m.Write(ctx, "a", []byte("late")))

		assert.Equal(t, []string{"<nil>"}, rec.all())
		assert.Equal(t, 0, m.WatcherCount("a"))
	})
}

func TestMemory_Failure(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Write(ctx, "a", []byte("kept")))

	unavailable := errors.New("network partition")
	m.SetFailure(unavailable)

	assert.ErrorIs(t, m.Write(ctx, "a", []byte("lost")), unavailable)
	assert.ErrorIs(t, m.Delete(ctx, "a"), unavailable)
	_, err := m.Get(ctx, "a")
	assert.ErrorIs(t, err, unavailable)
	_, err = m.Subscribe(ctx, "a", func([]byte) {})
	assert.ErrorIs(t, err, unavailable)

	m.SetFailure(nil)
	v, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "kept", string(v))
}

func TestWatcher(t *testing.T) {
	t.Run("holds values offered before prime", func(t *testing.T) {
		rec := &recorder{}
		w := NewWatcher(rec.record)

		w.Offer(3, []byte("three"))
		w.Offer(2, []byte("two"))
		w.Prime(1, []byte("one"))

		assert.Equal(t, []string{"one", "three"}, rec.all())
	})

	t.Run("drops pending value older than snapshot", func(t *testing.T) {
		rec := &recorder{}
		w := NewWatcher(rec.record)

		w.Offer(2, []byte("two"))
		w.Prime(5, []byte("five"))

		assert.Equal(t, []string{"five"}, rec.all())
	})

	t.Run("drops stale versions", func(t *testing.T) {
		rec := &recorder{}
		w := NewWatcher(rec.record)

		w.Prime(4, []byte("four"))
		w.Offer(4, []byte("dup"))
		w.Offer(3, []byte("old"))
		w.Offer(6, []byte("six"))

		assert.Equal(t, []string{"four", "six"}, rec.all())
	})

	t.Run("closed watcher delivers nothing", func(t *testing.T) {
		rec := &recorder{}
		w := NewWatcher(rec.record)
		w.Close()

		w.Prime(1, []byte("one"))
		w.Offer(2, []byte("two"))

		assert.Empty(t, rec.all())
	})
}
