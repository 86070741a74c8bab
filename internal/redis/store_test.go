package redis

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "bp:{active_class}:data", DataKey("bp", "active_class"))
	assert.Equal(t, "bp:{active_class}:version", VersionKey("bp", "active_class"))
	assert.Equal(t, "bp:{active_class}:changes", ChangesChannel("bp", "active_class"))
	assert.Equal(t, "bp:ratelimit:login:10.0.0.1", RateLimitKey("bp", "login:10.0.0.1"))
}

func TestParseChange(t *testing.T) {
	t.Run("present value keeps colons", func(t *testing.T) {
		version, value, err := parseChange(`7:1:{"meetingId":"a:b"}`)
		require.NoError(t, err)
		assert.Equal(t, uint64(7), version)
		assert.Equal(t, `{"meetingId":"a:b"}`, string(value))
	})

	t.Run("deleted value is nil", func(t *testing.T) {
		version, value, err := parseChange("8:0:")
		require.NoError(t, err)
		assert.Equal(t, uint64(8), version)
		assert.Nil(t, value)
	})

	t.Run("rejects malformed payloads", func(t *testing.T) {
		for _, payload := range []string{"", "1", "x:1:v", "3:2:v"} {
			_, _, err := parseChange(payload)
			assert.Error(t, err, payload)
		}
	})
}

func setupTestStore(t *testing.T, opts ...StoreOption) *Store {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	client, err := NewClient(url)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	s := NewStore(client, fmt.Sprintf("test%d", time.Now().UnixNano()), opts...)
	t.Cleanup(s.Close)
	return s
}

func TestStore_Integration(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	updates := make(chan []byte, 10)
	unsub, err := s.Subscribe(ctx, "active_class", func(v []byte) { updates <- v })
	require.NoError(t, err)

	assert.Nil(t, <-updates)

	require.NoError(t, s.Write(ctx, "active_class", []byte(`{"status":"live"}`)))
	select {
	case v := <-updates:
		assert.Equal(t, `{"status":"live"}`, string(v))
	case <-time.After(2 * time.Second):
		t.Fatal("no change delivered")
	}

	got, err := s.Get(ctx, "active_class")
	require.NoError(t, err)
	assert.Equal(t, `{"status":"live"}`, string(got))

	require.NoError(t, s.Delete(ctx, "active_class"))
	select {
	case v := <-updates:
		assert.Nil(t, v)
	case <-time.After(2 * time.Second):
		t.Fatal("no delete delivered")
	}

	unsub()
	assert.Equal(t, 0, s.WatcherCount("active_class"))
}

func TestStore_ResyncRecoversLostChange(t *testing.T) {
	s := setupTestStore(t, WithResyncInterval(50*time.Millisecond))
	ctx := context.Background()

	updates := make(chan []byte, 10)
	unsub, err := s.Subscribe(ctx, "active_class", func(v []byte) { updates <- v })
	require.NoError(t, err)
	defer unsub()
	assert.Nil(t, <-updates)

	// Store a new version without publishing it, as if the message had been
	// dropped during a reconnect.
	version, err := s.client.Incr(ctx, VersionKey(s.prefix, "active_class")).Result()
	require.NoError(t, err)
	require.NoError(t, s.client.HSet(ctx, DataKey(s.prefix, "active_class"),
		"value", `{"status":"live"}`, "version", version).Err())

	select {
	case v := <-updates:
		assert.Equal(t, `{"status":"live"}`, string(v))
	case <-time.After(2 * time.Second):
		t.Fatal("lost change never recovered")
	}

	select {
	case v := <-updates:
		t.Fatalf("duplicate delivery %q", v)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestStore_ConcurrentSubscribersShareOneSubscription(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	const n = 8
	unsubs := make([]func(), n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			unsub, err := s.Subscribe(ctx, "active_class", func([]byte) {})
			assert.NoError(t, err)
			unsubs[i] = unsub
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n, s.WatcherCount("active_class"))
	for _, unsub := range unsubs {
		if unsub != nil {
			unsub()
		}
	}
	assert.Equal(t, 0, s.WatcherCount("active_class"))
}
