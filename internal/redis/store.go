package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/balancepro/studio-server/internal/config"
	"github.com/balancepro/studio-server/internal/store"
)

// writeScript bumps the path version, applies the overwrite or delete and
// publishes the change in one atomic step.
//
// KEYS: data, version, channel. ARGV: present flag ("1" or "0"), value.
var writeScript = redis.NewScript(`
local version = redis.call('INCR', KEYS[2])
if ARGV[1] == '1' then
    redis.call('HSET', KEYS[1], 'value', ARGV[2], 'version', version)
else
    redis.call('DEL', KEYS[1])
end
redis.call('PUBLISH', KEYS[3], version .. ':' .. ARGV[1] .. ':' .. ARGV[2])
return version
`)

// readScript returns {version, present, value} for a path.
var readScript = redis.NewScript(`
local version = redis.call('GET', KEYS[2]) or '0'
local value = redis.call('HGET', KEYS[1], 'value')
if value then
    return {version, '1', value}
end
return {version, '0', ''}
`)

type pathWatch struct {
	pubsub   *redis.PubSub
	cancel   context.CancelFunc
	watchers map[*store.Watcher]struct{}
}

// Store is the Redis-backed session store. Each path has one Redis pub/sub
// subscription shared by all local watchers of that path.
type Store struct {
	client *Client
	prefix string
	resync time.Duration
	paths  map[string]*pathWatch
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

var _ store.Store = (*Store)(nil)

type StoreOption func(*Store)

// WithResyncInterval sets how often watched paths are re-read to recover
// changes whose pub/sub message was lost.
func WithResyncInterval(d time.Duration) StoreOption {
	return func(s *Store) {
		s.resync = d
	}
}

func NewStore(client *Client, prefix string, opts ...StoreOption) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		client: client,
		prefix: prefix,
		resync: config.StoreResyncInterval,
		paths:  make(map[string]*pathWatch),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) keys(path string) []string {
	return []string{
		DataKey(s.prefix, path),
		VersionKey(s.prefix, path),
		ChangesChannel(s.prefix, path),
	}
}

func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	_, value, err := s.read(ctx, path)
	return value, err
}

func (s *Store) read(ctx context.Context, path string) (uint64, []byte, error) {
	result, err := readScript.Run(ctx, s.client.Client, s.keys(path)[:2]).StringSlice()
	if err != nil {
		return 0, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(result) != 3 {
		return 0, nil, fmt.Errorf("read %s: unexpected result length %d", path, len(result))
	}

	version, err := strconv.ParseUint(result[0], 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("read %s: parse version: %w", path, err)
	}
	if result[1] != "1" {
		return version, nil, nil
	}
	return version, []byte(result[2]), nil
}

func (s *Store) Write(ctx context.Context, path string, value []byte) error {
	if err := writeScript.Run(ctx, s.client.Client, s.keys(path), "1", value).Err(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	if err := writeScript.Run(ctx, s.client.Client, s.keys(path), "0", "").Err(); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, path string, fn func([]byte)) (store.Unsubscribe, error) {
	w := store.NewWatcher(fn)

	watcherCount, err := s.attach(ctx, path, w)
	if err != nil {
		return nil, err
	}
	unsubscribe := s.unsubscriber(path, w)

	version, value, err := s.read(ctx, path)
	if err != nil {
		unsubscribe()
		return nil, err
	}
	w.Prime(version, value)

	log.Debug().
		Str("path", path).
		Int("watcherCount", watcherCount).
		Msg("store watcher subscribed")

	return unsubscribe, nil
}

// attach adds w to the shared subscription for path, opening it first if
// needed. The Redis round-trip happens outside s.mu.
func (s *Store) attach(ctx context.Context, path string, w *store.Watcher) (int, error) {
	s.mu.Lock()
	if pw, ok := s.paths[path]; ok {
		pw.watchers[w] = struct{}{}
		n := len(pw.watchers)
		s.mu.Unlock()
		return n, nil
	}
	s.mu.Unlock()

	channel := ChangesChannel(s.prefix, path)
	pubsub := s.client.Subscribe(s.ctx, channel)
	// Wait for the subscription to be confirmed so no change published
	// after the snapshot read can be missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return 0, fmt.Errorf("subscribe %s: %w", path, err)
	}

	s.mu.Lock()
	if err := s.ctx.Err(); err != nil {
		s.mu.Unlock()
		pubsub.Close()
		return 0, fmt.Errorf("subscribe %s: store closed", path)
	}
	if pw, ok := s.paths[path]; ok {
		// Another subscriber opened the path meanwhile.
		pw.watchers[w] = struct{}{}
		n := len(pw.watchers)
		s.mu.Unlock()
		pubsub.Close()
		return n, nil
	}

	watchCtx, cancel := context.WithCancel(s.ctx)
	pw := &pathWatch{
		pubsub:   pubsub,
		cancel:   cancel,
		watchers: map[*store.Watcher]struct{}{w: {}},
	}
	s.paths[path] = pw
	s.mu.Unlock()

	go s.listen(watchCtx, path, pw)

	log.Debug().
		Str("path", path).
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	return 1, nil
}

func (s *Store) unsubscriber(path string, w *store.Watcher) store.Unsubscribe {
	var once sync.Once
	return func() {
		once.Do(func() {
			w.Close()

			s.mu.Lock()
			defer s.mu.Unlock()

			pw, ok := s.paths[path]
			if !ok {
				return
			}
			delete(pw.watchers, w)
			if len(pw.watchers) == 0 {
				delete(s.paths, path)
				pw.cancel()
				pw.pubsub.Close()
			}
		})
	}
}

func (s *Store) listen(ctx context.Context, path string, pw *pathWatch) {
	ch := pw.pubsub.ChannelWithSubscriptions()
	var tick <-chan time.Time
	if s.resync > 0 {
		ticker := time.NewTicker(s.resync)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-tick:
			s.resyncPath(ctx, path, pw)

		case msg, ok := <-ch:
			if !ok {
				return
			}

			switch m := msg.(type) {
			case *redis.Subscription:
				// go-redis resubscribed after a reconnect. Anything published
				// in the gap was never delivered.
				log.Warn().Str("path", path).Str("kind", m.Kind).Msg("redis pubsub resubscribed")
				s.resyncPath(ctx, path, pw)

			case *redis.Message:
				version, value, err := parseChange(m.Payload)
				if err != nil {
					log.Error().Err(err).Str("path", path).Msg("failed to parse store change")
					continue
				}
				s.offer(pw, version, value)
			}
		}
	}
}

// resyncPath re-reads path and offers the snapshot. Watchers drop it when
// they already have that version.
func (s *Store) resyncPath(ctx context.Context, path string, pw *pathWatch) {
	version, value, err := s.read(ctx, path)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Str("path", path).Msg("store resync failed")
		}
		return
	}
	s.offer(pw, version, value)
}

func (s *Store) offer(pw *pathWatch, version uint64, value []byte) {
	s.mu.RLock()
	watchers := make([]*store.Watcher, 0, len(pw.watchers))
	for w := range pw.watchers {
		watchers = append(watchers, w)
	}
	s.mu.RUnlock()

	for _, w := range watchers {
		w.Offer(version, value)
	}
}

// parseChange decodes "<version>:<present>:<value>".
func parseChange(payload string) (uint64, []byte, error) {
	parts := strings.SplitN(payload, ":", 3)
	if len(parts) != 3 {
		return 0, nil, fmt.Errorf("malformed change payload")
	}

	version, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("parse change version: %w", err)
	}

	switch parts[1] {
	case "1":
		return version, []byte(parts[2]), nil
	case "0":
		return version, nil, nil
	default:
		return 0, nil, fmt.Errorf("unknown presence flag %q", parts[1])
	}
}

// Close stops every shared subscription. Watchers still registered stop
// receiving changes.
func (s *Store) Close() {
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	for path, pw := range s.paths {
		for w := range pw.watchers {
			w.Close()
		}
		pw.pubsub.Close()
		delete(s.paths, path)
	}
}

// WatcherCount reports the number of local watchers on path.
func (s *Store) WatcherCount(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if pw, ok := s.paths[path]; ok {
		return len(pw.watchers)
	}
	return 0
}
