// Package inmemory implements cache.Store in process memory. It follows
// Redis semantics closely enough to stand in for it in tests and in local
// `banter chat` sessions.
package inmemory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/papercomputeco/banter/pkg/cache"
)

// ErrWrongType is returned when a string operation hits a list key or the
// other way round.
var ErrWrongType = errors.New("operation against a key holding the wrong kind of value")

type entry struct {
	value   string
	list    []string
	isList  bool
	expires time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now. Tests use it to move past expiries.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store implements cache.Store with a mutex guarded map.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lookup returns the live entry for key, evicting it if expired.
// Callers hold s.mu.
func (s *Store) lookup(key string) (*entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(s.now()) {
		delete(s.entries, key)
		return nil, false
	}
	return e, true
}

func (s *Store) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

// SetWithTTL implements cache.Store. A non-positive ttl stores the value
// without expiry.
func (s *Store) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &entry{value: value, expires: s.deadline(ttl)}
	return nil
}

// Get implements cache.Store.
func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return "", cache.ErrMiss
	}
	if e.isList {
		return "", ErrWrongType
	}
	return e.value, nil
}

// AppendAndTrim implements cache.Store.
func (s *Store) AppendAndTrim(_ context.Context, key, value string, maxLen int, ttl time.Duration) error {
	if maxLen < 1 {
		return cache.ErrInvalidLength
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		e = &entry{isList: true}
		s.entries[key] = e
	}
	if !e.isList {
		return ErrWrongType
	}

	e.list = append(e.list, value)
	if over := len(e.list) - maxLen; over > 0 {
		e.list = append([]string(nil), e.list[over:]...)
	}
	e.expires = s.deadline(ttl)
	return nil
}

// ReadRange implements cache.Store with LRANGE index rules.
func (s *Store) ReadRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return []string{}, nil
	}
	if !e.isList {
		return nil, ErrWrongType
	}

	n := int64(len(e.list))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return []string{}, nil
	}

	out := make([]string, stop-start+1)
	copy(out, e.list[start:stop+1])
	return out, nil
}

// Delete implements cache.Store.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.lookup(key)
	delete(s.entries, key)
	return ok, nil
}

// TTL returns the remaining lifetime of key. ok is false when the key is
// absent; a zero duration with ok true means the key never expires.
func (s *Store) TTL(key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return 0, false
	}
	if e.expires.IsZero() {
		return 0, true
	}
	return e.expires.Sub(s.now()), true
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Close drops every entry.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*entry)
	return nil
}
