package cache

import (
	"strings"
	"sync"
	"time"
)

type memoEntry[V any] struct {
	value   V
	expires time.Time
}

// Memo is a concurrent map of case-insensitive keys to values with an
// optional time-to-live. A zero TTL keeps entries for the process lifetime.
type Memo[V any] struct {
	mu      sync.RWMutex
	entries map[string]memoEntry[V]
	ttl     time.Duration
	now     func() time.Time
}

// NewMemo creates an empty memo.
func NewMemo[V any](ttl time.Duration) *Memo[V] {
	return &Memo[V]{
		entries: make(map[string]memoEntry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the live value stored under key.
func (m *Memo[V]) Get(key string) (V, bool) {
	m.mu.RLock()
	e, ok := m.entries[strings.ToLower(key)]
	m.mu.RUnlock()
	if !ok || (!e.expires.IsZero() && m.now().After(e.expires)) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key.
func (m *Memo[V]) Set(key string, value V) {
	e := memoEntry[V]{value: value}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.entries[strings.ToLower(key)] = e
	m.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (m *Memo[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
