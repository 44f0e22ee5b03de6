// Package cache provides the process-wide negative cache of collections the
// market-data upstream does not know about.
package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// NegativeSet remembers keys that are known to have no upstream data.
// Membership is permanent for the life of the set.
type NegativeSet interface {
	Contains(ctx context.Context, key string) bool
	Add(ctx context.Context, key string) error
	Size() int
}

// MemorySet implements NegativeSet using an in-memory map.
type MemorySet struct {
	keys map[string]struct{}
	mu   sync.RWMutex
}

// NewMemorySet creates a new in-memory set.
func NewMemorySet() *MemorySet {
	return &MemorySet{
		keys: make(map[string]struct{}),
	}
}

// Contains checks if a key is present. Keys are case-insensitive.
func (s *MemorySet) Contains(_ context.Context, key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.keys[strings.ToLower(key)]
	return exists
}

// Add inserts a key.
func (s *MemorySet) Add(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[strings.ToLower(key)] = struct{}{}
	return nil
}

// AddBatch inserts multiple keys.
func (s *MemorySet) AddBatch(keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.keys[strings.ToLower(k)] = struct{}{}
	}
}

// Size returns the number of keys.
func (s *MemorySet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Keys returns all keys in no particular order.
func (s *MemorySet) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]string, 0, len(s.keys))
	for k := range s.keys {
		result = append(result, k)
	}
	return result
}

// Mirror is a shared set store, such as Redis.
type Mirror interface {
	AddMembers(ctx context.Context, name string, members ...string) error
	Members(ctx context.Context, name string) ([]string, error)
}

// MirroredSet serves lookups from memory and writes through to a shared
// mirror so other processes learn the same misses.
type MirroredSet struct {
	local  *MemorySet
	mirror Mirror
	name   string
	log    *slog.Logger
}

// NewMirroredSet creates a set backed by mirror under the given set name.
func NewMirroredSet(mirror Mirror, name string) *MirroredSet {
	return &MirroredSet{
		local:  NewMemorySet(),
		mirror: mirror,
		name:   name,
		log:    slog.Default().With("component", "negative-cache", "set", name),
	}
}

// Warm loads the mirror's members into memory.
func (s *MirroredSet) Warm(ctx context.Context) error {
	members, err := s.mirror.Members(ctx, s.name)
	if err != nil {
		return err
	}
	s.local.AddBatch(members)
	s.log.Info("negative cache warmed", "count", len(members))
	return nil
}

// Contains checks the in-memory view.
func (s *MirroredSet) Contains(ctx context.Context, key string) bool {
	return s.local.Contains(ctx, key)
}

// Add records key locally and in the mirror. A mirror failure is logged;
// the local entry is kept.
func (s *MirroredSet) Add(ctx context.Context, key string) error {
	_ = s.local.Add(ctx, key)
	if err := s.mirror.AddMembers(ctx, s.name, strings.ToLower(key)); err != nil {
		s.log.Warn("mirror write failed", "key", key, "error", err)
	}
	return nil
}

// Size returns the number of keys known locally.
func (s *MirroredSet) Size() int {
	return s.local.Size()
}

// Flush writes every locally known key to the mirror, republishing misses
// whose write-through failed.
func (s *MirroredSet) Flush(ctx context.Context) error {
	keys := s.local.Keys()
	if len(keys) == 0 {
		return nil
	}
	if err := s.mirror.AddMembers(ctx, s.name, keys...); err != nil {
		return err
	}
	s.log.Debug("negative cache flushed", "count", len(keys))
	return nil
}
