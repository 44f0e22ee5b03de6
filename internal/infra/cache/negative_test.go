package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemorySet(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySet()

	_ = s.Add(ctx, "0xABC")
	if !s.Contains(ctx, "0xabc") {
		t.Error("Expected set to be case-insensitive")
	}
	if s.Contains(ctx, "0x456") {
		t.Error("Expected set not to contain 0x456")
	}

	s.AddBatch([]string{"0xdef", "0xABC"})
	if s.Size() != 2 {
		t.Errorf("Expected size to be 2, got %d", s.Size())
	}
	if len(s.Keys()) != 2 {
		t.Errorf("Expected 2 keys, got %d", len(s.Keys()))
	}
}

func TestMemorySet_ConcurrentAdd(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySet()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Add(ctx, "0xsame")
			_ = s.Contains(ctx, "0xsame")
		}()
	}
	wg.Wait()

	if s.Size() != 1 {
		t.Errorf("Expected size to be 1, got %d", s.Size())
	}
}

type fakeMirror struct {
	mu      sync.Mutex
	sets    map[string][]string
	failAdd bool
}

func (m *fakeMirror) AddMembers(_ context.Context, name string, members ...string) error {
	if m.failAdd {
		return errors.New("connection refused")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[name] = append(m.sets[name], members...)
	return nil
}

func (m *fakeMirror) Members(_ context.Context, name string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets[name], nil
}

func TestMirroredSet_WarmAndWriteThrough(t *testing.T) {
	ctx := context.Background()
	mirror := &fakeMirror{sets: map[string][]string{"missing": {"0xold"}}}
	s := NewMirroredSet(mirror, "missing")

	if err := s.Warm(ctx); err != nil {
		t.Fatalf("Warm failed: %v", err)
	}
	if !s.Contains(ctx, "0xOLD") {
		t.Error("Expected warmed key to be present")
	}

	_ = s.Add(ctx, "0xNEW")
	if !s.Contains(ctx, "0xnew") {
		t.Error("Expected added key to be present")
	}
	if got := mirror.sets["missing"]; len(got) != 2 || got[1] != "0xnew" {
		t.Errorf("Expected mirror to receive lowercased key, got %v", got)
	}
	if s.Size() != 2 {
		t.Errorf("Expected size to be 2, got %d", s.Size())
	}
}

func TestMirroredSet_MirrorFailureKeepsLocal(t *testing.T) {
	ctx := context.Background()
	s := NewMirroredSet(&fakeMirror{sets: map[string][]string{}, failAdd: true}, "missing")

	if err := s.Add(ctx, "0x1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !s.Contains(ctx, "0x1") {
		t.Error("Expected local entry after mirror failure")
	}
}

func TestMirroredSet_FlushRepublishesFailedWrites(t *testing.T) {
	ctx := context.Background()
	mirror := &fakeMirror{sets: map[string][]string{}, failAdd: true}
	s := NewMirroredSet(mirror, "missing")

	_ = s.Add(ctx, "0xAAA")
	_ = s.Add(ctx, "0xbbb")
	if err := s.Flush(ctx); err == nil {
		t.Fatal("Expected flush to fail while the mirror is down")
	}
	if len(mirror.sets["missing"]) != 0 {
		t.Fatalf("Expected empty mirror, got %v", mirror.sets["missing"])
	}

	mirror.failAdd = false
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	got := map[string]bool{}
	for _, k := range mirror.sets["missing"] {
		got[k] = true
	}
	if len(got) != 2 || !got["0xaaa"] || !got["0xbbb"] {
		t.Errorf("Expected both local keys in the mirror, got %v", mirror.sets["missing"])
	}
}

func TestMirroredSet_FlushEmptyIsNoop(t *testing.T) {
	mirror := &fakeMirror{sets: map[string][]string{}, failAdd: true}
	if err := NewMirroredSet(mirror, "missing").Flush(context.Background()); err != nil {
		t.Errorf("Expected no error for an empty set, got %v", err)
	}
}

func TestMemo_TTL(t *testing.T) {
	m := NewMemo[int](time.Minute)
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }

	m.Set("0xABC", 7)
	if v, ok := m.Get("0xabc"); !ok || v != 7 {
		t.Fatalf("Expected 7, got %d (found=%v)", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := m.Get("0xabc"); ok {
		t.Error("Expected entry to expire")
	}
}

func TestMemo_NoTTLKeepsEntries(t *testing.T) {
	m := NewMemo[string](0)
	m.Set("k", "v")
	m.now = func() time.Time { return time.Now().Add(24 * 365 * time.Hour) }
	if v, ok := m.Get("K"); !ok || v != "v" {
		t.Errorf("Expected entry to persist, got %q (found=%v)", v, ok)
	}
	if m.Len() != 1 {
		t.Errorf("Expected length 1, got %d", m.Len())
	}
}
