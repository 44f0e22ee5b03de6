package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/scamradar/internal/core/domain"
	"github.com/vietddude/scamradar/internal/infra/storage"
)

// DetectionRepo keeps detections in process memory.
type DetectionRepo struct {
	byID      map[string]*domain.Detection
	byAddress map[string][]string
	mu        sync.RWMutex
}

func NewDetectionRepo() *DetectionRepo {
	return &DetectionRepo{
		byID:      make(map[string]*domain.Detection),
		byAddress: make(map[string][]string),
	}
}

func (r *DetectionRepo) Save(ctx context.Context, d *domain.Detection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	if _, exists := r.byID[d.ID]; !exists {
		addr := strings.ToLower(d.Address)
		r.byAddress[addr] = append(r.byAddress[addr], d.ID)
	}
	r.byID[d.ID] = &cp
	return nil
}

func (r *DetectionRepo) GetByID(ctx context.Context, id string) (*domain.Detection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	if !ok {
		return nil, storage.ErrDetectionNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *DetectionRepo) ListByAddress(
	ctx context.Context,
	address string,
	limit int,
) ([]*domain.Detection, error) {
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}
	r.mu.RLock()
	ids := r.byAddress[strings.ToLower(address)]
	out := make([]*domain.Detection, 0, len(ids))
	for _, id := range ids {
		cp := *r.byID[id]
		out = append(out, &cp)
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *DetectionRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, d := range r.byID {
		if !d.CreatedAt.Before(before) {
			continue
		}
		delete(r.byID, id)
		addr := strings.ToLower(d.Address)
		r.byAddress[addr] = slices.DeleteFunc(r.byAddress[addr], func(v string) bool { return v == id })
		if len(r.byAddress[addr]) == 0 {
			delete(r.byAddress, addr)
		}
		n++
	}
	return n, nil
}

// Len returns the number of stored detections.
func (r *DetectionRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
