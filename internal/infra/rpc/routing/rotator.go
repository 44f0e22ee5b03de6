// Package routing handles credential rotation and upstream error classification.
//
// This package contains:
//   - KeyPool: round-robin credential rotation with per-key pacing
//   - KeyRing: one KeyPool per upstream API
//   - ClassifyError: maps upstream failures to an action
package routing

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/ratelimit"

	"github.com/vietddude/scamradar/internal/infra/rpc/provider"
)

// PlaceholderKey stands in when an API has no configured keys. Upstreams
// reject it, which surfaces as a transport error rather than a pipeline one.
const PlaceholderKey = "YourApiKeyToken"

// Cooldowns applied to a key after a key-specific failure.
const (
	ThrottleCooldown = time.Second
	RejectCooldown   = time.Minute
)

// Credential is a single API key with its own request pacing and cooldown.
type Credential struct {
	Key     string
	limiter ratelimit.Limiter
	until   atomic.Int64 // unix nanos; zero when usable
}

// Wait blocks until the key is allowed to issue another request.
func (c *Credential) Wait() {
	c.limiter.Take()
}

// CoolDown takes the key out of rotation for d.
func (c *Credential) CoolDown(d time.Duration) {
	c.until.Store(time.Now().Add(d).UnixNano())
}

// CoolingDown reports whether the key is resting at now.
func (c *Credential) CoolingDown(now time.Time) bool {
	return now.UnixNano() < c.until.Load()
}

// Report records the outcome of a call made with the key. Rate limits rest
// the key briefly, rejections (bad or revoked key) for RejectCooldown.
// Other failures leave the key in rotation.
func (c *Credential) Report(err error) {
	if err == nil || ClassifyError(err) != ActionFailover {
		return
	}
	if provider.StatusCode(err) == 429 || isRateLimit(err) {
		c.CoolDown(ThrottleCooldown)
		return
	}
	c.CoolDown(RejectCooldown)
}

// KeyPool hands out credentials in round-robin order.
// It is safe for concurrent use and wraps around indefinitely.
type KeyPool struct {
	name  string
	creds []*Credential
	next  atomic.Uint64
}

// NewKeyPool creates a pool for the given keys. ratePerKey bounds requests
// per second for each key; zero disables pacing.
func NewKeyPool(name string, keys []string, ratePerKey int) *KeyPool {
	if len(keys) == 0 {
		keys = []string{PlaceholderKey}
	}

	creds := make([]*Credential, len(keys))
	for i, k := range keys {
		limiter := ratelimit.NewUnlimited()
		if ratePerKey > 0 {
			limiter = ratelimit.New(ratePerKey)
		}
		creds[i] = &Credential{Key: k, limiter: limiter}
	}
	return &KeyPool{name: name, creds: creds}
}

// Name returns the upstream this pool serves.
func (p *KeyPool) Name() string {
	return p.name
}

// Size returns the number of distinct credentials.
func (p *KeyPool) Size() int {
	return len(p.creds)
}

// Next returns the next credential in rotation, skipping keys that are
// cooling down. When every key rests, the scheduled one is returned anyway.
func (p *KeyPool) Next() *Credential {
	n := p.next.Add(1) - 1
	size := uint64(len(p.creds))
	first := p.creds[n%size]
	if size == 1 {
		return first
	}
	now := time.Now()
	for i := uint64(0); i < size; i++ {
		if c := p.creds[(n+i)%size]; !c.CoolingDown(now) {
			return c
		}
	}
	return first
}

// Partition splits the pool into n sub-pools so concurrent callers draw from
// disjoint keys. Sub-pool i holds keys i, i+n, i+2n, ...; with fewer keys
// than n the keys are shared cyclically. Credentials (and their pacing) are
// shared with the parent pool.
func (p *KeyPool) Partition(n int) []*KeyPool {
	if n <= 0 {
		return nil
	}

	parts := make([]*KeyPool, n)
	for i := range parts {
		var creds []*Credential
		for j := i; j < len(p.creds); j += n {
			creds = append(creds, p.creds[j])
		}
		if len(creds) == 0 {
			creds = []*Credential{p.creds[i%len(p.creds)]}
		}
		parts[i] = &KeyPool{name: fmt.Sprintf("%s#%d", p.name, i), creds: creds}
	}
	return parts
}

// KeyRing keeps one pool per upstream API so keys are never cross-used.
type KeyRing struct {
	mu    sync.RWMutex
	pools map[string]*KeyPool
}

// NewKeyRing creates an empty ring.
func NewKeyRing() *KeyRing {
	return &KeyRing{pools: make(map[string]*KeyPool)}
}

// Register adds or replaces the pool for an API.
func (r *KeyRing) Register(pool *KeyPool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pools[pool.Name()] = pool
}

// Pool returns the pool for an API, or a placeholder pool when none was
// registered.
func (r *KeyRing) Pool(api string) *KeyPool {
	r.mu.RLock()
	p, ok := r.pools[api]
	r.mu.RUnlock()
	if ok {
		return p
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pools[api]; ok {
		return p
	}
	p = NewKeyPool(api, nil, 0)
	r.pools[api] = p
	return p
}

// APIs lists registered upstreams.
func (r *KeyRing) APIs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.pools))
	for name := range r.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
