package rarible

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/scamradar/internal/core/domain"
	"github.com/vietddude/scamradar/internal/infra/cache"
)

const defaultEnrichTimeout = 3 * time.Second

// StatsSource looks up statistics for one collection contract.
type StatsSource interface {
	CollectionStats(ctx context.Context, contract string) (*domain.CollectionStats, error)
}

// Enricher fills the NFT market fields of transfer records.
//
// Lookups are issued once per unique contract and run concurrently under a
// single deadline. Contracts the upstream does not know are remembered in a
// shared negative cache and never queried again.
type Enricher struct {
	source   StatsSource
	negative cache.NegativeSet
	positive *cache.Memo[domain.CollectionStats]
	timeout  time.Duration
	metrics  Metrics
	log      *slog.Logger
}

// EnricherOptions configure an Enricher. Negative is required and is
// normally shared by every enricher in the process.
type EnricherOptions struct {
	Negative cache.NegativeSet
	// Positive caches successful lookups; nil disables it.
	Positive *cache.Memo[domain.CollectionStats]
	// Timeout bounds the whole lookup fan-out.
	Timeout time.Duration
	Metrics Metrics
}

// NewEnricher creates an enricher.
func NewEnricher(source StatsSource, opts EnricherOptions) *Enricher {
	if opts.Negative == nil {
		opts.Negative = cache.NewMemorySet()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultEnrichTimeout
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	return &Enricher{
		source:   source,
		negative: opts.Negative,
		positive: opts.Positive,
		timeout:  opts.Timeout,
		metrics:  opts.Metrics,
		log:      slog.Default().With("component", "enricher"),
	}
}

type lookupResult struct {
	stats *domain.CollectionStats
	err   error
}

// Enrich updates records in place and returns them. ERC-20 records are left
// untouched; every other record ends with either collection data or zeroed
// market fields.
func (e *Enricher) Enrich(ctx context.Context, records []*domain.TransactionRecord) []*domain.TransactionRecord {
	byContract := make(map[string][]*domain.TransactionRecord)
	for _, r := range records {
		if r.Type == domain.TxTypeERC20 {
			e.metrics.CollectionLookup(OutcomeSkippedERC20)
			continue
		}
		r.NFT = domain.NFTMarket{}
		contract := strings.ToLower(r.ContractAddress)
		if contract == "" {
			continue
		}
		byContract[contract] = append(byContract[contract], r)
	}

	pending := make([]string, 0, len(byContract))
	for contract, recs := range byContract {
		if e.negative.Contains(ctx, contract) {
			e.metrics.CollectionLookup(OutcomeNegativeHit)
			continue
		}
		if e.positive != nil {
			if stats, ok := e.positive.Get(contract); ok {
				e.metrics.CollectionLookup(OutcomeCacheHit)
				apply(recs, stats)
				continue
			}
		}
		pending = append(pending, contract)
	}
	if len(pending) == 0 {
		return records
	}

	results := e.lookupAll(ctx, pending)
	for _, contract := range pending {
		res, done := results[contract]
		switch {
		case !done, errors.Is(res.err, context.DeadlineExceeded):
			e.metrics.CollectionLookup(OutcomeTimeout)
			e.log.Debug("collection lookup timed out", "contract", contract)
		case res.err != nil:
			// fields stay zeroed
		default:
			if e.positive != nil {
				e.positive.Set(contract, *res.stats)
			}
			apply(byContract[contract], *res.stats)
		}
	}
	return records
}

func apply(records []*domain.TransactionRecord, stats domain.CollectionStats) {
	market := stats.Market()
	for _, r := range records {
		r.NFT = market
	}
}

// lookupAll runs the lookups concurrently and returns whatever finished
// before the deadline. Stragglers are abandoned.
func (e *Enricher) lookupAll(ctx context.Context, contracts []string) map[string]lookupResult {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]lookupResult, len(contracts))
		closed  bool
	)

	var g errgroup.Group
	for _, contract := range contracts {
		g.Go(func() error {
			stats, err := e.lookup(ctx, contract)
			mu.Lock()
			defer mu.Unlock()
			if !closed {
				results[contract] = lookupResult{stats: stats, err: err}
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	mu.Lock()
	defer mu.Unlock()
	closed = true
	snapshot := make(map[string]lookupResult, len(results))
	for k, v := range results {
		snapshot[k] = v
	}
	return snapshot
}

func (e *Enricher) lookup(ctx context.Context, contract string) (*domain.CollectionStats, error) {
	stats, err := e.source.CollectionStats(ctx, contract)
	switch {
	case err == nil:
		e.metrics.CollectionLookup(OutcomeHit)
		return stats, nil
	case errors.Is(err, ErrCollectionNotFound):
		_ = e.negative.Add(ctx, contract)
		e.metrics.CollectionLookup(OutcomeNotFound)
		return nil, err
	case ctx.Err() != nil:
		return nil, err
	default:
		e.metrics.CollectionLookup(OutcomeError)
		e.log.Debug("collection lookup failed", "contract", contract, "error", err)
		return nil, err
	}
}
