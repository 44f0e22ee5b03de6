package rarible

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/scamradar/internal/core/domain"
	"github.com/vietddude/scamradar/internal/infra/cache"
)

type fakeSource struct {
	mu       sync.Mutex
	calls    map[string]int
	notFound map[string]bool
	hang     map[string]bool
	fail     map[string]bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		calls:    map[string]int{},
		notFound: map[string]bool{},
		hang:     map[string]bool{},
		fail:     map[string]bool{},
	}
}

func (s *fakeSource) CollectionStats(ctx context.Context, contract string) (*domain.CollectionStats, error) {
	s.mu.Lock()
	s.calls[contract]++
	s.mu.Unlock()

	switch {
	case s.hang[contract]:
		<-ctx.Done()
		return nil, ctx.Err()
	case s.notFound[contract]:
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, contract)
	case s.fail[contract]:
		return nil, errors.New("connection reset")
	}
	return &domain.CollectionStats{
		Owners:         100,
		Items:          1000,
		FloorPriceETH:  0.5,
		VolumeETH:      250,
		HighestSaleETH: 0,
	}, nil
}

func (s *fakeSource) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func nft(contract string) *domain.TransactionRecord {
	return &domain.TransactionRecord{
		ContractAddress: contract,
		Type:            domain.TxTypeERC721,
		Value:           big.NewInt(0),
	}
}

func erc20(contract string) *domain.TransactionRecord {
	return &domain.TransactionRecord{ContractAddress: contract, Type: domain.TxTypeERC20}
}

func TestEnricher_FillsMarketFields(t *testing.T) {
	src := newFakeSource()
	e := NewEnricher(src, EnricherOptions{Negative: cache.NewMemorySet()})

	recs := e.Enrich(context.Background(), []*domain.TransactionRecord{nft("0xc1")})
	require.Len(t, recs, 1)
	assert.Equal(t, 100.0, recs[0].NFT.NumOwners)
	assert.Equal(t, 1000.0, recs[0].NFT.TotalSales)
	assert.Equal(t, 0.25, recs[0].NFT.AveragePrice, "volume per item")
	assert.Zero(t, recs[0].NFT.Volume7d)
}

func TestEnricher_DeduplicatesContracts(t *testing.T) {
	src := newFakeSource()
	e := NewEnricher(src, EnricherOptions{Negative: cache.NewMemorySet()})

	var recs []*domain.TransactionRecord
	for i := 0; i < 12; i++ {
		recs = append(recs, nft(fmt.Sprintf("0xc%d", i%3)))
	}
	out := e.Enrich(context.Background(), recs)

	assert.Len(t, out, 12)
	assert.Equal(t, 3, src.total())
	for _, r := range out {
		assert.Equal(t, 100.0, r.NFT.NumOwners)
	}
}

func TestEnricher_SkipsERC20(t *testing.T) {
	src := newFakeSource()
	e := NewEnricher(src, EnricherOptions{Negative: cache.NewMemorySet()})

	recs := e.Enrich(context.Background(), []*domain.TransactionRecord{erc20("0xt1"), erc20("0xt2")})
	assert.Zero(t, src.total())
	assert.Equal(t, domain.NFTMarket{}, recs[0].NFT)
}

func TestEnricher_SameCollectionAcrossERC20Mix(t *testing.T) {
	src := newFakeSource()
	e := NewEnricher(src, EnricherOptions{Negative: cache.NewMemorySet()})

	recs := []*domain.TransactionRecord{erc20("0xt1"), erc20("0xt2"), nft("0xNFT"), nft("0xnft")}
	e.Enrich(context.Background(), recs)

	assert.Equal(t, 1, src.total())
	assert.Equal(t, 100.0, recs[2].NFT.NumOwners)
	assert.Equal(t, 100.0, recs[3].NFT.NumOwners)
}

func TestEnricher_EmptyContractBypassesNetwork(t *testing.T) {
	src := newFakeSource()
	e := NewEnricher(src, EnricherOptions{Negative: cache.NewMemorySet()})

	r := nft("")
	r.NFT.FloorPrice = 9
	e.Enrich(context.Background(), []*domain.TransactionRecord{r})
	assert.Zero(t, src.total())
	assert.Equal(t, domain.NFTMarket{}, r.NFT)
}

func TestEnricher_PositiveCacheIsIdempotent(t *testing.T) {
	src := newFakeSource()
	e := NewEnricher(src, EnricherOptions{
		Negative: cache.NewMemorySet(),
		Positive: cache.NewMemo[domain.CollectionStats](0),
	})

	e.Enrich(context.Background(), []*domain.TransactionRecord{nft("0xc1")})
	second := e.Enrich(context.Background(), []*domain.TransactionRecord{nft("0xC1")})

	assert.Equal(t, 1, src.total())
	assert.Equal(t, 100.0, second[0].NFT.NumOwners)
}

func TestEnricher_NotFoundIsCachedNegatively(t *testing.T) {
	src := newFakeSource()
	src.notFound["0xgone"] = true
	negative := cache.NewMemorySet()
	metrics := newCountingMetrics()
	e := NewEnricher(src, EnricherOptions{Negative: negative, Metrics: metrics})

	first := e.Enrich(context.Background(), []*domain.TransactionRecord{nft("0xgone")})
	assert.Equal(t, domain.NFTMarket{}, first[0].NFT)
	assert.Equal(t, 1, src.total())
	assert.True(t, negative.Contains(context.Background(), "0xgone"))

	// A second enricher sharing the cache must not query again.
	other := NewEnricher(src, EnricherOptions{Negative: negative, Metrics: metrics})
	other.Enrich(context.Background(), []*domain.TransactionRecord{nft("0xGONE")})
	e.Enrich(context.Background(), []*domain.TransactionRecord{nft("0xgone")})

	assert.Equal(t, 1, src.total())
	assert.Equal(t, 1, metrics.outcomes[OutcomeNotFound])
	assert.Equal(t, 2, metrics.outcomes[OutcomeNegativeHit])
}

func TestEnricher_ErrorDegradesToZeroWithoutCaching(t *testing.T) {
	src := newFakeSource()
	src.fail["0xflaky"] = true
	negative := cache.NewMemorySet()
	e := NewEnricher(src, EnricherOptions{Negative: negative})

	recs := e.Enrich(context.Background(), []*domain.TransactionRecord{nft("0xflaky")})
	assert.Equal(t, domain.NFTMarket{}, recs[0].NFT)
	assert.False(t, negative.Contains(context.Background(), "0xflaky"))
}

func TestEnricher_TimeoutDegradesToZero(t *testing.T) {
	src := newFakeSource()
	src.hang["0xslow"] = true
	metrics := newCountingMetrics()
	e := NewEnricher(src, EnricherOptions{
		Negative: cache.NewMemorySet(),
		Timeout:  50 * time.Millisecond,
		Metrics:  metrics,
	})

	slow, fast := nft("0xslow"), nft("0xfast")
	start := time.Now()
	e.Enrich(context.Background(), []*domain.TransactionRecord{slow, fast})

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, domain.NFTMarket{}, slow.NFT)
	assert.Equal(t, 100.0, fast.NFT.NumOwners)
	assert.Equal(t, 1, metrics.outcomes[OutcomeTimeout])
}
