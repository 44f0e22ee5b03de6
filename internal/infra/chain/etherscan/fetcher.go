package etherscan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/scamradar/internal/core/domain"
	"github.com/vietddude/scamradar/internal/infra/rpc/routing"
)

const defaultPageSize = 100

// Category is one explorer transfer listing.
type Category struct {
	Action string
	Type   domain.TxType
}

// Categories are fetched concurrently for every account.
var Categories = []Category{
	{Action: "tokentx", Type: domain.TxTypeERC20},
	{Action: "tokennfttx", Type: domain.TxTypeERC721},
	{Action: "token1155tx", Type: domain.TxTypeERC1155},
}

// FetcherConfig bounds how much history is collected.
type FetcherConfig struct {
	MaxPerCategory int
	MaxTotal       int
	PageSize       int
	// Backoff paces attempts after transient failures. Key failover does
	// not wait.
	Backoff routing.BackoffConfig
}

// Fetcher collects an account's recent token transfers across all
// categories.
type Fetcher struct {
	client *Client
	pools  []*routing.KeyPool
	cfg    FetcherConfig
	log    *slog.Logger
}

// NewFetcher creates a fetcher. The key pool is partitioned so each
// category draws from its own slice of keys.
func NewFetcher(client *Client, pool *routing.KeyPool, cfg FetcherConfig) *Fetcher {
	if cfg.MaxPerCategory <= 0 {
		cfg.MaxPerCategory = 10
	}
	if cfg.MaxTotal <= 0 {
		cfg.MaxTotal = 10
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	return &Fetcher{
		client: client,
		pools:  pool.Partition(len(Categories)),
		cfg:    cfg,
		log:    slog.Default().With("component", "etherscan"),
	}
}

// Client returns the underlying explorer client.
func (f *Fetcher) Client() *Client {
	return f.client
}

// Fetch returns up to MaxTotal transfers involving address, newest first.
// A category that fails contributes nothing; ErrRetrieval is returned only
// when every category failed.
func (f *Fetcher) Fetch(ctx context.Context, address string) ([]*domain.TransactionRecord, error) {
	address = strings.ToLower(address)

	results := make([][]*domain.TransactionRecord, len(Categories))
	errs := make([]error, len(Categories))

	var g errgroup.Group
	for i, cat := range Categories {
		g.Go(func() error {
			recs, err := f.fetchCategory(ctx, f.pools[i], cat, address)
			if err != nil {
				f.log.Warn("category fetch failed",
					"category", cat.Action,
					"address", address,
					"error", err,
				)
				errs[i] = err
				return nil
			}
			results[i] = recs
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(Categories) {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, errors.Join(errs...))
	}

	var merged []*domain.TransactionRecord
	for _, recs := range results {
		merged = append(merged, recs...)
	}
	sort.SliceStable(merged, func(a, b int) bool {
		return merged[a].Timestamp > merged[b].Timestamp
	})
	if len(merged) > f.cfg.MaxTotal {
		merged = merged[:f.cfg.MaxTotal]
	}

	f.log.Debug("fetched transfers", "address", address, "count", len(merged), "failed_categories", failed)
	return merged, nil
}

func (f *Fetcher) fetchCategory(
	ctx context.Context,
	pool *routing.KeyPool,
	cat Category,
	address string,
) ([]*domain.TransactionRecord, error) {
	var out []*domain.TransactionRecord

	for page := 1; len(out) < f.cfg.MaxPerCategory; page++ {
		p, err := f.pageWithFailover(ctx, pool, cat.Action, address, page)
		if err != nil {
			return nil, err
		}
		if p.Status != StatusOK {
			break
		}
		for _, row := range p.Rows {
			out = append(out, toRecord(row, cat.Type))
			if len(out) >= f.cfg.MaxPerCategory {
				break
			}
		}
		if len(p.Rows) < f.cfg.PageSize {
			break
		}
	}
	return out, nil
}

// pageWithFailover retries a page on the next key of the pool when the
// failure is key-related or transient.
func (f *Fetcher) pageWithFailover(
	ctx context.Context,
	pool *routing.KeyPool,
	action, address string,
	page int,
) (Page, error) {
	attempts := max(pool.Size(), 2)

	var lastErr error
	for attempt := range attempts {
		if err := ctx.Err(); err != nil {
			return Page{}, err
		}
		cred := pool.Next()
		p, err := f.client.TokenTransfers(ctx, cred, action, address, page, f.cfg.PageSize)
		if err == nil {
			return p, nil
		}
		lastErr = err
		switch routing.ClassifyError(err) {
		case routing.ActionFatal:
			return Page{}, lastErr
		case routing.ActionRetry:
			if attempt == attempts-1 {
				break
			}
			if err := f.cfg.Backoff.Wait(ctx, attempt); err != nil {
				return Page{}, lastErr
			}
		}
	}
	return Page{}, lastErr
}

func toRecord(row TransferRow, category domain.TxType) *domain.TransactionRecord {
	return &domain.TransactionRecord{
		Hash:              strings.ToLower(row.Hash),
		BlockNumber:       parseUint(row.BlockNumber),
		From:              strings.ToLower(row.From),
		To:                strings.ToLower(row.To),
		Value:             parseBig(row.Value),
		GasPrice:          parseBig(row.GasPrice),
		GasUsed:           parseUint(row.GasUsed),
		Timestamp:         parseInt(row.TimeStamp),
		FunctionSelectors: DecodeFunctionNames(row.Input),
		ContractAddress:   strings.ToLower(firstNonEmpty(row.ContractAddress, row.To)),
		TokenValue:        parseBig(firstNonEmpty(row.TokenValue, row.Value)),
		TokenDecimal:      parseDecimals(row.TokenDecimal),
		TokenID:           row.TokenID,
		Type:              TypeFromInput(row.Input, category),
	}
}
