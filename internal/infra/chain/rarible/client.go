// Package rarible fetches NFT collection statistics and attaches them to
// transfer records.
package rarible

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vietddude/scamradar/internal/core/domain"
	"github.com/vietddude/scamradar/internal/infra/rpc/provider"
	"github.com/vietddude/scamradar/internal/infra/rpc/routing"
)

// ErrCollectionNotFound is returned when the contract has no known
// collection.
var ErrCollectionNotFound = errors.New("collection not found")

// Price is one entry of a multi-currency price list.
type Price struct {
	Currency string          `json:"currency"`
	Value    decimal.Decimal `json:"value"`
}

type statisticsResponse struct {
	Owners      decimal.Decimal `json:"owners"`
	Items       decimal.Decimal `json:"items"`
	Listed      decimal.Decimal `json:"listed"`
	FloorPrice  []Price         `json:"floorPrice"`
	MarketCap   []Price         `json:"marketCap"`
	Volume      []Price         `json:"volume"`
	HighestSale []Price         `json:"highestSale"`
}

// Options tune price conversion.
type Options struct {
	Blockchain string
	// USDPerETH converts USD-only prices when USDFallback is set.
	USDPerETH   float64
	USDFallback bool
	Metrics     Metrics
}

// Client queries the collection statistics endpoint.
type Client struct {
	provider    *provider.HTTPProvider
	pool        *routing.KeyPool
	blockchain  string
	usdPerETH   decimal.Decimal
	usdFallback bool
	metrics     Metrics
	log         *slog.Logger
}

// NewClient creates a client. Each call draws the next key from pool.
func NewClient(p *provider.HTTPProvider, pool *routing.KeyPool, opts Options) *Client {
	if opts.Blockchain == "" {
		opts.Blockchain = "ETHEREUM"
	}
	if opts.USDPerETH <= 0 {
		opts.USDPerETH = 2000
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	return &Client{
		provider:    p,
		pool:        pool,
		blockchain:  opts.Blockchain,
		usdPerETH:   decimal.NewFromFloat(opts.USDPerETH),
		usdFallback: opts.USDFallback,
		metrics:     opts.Metrics,
		log:         slog.Default().With("component", "rarible"),
	}
}

// Provider exposes the underlying transport for health reporting.
func (c *Client) Provider() *provider.HTTPProvider {
	return c.provider
}

// CollectionID returns the upstream identifier of a contract.
func (c *Client) CollectionID(contract string) string {
	return c.blockchain + ":" + strings.ToLower(contract)
}

// CollectionStats fetches statistics for the collection at contract.
func (c *Client) CollectionStats(ctx context.Context, contract string) (*domain.CollectionStats, error) {
	cred := c.pool.Next()
	cred.Wait()

	id := c.CollectionID(contract)
	body, err := c.provider.Get(ctx, "data/collections/"+id+"/statistics", nil, http.Header{
		"X-Api-Key": {cred.Key},
	})
	cred.Report(err)
	if err != nil {
		if provider.StatusCode(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, id)
		}
		return nil, err
	}

	var resp statisticsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse statistics %s: %w", id, err)
	}

	return &domain.CollectionStats{
		Owners:         resp.Owners.InexactFloat64(),
		Items:          resp.Items.InexactFloat64(),
		FloorPriceETH:  c.ethValue(id, "floorPrice", resp.FloorPrice),
		MarketCapETH:   c.ethValue(id, "marketCap", resp.MarketCap),
		VolumeETH:      c.ethValue(id, "volume", resp.Volume),
		HighestSaleETH: c.ethValue(id, "highestSale", resp.HighestSale),
	}, nil
}

// ethValue picks the ETH entry of a price list. Without one, a USD entry is
// converted at the configured rate when the fallback is enabled.
func (c *Client) ethValue(id, field string, prices []Price) float64 {
	for _, p := range prices {
		if strings.EqualFold(p.Currency, "ETH") {
			return p.Value.InexactFloat64()
		}
	}
	for _, p := range prices {
		if !strings.EqualFold(p.Currency, "USD") || !p.Value.IsPositive() {
			continue
		}
		if !c.usdFallback {
			c.log.Debug("usd-only price ignored", "collection", id, "field", field)
			return 0
		}
		c.metrics.USDFallback()
		c.log.Debug("usd price converted", "collection", id, "field", field, "usd_per_eth", c.usdPerETH)
		return p.Value.Div(c.usdPerETH).InexactFloat64()
	}
	return 0
}
