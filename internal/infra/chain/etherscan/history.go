package etherscan

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vietddude/scamradar/internal/core/domain"
	"github.com/vietddude/scamradar/internal/infra/rpc/routing"
)

// DefaultHistoryLimit is the page size when the caller passes none.
const DefaultHistoryLimit = 50

// TxHistory lists an account's normal transactions.
type TxHistory struct {
	client *Client
	pool   *routing.KeyPool
}

// NewTxHistory creates a lister drawing keys from pool.
func NewTxHistory(client *Client, pool *routing.KeyPool) *TxHistory {
	return &TxHistory{client: client, pool: pool}
}

// Transactions returns one page of the account's transactions, newest
// first. An account without transactions yields an empty list.
func (h *TxHistory) Transactions(
	ctx context.Context,
	address string,
	page, limit int,
) ([]domain.AccountTransaction, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	address = strings.ToLower(address)
	p, err := h.client.TokenTransfers(ctx, h.pool.Next(), "txlist", address, page, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions: %w", ErrRetrieval, err)
	}

	txs := make([]domain.AccountTransaction, 0, len(p.Rows))
	for _, row := range p.Rows {
		txs = append(txs, NormalizeTransaction(address, row))
	}
	return txs, nil
}

// NormalizeTransaction converts a txlist row seen from address.
func NormalizeTransaction(address string, row TransferRow) domain.AccountTransaction {
	dir := domain.DirectionIn
	if strings.EqualFold(row.From, address) {
		dir = domain.DirectionOut
	}
	return domain.AccountTransaction{
		Hash:      row.Hash,
		Timestamp: parseInt(row.TimeStamp),
		From:      row.From,
		To:        row.To,
		ValueETH:  decimal.NewFromBigInt(parseBig(row.Value), -18).InexactFloat64(),
		Direction: dir,
	}
}
