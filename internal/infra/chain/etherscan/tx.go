package etherscan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/vietddude/scamradar/internal/core/domain"
	"github.com/vietddude/scamradar/internal/infra/rpc/routing"
)

type rpcTx struct {
	Hash        string `json:"hash"`
	BlockNumber string `json:"blockNumber"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	GasPrice    string `json:"gasPrice"`
	Input       string `json:"input"`
}

type rpcReceipt struct {
	GasUsed string `json:"gasUsed"`
}

type rpcBlock struct {
	Timestamp string `json:"timestamp"`
}

// TxLookup fetches single transactions through the explorer's JSON-RPC
// proxy.
type TxLookup struct {
	client *Client
	pool   *routing.KeyPool
	now    func() time.Time
}

// NewTxLookup creates a lookup drawing keys from pool.
func NewTxLookup(client *Client, pool *routing.KeyPool) *TxLookup {
	return &TxLookup{client: client, pool: pool, now: time.Now}
}

// FetchByHash returns the transaction identified by hash as a record.
// The contract address is the call target; the token standard is erc721 for
// calls carrying arguments and normal otherwise. Market fields stay zero.
func (l *TxLookup) FetchByHash(ctx context.Context, hash string) (*domain.TransactionRecord, error) {
	hash = strings.ToLower(strings.TrimSpace(hash))

	raw, err := l.client.Proxy(ctx, l.pool.Next(), "eth_getTransactionByHash", url.Values{"txhash": {hash}})
	if err != nil {
		return nil, fmt.Errorf("%w: get transaction %s: %w", ErrRetrieval, hash, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: %s", ErrTxNotFound, hash)
	}
	var tx rpcTx
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, fmt.Errorf("parse transaction %s: %w", hash, err)
	}

	var gasUsed uint64
	if raw, err := l.client.Proxy(ctx, l.pool.Next(), "eth_getTransactionReceipt", url.Values{"txhash": {hash}}); err == nil && raw != nil {
		var rcpt rpcReceipt
		if json.Unmarshal(raw, &rcpt) == nil {
			gasUsed = parseUint(rcpt.GasUsed)
		}
	}

	timestamp := l.now().Unix()
	if tx.BlockNumber != "" {
		raw, err := l.client.Proxy(ctx, l.pool.Next(), "eth_getBlockByNumber", url.Values{
			"tag":     {tx.BlockNumber},
			"boolean": {"false"},
		})
		if err == nil && raw != nil {
			var blk rpcBlock
			if json.Unmarshal(raw, &blk) == nil && blk.Timestamp != "" {
				timestamp = parseInt(blk.Timestamp)
			}
		}
	}

	txType := domain.TxTypeNormal
	if len(tx.Input) > 10 {
		txType = domain.TxTypeERC721
	}

	to := strings.ToLower(tx.To)
	return &domain.TransactionRecord{
		Hash:              hash,
		BlockNumber:       parseUint(tx.BlockNumber),
		From:              strings.ToLower(tx.From),
		To:                to,
		Value:             parseBig(tx.Value),
		GasPrice:          parseBig(tx.GasPrice),
		GasUsed:           gasUsed,
		Timestamp:         timestamp,
		FunctionSelectors: DecodeFunctionNames(tx.Input),
		ContractAddress:   to,
		TokenValue:        parseBig("0"),
		Type:              txType,
	}, nil
}
