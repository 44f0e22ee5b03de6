// Package etherscan retrieves token-transfer history and single transactions
// from an Etherscan-compatible block explorer.
package etherscan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/vietddude/scamradar/internal/infra/rpc/provider"
	"github.com/vietddude/scamradar/internal/infra/rpc/routing"
)

var (
	// ErrRetrieval is returned when the explorer could not be queried at all.
	ErrRetrieval = errors.New("chain data retrieval failed")
	// ErrUpstream wraps explorer-level failures (status "0" with an error message).
	ErrUpstream = errors.New("explorer error")
	// ErrTxNotFound is returned when a transaction hash is unknown.
	ErrTxNotFound = errors.New("transaction not found")
)

// PageStatus distinguishes a populated page from a valid empty answer.
type PageStatus int

const (
	StatusOK PageStatus = iota
	StatusNoData
)

// Page is one page of explorer results.
type Page struct {
	Status PageStatus
	Rows   []TransferRow
}

// TransferRow is a raw explorer row. Every field arrives as a string.
type TransferRow struct {
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"`
	GasPrice        string `json:"gasPrice"`
	GasUsed         string `json:"gasUsed"`
	TimeStamp       string `json:"timeStamp"`
	Input           string `json:"input"`
	Hash            string `json:"hash"`
	BlockNumber     string `json:"blockNumber"`
	ContractAddress string `json:"contractAddress"`
	TokenValue      string `json:"tokenValue"`
	TokenDecimal    string `json:"tokenDecimal"`
	TokenID         string `json:"tokenID"`
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client issues explorer API calls, one credential per call.
type Client struct {
	provider *provider.HTTPProvider
	chainID  int
}

// NewClient creates a client on top of an HTTP provider rooted at the
// explorer's API URL.
func NewClient(p *provider.HTTPProvider, chainID int) *Client {
	return &Client{provider: p, chainID: chainID}
}

// Provider exposes the underlying transport for health reporting.
func (c *Client) Provider() *provider.HTTPProvider {
	return c.provider
}

func (c *Client) get(
	ctx context.Context,
	cred *routing.Credential,
	module, action string,
	params url.Values,
) (*envelope, error) {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("module", module)
	q.Set("action", action)
	q.Set("chainid", strconv.Itoa(c.chainID))
	q.Set("apikey", cred.Key)

	cred.Wait()
	body, err := c.provider.Get(ctx, "", q, nil)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("parse %s response: %w", action, err)
	}
	return &env, nil
}

// TokenTransfers fetches one page of transfers of the given action
// (tokentx, tokennfttx, token1155tx or txlist). Key failures are reported
// on cred so the pool rotates away from it.
func (c *Client) TokenTransfers(
	ctx context.Context,
	cred *routing.Credential,
	action, address string,
	page, offset int,
) (_ Page, err error) {
	defer func() { cred.Report(err) }()

	env, err := c.get(ctx, cred, "account", action, url.Values{
		"address":    {address},
		"startblock": {"0"},
		"endblock":   {"99999999"},
		"page":       {strconv.Itoa(page)},
		"offset":     {strconv.Itoa(offset)},
		"sort":       {"desc"},
	})
	if err != nil {
		return Page{}, err
	}

	var rows []TransferRow
	listErr := json.Unmarshal(env.Result, &rows)

	if env.Status == "1" {
		if listErr != nil {
			return Page{}, fmt.Errorf("parse %s rows: %w", action, listErr)
		}
		if len(rows) == 0 {
			return Page{Status: StatusNoData}, nil
		}
		return Page{Status: StatusOK, Rows: rows}, nil
	}

	// status "0": an empty result list means "no transactions", a string
	// result carries the failure reason.
	if listErr == nil && len(rows) == 0 {
		return Page{Status: StatusNoData}, nil
	}
	var reason string
	_ = json.Unmarshal(env.Result, &reason)
	return Page{}, fmt.Errorf("%w: %s: %s", ErrUpstream, env.Message, reason)
}

// Proxy invokes a JSON-RPC method through the explorer's proxy module and
// returns the raw result. A null result is returned as nil without error.
func (c *Client) Proxy(
	ctx context.Context,
	cred *routing.Credential,
	action string,
	params url.Values,
) (_ json.RawMessage, err error) {
	defer func() { cred.Report(err) }()

	env, err := c.get(ctx, cred, "proxy", action, params)
	if err != nil {
		return nil, err
	}
	if env.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, env.Error.Message)
	}
	if env.Status == "0" {
		var reason string
		_ = json.Unmarshal(env.Result, &reason)
		return nil, fmt.Errorf("%w: %s: %s", ErrUpstream, env.Message, reason)
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil, nil
	}
	return env.Result, nil
}
