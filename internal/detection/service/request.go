package service

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/vietddude/scamradar/internal/core/domain"
	"github.com/vietddude/scamradar/internal/detection/explain"
	"github.com/vietddude/scamradar/internal/infra/chain/etherscan"
)

// TransactionRequest asks for a transaction-level detection. Either Hash is
// set, or From and To describe a pending transaction. Quantities accept
// decimal or 0x-prefixed hex.
type TransactionRequest struct {
	Hash string

	From            string
	To              string
	Value           string
	GasPrice        string
	GasUsed         string
	Timestamp       int64
	FunctionCall    []string
	Input           string
	ContractAddress string
	TokenValue      string

	Explain        bool
	ExplainWithLLM bool
}

func (r TransactionRequest) validate() error {
	if r.ExplainWithLLM && !r.Explain {
		return fmt.Errorf("%w: explain must be set when explain_with_llm is set", ErrInvalidRequest)
	}
	if r.Hash != "" {
		b, err := hexutil.Decode(r.Hash)
		if err != nil || len(b) != common.HashLength {
			return fmt.Errorf("%w: %q is not a transaction hash", ErrInvalidRequest, r.Hash)
		}
		return nil
	}
	if r.From == "" || r.To == "" {
		return fmt.Errorf("%w: either a transaction hash or from and to addresses are required", ErrInvalidRequest)
	}
	for _, a := range []string{r.From, r.To, r.ContractAddress} {
		if a != "" && !common.IsHexAddress(a) {
			return fmt.Errorf("%w: %q is not an address", ErrInvalidRequest, a)
		}
	}
	for _, q := range []struct{ field, value string }{
		{"value", r.Value},
		{"gasPrice", r.GasPrice},
		{"token_value", r.TokenValue},
	} {
		if _, err := parseQuantity(q.field, q.value); err != nil {
			return err
		}
	}
	gas, err := parseQuantity("gasUsed", r.GasUsed)
	if err != nil {
		return err
	}
	if !gas.IsUint64() {
		return fmt.Errorf("%w: gasUsed %q is out of range", ErrInvalidRequest, r.GasUsed)
	}
	return nil
}

// record builds the pending transaction. The contract defaults to the
// recipient and call names are decoded from Input when not given.
func (r TransactionRequest) record(now time.Time) *domain.TransactionRecord {
	calls := r.FunctionCall
	if len(calls) == 0 && r.Input != "" {
		calls = etherscan.DecodeFunctionNames(r.Input)
	}
	if calls == nil {
		calls = []string{}
	}
	ts := r.Timestamp
	if ts == 0 {
		ts = now.Unix()
	}
	txType := domain.TxTypeNormal
	if r.ContractAddress != "" {
		txType = domain.TxTypeERC721
	}
	return &domain.TransactionRecord{
		From:              strings.ToLower(r.From),
		To:                strings.ToLower(r.To),
		Value:             quantity(r.Value),
		GasPrice:          quantity(r.GasPrice),
		GasUsed:           quantity(r.GasUsed).Uint64(),
		Timestamp:         ts,
		FunctionSelectors: calls,
		ContractAddress:   strings.ToLower(firstNonEmpty(r.ContractAddress, r.To)),
		TokenValue:        quantity(r.TokenValue),
		Type:              txType,
	}
}

// parseQuantity parses a non-negative decimal or hex amount of at most 256
// bits. Empty input is zero.
func parseQuantity(field, s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := math.ParseBig256(s)
	if !ok {
		return nil, fmt.Errorf("%w: %s %q is not a quantity", ErrInvalidRequest, field, s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s %q is negative", ErrInvalidRequest, field, s)
	}
	return v, nil
}

// quantity parses an amount already checked by validate.
func quantity(s string) *big.Int {
	v, err := parseQuantity("", s)
	if err != nil {
		return new(big.Int)
	}
	return v
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Explanations holds the attribution per task. Only the requested task is set.
type Explanations struct {
	Account     *explain.Result `json:"account"`
	Transaction *explain.Result `json:"transaction"`
}

// Narrations holds the natural-language explanation per task.
type Narrations struct {
	Account     *Narration `json:"account"`
	Transaction *Narration `json:"transaction"`
}

// Result is the detection payload handed to callers.
type Result struct {
	ID                     string               `json:"detection_id"`
	AccountAddress         string               `json:"account_address"`
	ToAddress              string               `json:"to_address,omitempty"`
	TxHash                 string               `json:"transaction_hash,omitempty"`
	AccountProbability     *float64             `json:"account_scam_probability"`
	TransactionProbability *float64             `json:"transaction_scam_probability,omitempty"`
	TransactionsCount      int                  `json:"transactions_count"`
	TransactionsUsed       int                  `json:"transactions_used_for_features,omitempty"`
	Mode                   domain.DetectionMode `json:"detection_mode"`
	Message                string               `json:"message,omitempty"`
	Features               []float64            `json:"features,omitempty"`
	Explanations           *Explanations        `json:"explanations,omitempty"`
	LLMExplanations        *Narrations          `json:"llm_explanations,omitempty"`
}

// Probability returns the probability of whichever task was scored.
func (r *Result) Probability() *float64 {
	if r.TransactionProbability != nil {
		return r.TransactionProbability
	}
	return r.AccountProbability
}
