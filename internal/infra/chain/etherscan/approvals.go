package etherscan

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/vietddude/scamradar/internal/core/domain"
	"github.com/vietddude/scamradar/internal/infra/rpc/routing"
)

var approvalSelectors = map[string]string{
	"0x095ea7b3": "approve",
	"0xa22cb465": "setApprovalForAll",
	"0x39509351": "increaseAllowance",
	"0xa457c2d7": "decreaseAllowance",
}

// infiniteThreshold is half of the uint256 range; larger allowances are
// treated as unlimited.
var infiniteThreshold = new(big.Int).Rsh(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)), 1)

// ApprovalAuditor lists allowance grants issued by an account.
type ApprovalAuditor struct {
	client *Client
	pool   *routing.KeyPool
}

// NewApprovalAuditor creates an auditor drawing keys from pool.
func NewApprovalAuditor(client *Client, pool *routing.KeyPool) *ApprovalAuditor {
	return &ApprovalAuditor{client: client, pool: pool}
}

// Approvals scans one page of the account's normal transactions and
// returns the approval-style calls with a heuristic risk label.
func (a *ApprovalAuditor) Approvals(ctx context.Context, address string, page, limit int) ([]domain.Approval, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 200
	}
	p, err := a.client.TokenTransfers(ctx, a.pool.Next(), "txlist", strings.ToLower(address), page, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions: %w", ErrRetrieval, err)
	}

	approvals := []domain.Approval{}
	for _, row := range p.Rows {
		if appr, ok := DecodeApproval(row); ok {
			approvals = append(approvals, appr)
		}
	}
	return approvals, nil
}

// DecodeApproval extracts an approval from a transaction row when its call
// data targets one of the allowance functions.
func DecodeApproval(row TransferRow) (domain.Approval, bool) {
	input := strings.ToLower(row.Input)
	method, ok := approvalSelectors[SelectorOf(input)]
	if !ok {
		return domain.Approval{}, false
	}

	appr := domain.Approval{
		TxHash:        row.Hash,
		Timestamp:     parseInt(row.TimeStamp),
		Method:        method,
		Owner:         strings.ToLower(row.From),
		TokenContract: strings.ToLower(row.To),
	}

	words := callArgs(input)
	if len(words) > 0 {
		appr.Spender = wordAddress(words[0])
	}
	if len(words) > 1 {
		amount := new(big.Int).SetBytes(words[1])
		if method == "setApprovalForAll" {
			approved := amount.Sign() != 0
			appr.Approved = &approved
			appr.IsInfinite = approved
		} else {
			appr.Allowance = amount
			appr.IsInfinite = amount.Cmp(infiniteThreshold) > 0
		}
	}

	appr.RiskScore, appr.RiskLevel = approvalRisk(appr)
	return appr, true
}

func approvalRisk(a domain.Approval) (float64, domain.RiskLevel) {
	switch {
	case a.Approved != nil && *a.Approved:
		return 0.9, domain.RiskHigh
	case a.IsInfinite:
		return 0.8, domain.RiskHigh
	case a.Allowance != nil && a.Allowance.Sign() > 0:
		return 0.5, domain.RiskMedium
	default:
		return 0, domain.RiskLow
	}
}
