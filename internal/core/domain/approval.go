package domain

import "math/big"

// RiskLevel is a coarse label attached to an approval.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Approval is a decoded allowance-granting call made by an owner.
type Approval struct {
	TxHash        string    `json:"tx_hash"`
	Timestamp     int64     `json:"timestamp"`
	Method        string    `json:"method"`
	Owner         string    `json:"owner"`
	TokenContract string    `json:"token_contract"`
	Spender       string    `json:"spender"`
	Allowance     *big.Int  `json:"allowance,omitempty"`
	Approved      *bool     `json:"approved,omitempty"`
	IsInfinite    bool      `json:"is_infinite"`
	RiskScore     float64   `json:"risk_score"`
	RiskLevel     RiskLevel `json:"risk_level"`
}
