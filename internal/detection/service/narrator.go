package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vietddude/scamradar/internal/core/domain"
	"github.com/vietddude/scamradar/internal/detection/explain"
)

// Narration is a one-feature natural-language explanation.
type Narration struct {
	FeatureName  string `json:"feature_name"`
	FeatureValue string `json:"feature_value"`
	Reason       string `json:"reason"`
}

// Narrator turns an attribution into prose. Implementations typically call
// an LLM service.
type Narrator interface {
	Narrate(ctx context.Context, task domain.Task, probability float64, top []explain.Contribution) (*Narration, error)
}

// narrate never fails: narrator errors become a labeled placeholder.
func (s *Service) narrate(ctx context.Context, task domain.Task, prob float64, exp *explain.Result) *Narration {
	if exp.Error != "" {
		return failedNarration(fmt.Errorf("attribution unavailable: %s", exp.Error))
	}
	t := s.now()
	n, err := s.opts.Narrator.Narrate(ctx, task, prob, exp.TopFeatures)
	s.stage("narrate", t, "task", task)
	if err == nil && n == nil {
		err = fmt.Errorf("narrator returned nothing")
	}
	if err != nil {
		s.log.Warn("narration failed", "task", task, "error", err)
		return failedNarration(err)
	}
	return n
}

func failedNarration(err error) *Narration {
	return &Narration{
		FeatureName:  "Unknown",
		FeatureValue: "0",
		Reason:       "Failed to generate LLM explanation: " + err.Error(),
	}
}

var readableNames = map[string]string{
	"avg_gas_price":          "average transaction fee",
	"activity_duration_days": "account age in days",
	"std_time_between_txns":  "irregularity in transaction timing",
	"total_volume":           "total amount transferred",
	"inNeighborNum":          "number of unique senders",
	"total_txn":              "total number of transactions",
	"in_out_ratio":           "ratio of incoming to outgoing transactions",
	"total_value_in":         "total amount received",
	"outNeighborNum":         "number of unique recipients",
	"avg_gas_used":           "average transaction complexity",
	"giftinTxn_ratio":        "proportion of token transfers",
	"miningTxnNum":           "number of mining transactions",
	"avg_value_out":          "average amount sent",
	"turnover_ratio":         "frequency of fund movements",
	"out_txn":                "number of outgoing transactions",
	"gas_price":              "transaction fee",
	"gas_used":               "transaction complexity",
	"value":                  "transaction amount",
	"num_functions":          "number of contract interactions",
	"has_suspicious_func":    "presence of suspicious functions",
	"nft_num_owners":         "number of NFT owners",
	"nft_total_sales":        "total NFT sales volume",
	"token_value":            "token transfer value",
	"nft_total_volume":       "total NFT trading volume",
	"is_mint":                "is a new token creation",
	"high_gas":               "high transaction fee",
	"nft_average_price":      "average NFT price",
	"nft_floor_price":        "minimum NFT price",
	"nft_market_cap":         "total NFT market value",
	"is_zero_value":          "zero-value transaction",
}

// ReadableName maps a feature name to a short description.
func ReadableName(feature string) string {
	if s, ok := readableNames[feature]; ok {
		return s
	}
	return feature
}

// TemplateNarrator explains the top feature without calling out to an LLM.
type TemplateNarrator struct{}

// Narrate implements Narrator.
func (TemplateNarrator) Narrate(
	_ context.Context,
	task domain.Task,
	probability float64,
	top []explain.Contribution,
) (*Narration, error) {
	if len(top) == 0 {
		return &Narration{
			FeatureName:  "Unknown",
			FeatureValue: "0",
			Reason:       "No features available for analysis",
		}, nil
	}
	f := top[0]
	value := f.FeatureValue
	if f.RawValue != nil {
		value = *f.RawValue
	}
	name := ReadableName(f.FeatureName)
	formatted := FormatFeatureValue(f.FeatureName, value)
	impact := "decreasing risk"
	if f.Importance > 0 {
		impact = "increasing risk"
	}
	return &Narration{
		FeatureName:  name,
		FeatureValue: formatted,
		Reason: fmt.Sprintf("This %s value (%s) is %s for this %s (%s risk, %.1f%%).",
			name, formatted, impact, task, RiskLabel(probability), probability*100),
	}, nil
}

// RiskLabel buckets a probability.
func RiskLabel(p float64) string {
	switch {
	case p > 0.7:
		return "HIGH"
	case p > 0.4:
		return "MEDIUM"
	}
	return "LOW"
}

// FormatFeatureValue renders a raw feature value with units.
func FormatFeatureValue(feature string, v float64) string {
	if v < 0 {
		v = 0
	}
	d := decimal.NewFromFloat(v)
	switch {
	case strings.Contains(feature, "gas_price"):
		gwei := d.Shift(-9)
		if gwei.GreaterThanOrEqual(decimal.NewFromInt(1000)) {
			return gwei.Shift(-3).StringFixed(2) + "k gwei"
		}
		return gwei.StringFixed(2) + " gwei"
	case strings.Contains(feature, "gas_used"):
		switch {
		case v >= 1_000_000:
			return d.Shift(-6).StringFixed(2) + "M"
		case v >= 1000:
			return d.Shift(-3).StringFixed(2) + "k"
		}
		return d.Truncate(0).String()
	case feature == "value" || strings.HasPrefix(feature, "avg_value") || strings.HasPrefix(feature, "total_value"):
		if v == 0 {
			return "0 ETH"
		}
		return d.Shift(-18).StringFixed(4) + " ETH"
	case strings.HasPrefix(feature, "is_") || strings.HasPrefix(feature, "has_"):
		if v > 0 {
			return "yes"
		}
		return "no"
	}
	return d.StringFixed(2)
}
