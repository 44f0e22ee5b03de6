package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/scamradar/internal/core/domain"
	"github.com/vietddude/scamradar/internal/detection/explain"
)

func TestFormatFeatureValue(t *testing.T) {
	cases := []struct {
		feature string
		value   float64
		want    string
	}{
		{"gas_price", 2e10, "20.00 gwei"},
		{"avg_gas_price", 3.5e12, "3.50k gwei"},
		{"gas_used", 21000, "21.00k"},
		{"avg_gas_used", 2_500_000, "2.50M"},
		{"gas_used", 500, "500"},
		{"value", 0, "0 ETH"},
		{"value", 1.5e18, "1.5000 ETH"},
		{"total_value_in", 2e17, "0.2000 ETH"},
		{"is_zero_value", 1, "yes"},
		{"has_suspicious_func", 0, "no"},
		{"in_out_ratio", 0.125, "0.13"},
		{"total_txn", -4, "0.00"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatFeatureValue(tc.feature, tc.value), tc.feature)
	}
}

func TestRiskLabel(t *testing.T) {
	assert.Equal(t, "HIGH", RiskLabel(0.71))
	assert.Equal(t, "MEDIUM", RiskLabel(0.7))
	assert.Equal(t, "LOW", RiskLabel(0.4))
}

func TestTemplateNarrator(t *testing.T) {
	raw := 1.0
	top := []explain.Contribution{
		{FeatureName: "has_suspicious_func", Importance: 0.4, FeatureValue: 3.2, RawValue: &raw},
		{FeatureName: "gas_price", Importance: -0.1},
	}

	n, err := TemplateNarrator{}.Narrate(context.Background(), domain.TaskTransaction, 0.9, top)
	require.NoError(t, err)
	assert.Equal(t, "presence of suspicious functions", n.FeatureName)
	assert.Equal(t, "yes", n.FeatureValue)
	assert.Equal(t,
		"This presence of suspicious functions value (yes) is increasing risk for this transaction (HIGH risk, 90.0%).",
		n.Reason)

	n, err = TemplateNarrator{}.Narrate(context.Background(), domain.TaskAccount, 0.1, nil)
	require.NoError(t, err)
	assert.Equal(t, "Unknown", n.FeatureName)
}

func TestReadableName(t *testing.T) {
	assert.Equal(t, "account age in days", ReadableName("activity_duration_days"))
	assert.Equal(t, "feature_3", ReadableName("feature_3"))
}
