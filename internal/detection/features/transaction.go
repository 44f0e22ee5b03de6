package features

import (
	"math"
	"sort"
	"strings"

	"github.com/vietddude/scamradar/internal/core/domain"
)

// HighGasThreshold classifies a lone transaction as high-gas.
const HighGasThreshold = 100_000

// suspiciousPatterns are matched case-insensitively as substrings of the
// decoded call names.
var suspiciousPatterns = []string{
	"setapprovalforall",
	"approve",
	"transferfrom",
	"safetransferfrom",
	"batchtransfer",
	"multitransfer",
	"permit",
	"delegatecall",
}

// Transaction computes the transaction-level vector over records. Most
// features are means; flags become fractions. Empty input yields zeros.
func Transaction(records []*domain.TransactionRecord) []float64 {
	n := len(records)
	if n == 0 {
		return make([]float64, Dim)
	}

	var (
		gasPrice, gasUsed, value, numFuncs float64
		owners, sales, tokenValue, volume  float64
		avgPrice, floor, marketCap         float64
		suspicious, mints, zeroValue       int
	)
	gasList := make([]float64, n)

	for i, r := range records {
		gasPrice += r.GasPriceFloat()
		gasUsed += float64(r.GasUsed)
		gasList[i] = float64(r.GasUsed)
		value += r.ValueFloat()
		numFuncs += float64(len(r.FunctionSelectors))
		if IsSuspicious(r.FunctionSelectors) {
			suspicious++
		}
		owners += r.NFT.NumOwners
		sales += r.NFT.TotalSales
		tokenValue += r.TokenValueFloat()
		volume += r.NFT.TotalVolume
		if r.IsMint() {
			mints++
		}
		avgPrice += r.NFT.AveragePrice
		floor += r.NFT.FloorPrice
		marketCap += r.NFT.MarketCap
		if r.IsZeroValue() {
			zeroValue++
		}
	}

	fn := float64(n)
	return []float64{
		gasPrice / fn,
		gasUsed / fn,
		value / fn,
		numFuncs / fn,
		float64(suspicious) / fn,
		owners / fn,
		sales / fn,
		tokenValue / fn,
		volume / fn,
		float64(mints) / fn,
		highGas(gasList),
		avgPrice / fn,
		floor / fn,
		marketCap / fn,
		float64(zeroValue) / fn,
	}
}

// IsSuspicious reports whether any call name contains a suspicious pattern.
func IsSuspicious(calls []string) bool {
	for _, c := range calls {
		lc := strings.ToLower(c)
		for _, p := range suspiciousPatterns {
			if strings.Contains(lc, p) {
				return true
			}
		}
	}
	return false
}

// highGas uses a fixed threshold for one record and, for several, the
// fraction strictly above the 75th percentile of the set.
func highGas(gas []float64) float64 {
	switch len(gas) {
	case 0:
		return 0
	case 1:
		if gas[0] > HighGasThreshold {
			return 1
		}
		return 0
	}

	p75 := percentile(gas, 75)
	above := 0
	for _, g := range gas {
		if g > p75 {
			above++
		}
	}
	return float64(above) / float64(len(gas))
}

// percentile interpolates linearly between closest ranks.
func percentile(xs []float64, p float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
