package features

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/vietddude/scamradar/internal/core/domain"
)

const secondsPerDay = 24 * 3600

// Account computes the account-level vector of address over records.
// Ratios use a denominator floor of 1.
func Account(address string, records []*domain.TransactionRecord) []float64 {
	addr := strings.ToLower(address)

	var in, out []*domain.TransactionRecord
	for _, r := range records {
		if strings.ToLower(r.From) == addr {
			out = append(out, r)
		}
		if strings.ToLower(r.To) == addr {
			in = append(in, r)
		}
	}

	var (
		gasPrices  = make([]float64, 0, len(records))
		gasUsed    = make([]float64, 0, len(records))
		timestamps = make([]int64, 0, len(records))
		volume     float64
		mining     int
	)
	for _, r := range records {
		gasPrices = append(gasPrices, r.GasPriceFloat())
		gasUsed = append(gasUsed, float64(r.GasUsed))
		if r.Timestamp > 0 {
			timestamps = append(timestamps, r.Timestamp)
		}
		volume += r.ValueFloat()
		if r.IsMint() {
			mining++
		}
	}

	var valueIn float64
	senders := make(map[string]struct{})
	gifts := 0
	for _, r := range in {
		valueIn += r.ValueFloat()
		if r.From != "" {
			senders[strings.ToLower(r.From)] = struct{}{}
		}
		if r.IsZeroValue() && r.HasTokenValue() {
			gifts++
		}
	}

	outValues := make([]float64, 0, len(out))
	recipients := make(map[string]struct{})
	for _, r := range out {
		outValues = append(outValues, r.ValueFloat())
		if r.To != "" {
			recipients[strings.ToLower(r.To)] = struct{}{}
		}
	}

	span, gapStd := timing(timestamps)

	return []float64{
		mean(gasPrices),
		span,
		gapStd,
		volume,
		float64(len(senders)),
		float64(len(records)),
		float64(len(in)) / floorOne(len(out)),
		valueIn,
		float64(len(recipients)),
		mean(gasUsed),
		float64(gifts) / floorOne(len(in)),
		float64(mining),
		mean(outValues),
		float64(len(out)) / floorOne(len(in)),
		float64(len(out)),
	}
}

// timing returns the activity span in days and the population standard
// deviation of gaps between sorted timestamps. Both are zero with fewer
// than two timestamps.
func timing(ts []int64) (spanDays, gapStd float64) {
	if len(ts) < 2 {
		return 0, 0
	}
	sorted := append([]int64(nil), ts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	spanDays = float64(sorted[len(sorted)-1]-sorted[0]) / secondsPerDay

	gaps := make([]float64, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		gaps[i-1] = float64(sorted[i] - sorted[i-1])
	}
	return spanDays, stddev(gaps)
}

func floorOne(n int) float64 {
	return float64(max(n, 1))
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// stddev is the population standard deviation.
func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	_, std := stat.PopMeanStdDev(xs, nil)
	return std
}
