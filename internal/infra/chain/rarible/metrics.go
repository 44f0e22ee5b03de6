package rarible

// Lookup outcomes reported to Metrics.
const (
	OutcomeHit          = "hit"
	OutcomeCacheHit     = "cache_hit"
	OutcomeNotFound     = "not_found"
	OutcomeNegativeHit  = "negative_cached"
	OutcomeError        = "error"
	OutcomeTimeout      = "timeout"
	OutcomeSkippedERC20 = "skipped_erc20"
)

// Metrics receives enrichment counters.
type Metrics interface {
	CollectionLookup(outcome string)
	USDFallback()
}

type nopMetrics struct{}

func (nopMetrics) CollectionLookup(string) {}
func (nopMetrics) USDFallback()            {}
