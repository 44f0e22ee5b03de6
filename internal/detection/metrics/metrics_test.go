package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vietddude/scamradar/internal/infra/rpc/provider"
)

func TestUpstreamObserve(t *testing.T) {
	before := testutil.ToFloat64(UpstreamCalls.WithLabelValues("etherscan", "tokentx"))
	errBefore := testutil.ToFloat64(UpstreamErrors.WithLabelValues("etherscan", "tokentx", "429"))

	Upstream{}.Observe("etherscan", "tokentx", nil, time.Now())
	Upstream{}.Observe("etherscan", "tokentx", &provider.StatusError{Code: 429}, time.Now())

	if got := testutil.ToFloat64(UpstreamCalls.WithLabelValues("etherscan", "tokentx")) - before; got != 2 {
		t.Errorf("Expected 2 calls, got %v", got)
	}
	if got := testutil.ToFloat64(UpstreamErrors.WithLabelValues("etherscan", "tokentx", "429")) - errBefore; got != 1 {
		t.Errorf("Expected 1 error, got %v", got)
	}
}

func TestUpstreamObserve_TransportError(t *testing.T) {
	before := testutil.ToFloat64(UpstreamErrors.WithLabelValues("rarible", "data", "0"))
	Upstream{}.Observe("rarible", "data", errors.New("dial tcp: refused"), time.Now())
	if got := testutil.ToFloat64(UpstreamErrors.WithLabelValues("rarible", "data", "0")) - before; got != 1 {
		t.Errorf("Expected 1 transport error, got %v", got)
	}
}

func TestEnrichment(t *testing.T) {
	before := testutil.ToFloat64(CollectionLookups.WithLabelValues("hit"))
	fallbacks := testutil.ToFloat64(USDFallbacks)

	Enrichment{}.CollectionLookup("hit")
	Enrichment{}.USDFallback()

	if got := testutil.ToFloat64(CollectionLookups.WithLabelValues("hit")) - before; got != 1 {
		t.Errorf("Expected 1 hit, got %v", got)
	}
	if got := testutil.ToFloat64(USDFallbacks) - fallbacks; got != 1 {
		t.Errorf("Expected 1 fallback, got %v", got)
	}
}
