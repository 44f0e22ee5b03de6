package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// HTTPProvider implements Provider for REST APIs queried with GET.
type HTTPProvider struct {
	name       string
	baseURL    string
	httpClient *http.Client
	header     http.Header
	metrics    Metrics

	mu           sync.RWMutex
	health       HealthStatus
	totalLatency time.Duration
	successCount int
	failureCount int
	requestCount int

	Monitor *ProviderMonitor
}

// NewHTTPProvider creates a new HTTP-based REST provider.
func NewHTTPProvider(name, baseURL string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		header: http.Header{"Accept": []string{"application/json"}},
		health: HealthStatus{
			Available:     true,
			LastSuccessAt: time.Now(),
		},
		Monitor: NewProviderMonitor(),
	}
}

// WithMetrics attaches a call observer.
func (p *HTTPProvider) WithMetrics(m Metrics) *HTTPProvider {
	p.metrics = m
	return p
}

// Get issues GET {baseURL}/{path}?{query} with the given extra headers and
// returns the raw body of a 2xx response. Non-2xx responses yield a
// *StatusError. Throttling is recorded on the monitor for health reporting
// and never refuses a call; per-key cooldown belongs to the caller.
func (p *HTTPProvider) Get(
	ctx context.Context,
	path string,
	query url.Values,
	header http.Header,
) (body []byte, err error) {
	start := time.Now()
	if p.metrics != nil {
		defer func() {
			p.metrics.Observe(p.name, operationName(path, query), err, start)
		}()
	}

	endpoint := p.baseURL
	if path != "" {
		endpoint += "/" + strings.TrimLeft(path, "/")
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		p.recordFailure()
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range p.header {
		req.Header[k] = vs
	}
	for k, vs := range header {
		req.Header[k] = vs
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.recordFailure()
		return nil, fmt.Errorf("%s call: %w", p.name, err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		p.recordFailure()
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		p.Monitor.RecordThrottle(resp.StatusCode, resp.Header.Get("Retry-After"))
		p.recordFailure()
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	case resp.StatusCode == http.StatusForbidden:
		p.Monitor.RecordThrottle(resp.StatusCode, "")
		p.recordFailure()
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	case resp.StatusCode == http.StatusNotFound:
		// A 404 is an answer, not a transport failure.
		p.recordSuccess(time.Since(start))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		p.recordFailure()
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	if p.Monitor.DetectThrottlePattern(string(body)) {
		p.Monitor.RecordThrottle(http.StatusTooManyRequests, "")
	}

	p.recordSuccess(time.Since(start))
	return body, nil
}

// GetName returns the provider's name.
func (p *HTTPProvider) GetName() string {
	return p.name
}

// GetHealth returns the provider's health status.
func (p *HTTPProvider) GetHealth() HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h := p.health
	stats := p.Monitor.GetStats()
	h.MonitorStats = &stats
	return h
}

// IsAvailable checks if the provider is available.
func (p *HTTPProvider) IsAvailable() bool {
	status := p.Monitor.CheckProviderStatus()
	return status == StatusHealthy || status == StatusDegraded
}

// Close cleans up resources.
func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

func (p *HTTPProvider) recordSuccess(latency time.Duration) {
	p.Monitor.RecordRequest(latency)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.successCount++
	p.requestCount++
	p.totalLatency += latency
	p.health.LastSuccessAt = time.Now()
	p.health.Available = true

	p.health.ErrorRate = float64(p.failureCount) / float64(p.requestCount)
	p.health.Latency = p.totalLatency / time.Duration(p.successCount)
}

func (p *HTTPProvider) recordFailure() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failureCount++
	p.requestCount++
	p.health.LastFailureAt = time.Now()
	p.health.ErrorRate = float64(p.failureCount) / float64(p.requestCount)

	if p.health.ErrorRate > 0.5 {
		p.health.Available = false
	}
}

// operationName keeps metric label cardinality bounded.
func operationName(path string, query url.Values) string {
	if action := query.Get("action"); action != "" {
		return action
	}
	if i := strings.Index(path, "/"); i > 0 {
		return path[:i]
	}
	return path
}
