package routing

import (
	"context"
	"errors"
	"strings"

	"github.com/vietddude/scamradar/internal/infra/rpc/provider"
)

// ErrorAction determines how to handle an upstream error.
type ErrorAction int

const (
	// ActionRetry marks transient failures (network, 5xx, timeouts).
	ActionRetry ErrorAction = iota
	// ActionFailover marks key-specific failures; the next call rotates keys.
	ActionFailover
	// ActionFatal marks request errors that no key can fix.
	ActionFatal
)

func (a ErrorAction) String() string {
	switch a {
	case ActionFailover:
		return "failover"
	case ActionFatal:
		return "fatal"
	default:
		return "retry"
	}
}

// ClassifyError determines the action for a given error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ActionRetry
	}

	switch code := provider.StatusCode(err); {
	case code == 401 || code == 403 || code == 429:
		return ActionFailover
	case code == 400 || code == 404 || code == 422:
		return ActionFatal
	case code >= 500:
		return ActionRetry
	}

	if isRateLimit(err) {
		return ActionFailover
	}
	sLower := strings.ToLower(err.Error())
	if strings.Contains(sLower, "invalid api key") ||
		strings.Contains(sLower, "missing/invalid api key") ||
		strings.Contains(sLower, "quota") ||
		strings.Contains(sLower, "unauthorized") {
		return ActionFailover
	}
	if strings.Contains(sLower, "invalid address") ||
		strings.Contains(sLower, "invalid parameter") ||
		strings.Contains(sLower, "error! invalid") {
		return ActionFatal
	}

	return ActionRetry
}

func isRateLimit(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "rate limit") || strings.Contains(s, "too many requests")
}
