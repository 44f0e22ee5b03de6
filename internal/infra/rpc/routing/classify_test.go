package routing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/vietddude/scamradar/internal/infra/rpc/provider"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorAction
	}{
		{&provider.StatusError{Code: 429}, ActionFailover},
		{&provider.StatusError{Code: 403}, ActionFailover},
		{fmt.Errorf("wrapped: %w", &provider.StatusError{Code: 401}), ActionFailover},
		{&provider.StatusError{Code: 400}, ActionFatal},
		{&provider.StatusError{Code: 503}, ActionRetry},
		{errors.New("NOTOK: Missing/Invalid API Key"), ActionFailover},
		{errors.New("NOTOK: Max rate limit reached"), ActionFailover},
		{errors.New("NOTOK: Error! Invalid address format"), ActionFatal},
		{fmt.Errorf("call: %w", context.DeadlineExceeded), ActionRetry},
		{errors.New("connection reset by peer"), ActionRetry},
	}
	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.want {
			t.Errorf("ClassifyError(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
