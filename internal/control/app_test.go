package control

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/scamradar/internal/core/config"
	"github.com/vietddude/scamradar/internal/core/domain"
	"github.com/vietddude/scamradar/internal/detection/features"
	"github.com/vietddude/scamradar/internal/detection/model/modeltest"
	"github.com/vietddude/scamradar/internal/detection/service"
)

const (
	active  = "0x1111111111111111111111111111111111111111"
	silent  = "0x9999999999999999999999999999999999999999"
	nftAddr = "0x3333333333333333333333333333333333333333"
	tknAddr = "0x4444444444444444444444444444444444444444"
)

func transferRow(hash, from, to, contract, ts string) map[string]string {
	return map[string]string{
		"hash":            hash,
		"from":            from,
		"to":              to,
		"value":           "1000000000000000",
		"gasPrice":        "20000000000",
		"gasUsed":         "65000",
		"timeStamp":       ts,
		"contractAddress": contract,
		"blockNumber":     "100",
		"tokenDecimal":    "18",
	}
}

func newExplorer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		resp := map[string]any{"status": "0", "message": "No transactions found", "result": []any{}}
		if strings.EqualFold(q.Get("address"), active) {
			switch q.Get("action") {
			case "tokentx":
				resp = map[string]any{"status": "1", "message": "OK", "result": []any{
					transferRow("0xa1", active, "0x2222222222222222222222222222222222222222", tknAddr, "1700000300"),
				}}
			case "tokennfttx":
				resp = map[string]any{"status": "1", "message": "OK", "result": []any{
					transferRow("0xb1", "0x2222222222222222222222222222222222222222", active, nftAddr, "1700000200"),
					transferRow("0xb2", active, "0x2222222222222222222222222222222222222222", nftAddr, "1700000100"),
				}}
			}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newCollections(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !strings.Contains(r.URL.Path, "ETHEREUM:"+nftAddr) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"owners": 40, "items": 400, "floorPrice": [{"currency": "ETH", "value": 0.3}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, explorer, collections string) *config.AppConfig {
	t.Helper()
	weights, err := json.Marshal(modeltest.Weights(features.Dim, 8, 3))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "weights.json")
	require.NoError(t, os.WriteFile(path, weights, 0o600))

	cfg := config.Default()
	cfg.Model.Weights = path
	cfg.Etherscan.BaseURL = explorer
	cfg.Etherscan.Keys = []string{"e1", "e2", "e3"}
	cfg.Rarible.BaseURL = collections
	cfg.Rarible.Keys = []string{"r1"}
	return cfg
}

func TestApp_DetectAccountEndToEnd(t *testing.T) {
	var hits atomic.Int32
	cfg := testConfig(t, newExplorer(t).URL, newCollections(t, &hits).URL)

	app, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()

	res, err := app.Service().DetectAccount(context.Background(), service.AccountRequest{
		Address:        active,
		Explain:        true,
		ExplainWithLLM: true,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ModeNormal, res.Mode)
	require.NotNil(t, res.AccountProbability)
	assert.Equal(t, 3, res.TransactionsCount)
	assert.Equal(t, int32(1), hits.Load(), "one lookup for the shared NFT contract")

	require.NotNil(t, res.Explanations)
	assert.Len(t, res.Explanations.Account.TopFeatures, 5)
	require.NotNil(t, res.LLMExplanations)
	assert.NotEmpty(t, res.LLMExplanations.Account.Reason)

	// the same contract again is served from the positive cache
	_, err = app.Service().DetectAccount(context.Background(), service.AccountRequest{Address: active})
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	history, err := app.Service().History(context.Background(), active, 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestApp_NoData(t *testing.T) {
	var hits atomic.Int32
	cfg := testConfig(t, newExplorer(t).URL, newCollections(t, &hits).URL)

	app, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()

	res, err := app.Service().DetectAccount(context.Background(), service.AccountRequest{Address: silent})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeNoData, res.Mode)
	assert.Nil(t, res.AccountProbability)
	assert.Equal(t, service.NoDataMessage, res.Message)
	assert.Zero(t, hits.Load())
}

func TestNewApp_Errors(t *testing.T) {
	var hits atomic.Int32
	explorer, collections := newExplorer(t).URL, newCollections(t, &hits).URL

	cfg := testConfig(t, explorer, collections)
	cfg.Model.Weights = filepath.Join(t.TempDir(), "missing.json")
	_, err := NewApp(context.Background(), cfg)
	assert.Error(t, err)

	cfg = testConfig(t, explorer, collections)
	cfg.Explain.Narrator = "gpt"
	_, err = NewApp(context.Background(), cfg)
	assert.Error(t, err)

	cfg = testConfig(t, explorer, collections)
	cfg.Explain.Strategy = "lime"
	_, err = NewApp(context.Background(), cfg)
	assert.Error(t, err)
}

func TestFeatureNames(t *testing.T) {
	assert.Equal(t, features.AccountNames, featureNames("", features.AccountNames))

	path := filepath.Join(t.TempDir(), "names.json")
	require.NoError(t, os.WriteFile(path, []byte(`["a","b"]`), 0o600))
	assert.Equal(t, features.AccountNames, featureNames(path, features.AccountNames), "length mismatch falls back")
}
