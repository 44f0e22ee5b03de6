package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/scamradar/internal/infra/rpc/routing"
)

// PlaceholderKey is used when no API key is configured.
const PlaceholderKey = routing.PlaceholderKey

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if raw := os.Getenv("ETHERSCAN_KEYS"); raw != "" {
		cfg.Etherscan.Keys = ParseKeys(raw)
	}
	if raw := os.Getenv("RARIBLE_KEYS"); raw != "" {
		cfg.Rarible.Keys = ParseKeys(raw)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *AppConfig {
	var cfg AppConfig
	applyDefaults(&cfg)
	return &cfg
}

// ParseKeys accepts a JSON list or a comma separated list of keys.
func ParseKeys(raw string) []string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		var keys []string
		if err := json.Unmarshal([]byte(raw), &keys); err == nil {
			return compact(keys)
		}
	}
	return compact(strings.Split(raw, ","))
}

func compact(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	e := &cfg.Etherscan
	if e.BaseURL == "" {
		e.BaseURL = "https://api.etherscan.io/v2/api"
	}
	if e.ChainID == 0 {
		e.ChainID = 1
	}
	if e.Timeout == 0 {
		e.Timeout = 15 * time.Second
	}
	if e.MaxPerCategory == 0 {
		e.MaxPerCategory = 10
	}
	if e.MaxTotal == 0 {
		e.MaxTotal = 10
	}
	if len(e.Keys) == 0 {
		e.Keys = []string{PlaceholderKey}
	}

	r := &cfg.Rarible
	if r.BaseURL == "" {
		r.BaseURL = "https://api.rarible.org/v0.1"
	}
	if r.Blockchain == "" {
		r.Blockchain = "ETHEREUM"
	}
	if r.Timeout == 0 {
		r.Timeout = 10 * time.Second
	}
	if r.EnrichTimeout == 0 {
		r.EnrichTimeout = 3 * time.Second
	}
	if r.USDPerETH == 0 {
		r.USDPerETH = 2000
	}
	if r.USDFallback == nil {
		enabled := true
		r.USDFallback = &enabled
	}
	if len(r.Keys) == 0 {
		r.Keys = []string{PlaceholderKey}
	}

	if cfg.Model.Weights == "" {
		cfg.Model.Weights = "models/mtl_mlp.json"
	}

	x := &cfg.Explain
	if x.Strategy == "" {
		x.Strategy = "gradient"
	}
	if x.BackgroundSize == 0 {
		x.BackgroundSize = 100
	}
	if x.Permutations == 0 {
		x.Permutations = 16
	}
	if x.Tolerance == 0 {
		x.Tolerance = 1e-3
	}
	if x.Narrator == "" {
		x.Narrator = "template"
	}
}
