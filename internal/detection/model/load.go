package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// Load reads a weights artifact and builds the model.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weights: %w", err)
	}
	var w Weights
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse weights: %w", err)
	}
	m, err := New(w)
	if err != nil {
		return nil, fmt.Errorf("invalid weights %s: %w", path, err)
	}
	return m, nil
}

// LoadFeatureNames reads a feature-importance artifact. Entries may be plain
// names or objects carrying a "feature" key.
func LoadFeatureNames(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feature names: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse feature names: %w", err)
	}

	names := make([]string, 0, len(raw))
	for i, r := range raw {
		var name string
		if err := json.Unmarshal(r, &name); err == nil {
			names = append(names, name)
			continue
		}
		var entry struct {
			Feature string `json:"feature"`
		}
		if err := json.Unmarshal(r, &entry); err != nil || entry.Feature == "" {
			return nil, fmt.Errorf("feature names entry %d: unsupported format", i)
		}
		names = append(names, entry.Feature)
	}
	return names, nil
}
