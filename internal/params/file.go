// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package params

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/survey-engine/pkg/types"
)

// File is the on-disk record of one extraction. Saving it lets a search be
// re-run, or the parameters hand-edited, without calling the model again.
type File struct {
	Query       string                `yaml:"query,omitempty"`
	Model       string                `yaml:"model,omitempty"`
	ExtractedAt time.Time             `yaml:"extracted_at"`
	Parameters  types.QueryParameters `yaml:"parameters"`
	Raw         string                `yaml:"raw,omitempty"`
}

// WriteFile saves f as YAML at path.
func WriteFile(path string, f File) error {
	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("marshaling parameters file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile loads a parameters file and normalizes its year range.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading parameters file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing parameters file: %w", err)
	}
	f.Parameters.YearRange = types.YearSet(f.Parameters.YearRange)
	return &f, nil
}
