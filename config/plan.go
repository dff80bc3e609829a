// Package config loads run plans.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-matrix/matrix"
	"github.com/ethereum-optimism/infra/op-matrix/types"
)

// Plan describes one named run: what to select and how to expand it.
type Plan struct {
	Name         string                `yaml:"name"`
	Platform     string                `yaml:"platform"`
	Environment  string                `yaml:"environment"`
	Parallelism  int                   `yaml:"parallelism"`
	Retries      int                   `yaml:"retries"`
	Capabilities []string              `yaml:"capabilities"`
	Tests        [][]string            `yaml:"tests"`
	Variants     matrix.StaticVariants `yaml:"variants"`
	// Suites holds free-form settings handed to suites, keyed by pack.
	Suites map[string]map[string]string `yaml:"suites,omitempty"`
}

// LoadPlan reads and validates a plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	plan, err := ParsePlan(data)
	if err != nil {
		return nil, fmt.Errorf("invalid plan file %s: %w", path, err)
	}
	return plan, nil
}

// ParsePlan decodes a YAML plan and validates it.
func ParsePlan(data []byte) (*Plan, error) {
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConfiguration, err)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Validate catches configuration errors before any work item is built.
func (p *Plan) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: plan name is required", types.ErrConfiguration)
	}
	if p.Parallelism < 0 {
		return fmt.Errorf("%w: parallelism %d must not be negative", types.ErrConfiguration, p.Parallelism)
	}
	if p.Retries < 0 {
		return fmt.Errorf("%w: retries %d must not be negative", types.ErrConfiguration, p.Retries)
	}
	if len(p.Tests) == 0 {
		return fmt.Errorf("%w: plan %q selects no tests", types.ErrConfiguration, p.Name)
	}
	for i, entry := range p.Tests {
		if len(entry) == 0 {
			return fmt.Errorf("%w: tests entry %d is empty", types.ErrConfiguration, i)
		}
	}
	return p.Variants.Validate()
}

// SuiteSetting returns a per-pack setting, or def when unset.
func (p *Plan) SuiteSetting(pack, key, def string) string {
	if v, ok := p.Suites[pack][key]; ok && v != "" {
		return v
	}
	return def
}
