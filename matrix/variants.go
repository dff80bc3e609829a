package matrix

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-matrix/types"
)

// StaticVariants is a VariantLookup keyed by pack, then suite.
type StaticVariants map[string]map[string][]types.Variant

var _ VariantLookup = StaticVariants(nil)

func (s StaticVariants) Variants(pack, suite string) []types.Variant {
	return s[pack][suite]
}

// Merge copies entries from other, replacing suites that are present in both.
func (s StaticVariants) Merge(other StaticVariants) StaticVariants {
	out := make(StaticVariants, len(s)+len(other))
	for _, src := range []StaticVariants{s, other} {
		for pack, suites := range src {
			if out[pack] == nil {
				out[pack] = make(map[string][]types.Variant)
			}
			for suite, variants := range suites {
				out[pack][suite] = variants
			}
		}
	}
	return out
}

// LoadVariantsFile reads a YAML document shaped as pack -> suite -> variants.
func LoadVariantsFile(path string) (StaticVariants, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read variants file: %w", err)
	}
	var variants StaticVariants
	if err := yaml.Unmarshal(data, &variants); err != nil {
		return nil, fmt.Errorf("failed to parse variants file %s: %w", path, err)
	}
	if err := variants.Validate(); err != nil {
		return nil, fmt.Errorf("invalid variants file %s: %w", path, err)
	}
	return variants, nil
}

// Validate rejects untitled variants and duplicate titles within a suite.
func (s StaticVariants) Validate() error {
	for pack, suites := range s {
		for suite, variants := range suites {
			seen := make(map[string]bool, len(variants))
			for i, v := range variants {
				if v.Title == "" {
					return fmt.Errorf("%w: %s/%s variant %d has no title", types.ErrConfiguration, pack, suite, i)
				}
				if seen[v.Title] {
					return fmt.Errorf("%w: %s/%s has duplicate variant %q", types.ErrConfiguration, pack, suite, v.Title)
				}
				seen[v.Title] = true
			}
		}
	}
	return nil
}
