// Package matrix turns resolved descriptors into the flat list of work items
// a run executes.
package matrix

import (
	"fmt"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-matrix/metrics"
	"github.com/ethereum-optimism/infra/op-matrix/selection"
	"github.com/ethereum-optimism/infra/op-matrix/types"
)

// VariantLookup returns the declared variants of a suite. An empty result
// means the suite runs with the implicit default variant only.
type VariantLookup interface {
	Variants(pack, suite string) []types.Variant
}

// Builder holds the run-wide inputs of the cross product.
type Builder struct {
	Platform     string
	Capabilities []string
	Environment  string
	ResultDir    string
	Variants     VariantLookup
	Log          log.Logger
}

// Stats describes what a Build call produced.
type Stats struct {
	Items    int
	Excluded int
}

// Build creates one work item per capability, descriptor and non-excluded
// variant, in that nesting order.
func (b *Builder) Build(descriptors []types.Descriptor) ([]*types.WorkItem, Stats) {
	logger := b.Log
	if logger == nil {
		logger = log.New()
	}

	capabilities := b.Capabilities
	if len(capabilities) == 0 {
		capabilities = []string{types.NoCapability}
	}

	var (
		items []*types.WorkItem
		stats Stats
	)
	for _, capability := range capabilities {
		for _, desc := range descriptors {
			for _, variant := range b.variantsFor(desc) {
				if variant.ExcludedFrom(b.Environment) {
					logger.Debug("Variant excluded for environment",
						"item", desc.String(), "variant", variant.Title, "environment", b.Environment)
					metrics.RecordExcluded(desc, b.Environment)
					stats.Excluded++
					continue
				}
				items = append(items, types.NewWorkItem(types.WorkItemSpec{
					Descriptor:     desc,
					Platform:       b.Platform,
					Capability:     capability,
					ConfigTitle:    variant.Title,
					ConfigValue:    variant.Value,
					ProductionSafe: variant.ProductionSafe,
					ScreenshotDir:  ScreenshotDir(b.ResultDir, desc),
				}))
			}
		}
	}
	stats.Items = len(items)

	logger.Info("Built work list",
		"items", stats.Items,
		"excluded", stats.Excluded,
		"capabilities", len(capabilities),
		"descriptors", len(descriptors))
	return items, stats
}

func (b *Builder) variantsFor(desc types.Descriptor) []types.Variant {
	if b.Variants == nil {
		return []types.Variant{types.DefaultVariant()}
	}
	variants := b.Variants.Variants(desc.Pack, desc.Suite)
	if len(variants) == 0 {
		return []types.Variant{types.DefaultVariant()}
	}
	return variants
}

// Expand resolves a selection and builds its work list. Selection errors are
// returned before any work item is created.
func (b *Builder) Expand(inv selection.Inventory, entries [][]string) ([]*types.WorkItem, Stats, error) {
	descriptors, err := selection.Resolve(inv, entries)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("failed to resolve selection: %w", err)
	}
	items, stats := b.Build(descriptors)
	return items, stats, nil
}

// ScreenshotsDirname keeps suite artifacts apart from the run's log files.
const ScreenshotsDirname = "screenshots"

// ScreenshotDir is where artifacts for items of a suite are written.
func ScreenshotDir(resultDir string, desc types.Descriptor) string {
	return filepath.Join(resultDir, ScreenshotsDirname, desc.Pack, desc.Suite)
}
