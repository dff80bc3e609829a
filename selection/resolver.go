// Package selection expands the test selection of a run plan into concrete
// case descriptors.
package selection

import (
	"fmt"
	"strings"

	"github.com/ethereum-optimism/infra/op-matrix/types"
)

// Inventory answers the two queries needed to expand wildcards.
type Inventory interface {
	Packs() []string
	Suites(pack string) ([]string, error)
	Cases(pack, suite string) ([]string, error)
}

// MalformedSelectionError is returned for selection entries whose shape is
// ambiguous or unsupported.
type MalformedSelectionError struct {
	Entry  []string
	Reason string
}

func (e *MalformedSelectionError) Error() string {
	return fmt.Sprintf("malformed selection [%s]: %s", strings.Join(e.Entry, ", "), e.Reason)
}

func (e *MalformedSelectionError) Unwrap() error {
	return types.ErrConfiguration
}

// Resolve expands entries in order. Duplicates are kept.
//
//	["*"]                 every case of every suite of every pack
//	[pack, "*"]           every case of every suite of pack
//	[pack, suite, "*"]    every case of the suite
//	[pack, suite, case]   exactly that case
func Resolve(inv Inventory, entries [][]string) ([]types.Descriptor, error) {
	var out []types.Descriptor
	for _, entry := range entries {
		descs, err := resolveEntry(inv, entry)
		if err != nil {
			return nil, err
		}
		out = append(out, descs...)
	}
	return out, nil
}

func resolveEntry(inv Inventory, entry []string) ([]types.Descriptor, error) {
	switch len(entry) {
	case 1:
		if entry[0] != types.Wildcard {
			return nil, malformed(entry, "a pack alone is ambiguous, use [pack, \"*\"]")
		}
		var out []types.Descriptor
		for _, pack := range inv.Packs() {
			descs, err := expandPack(inv, pack)
			if err != nil {
				return nil, err
			}
			out = append(out, descs...)
		}
		return out, nil
	case 2:
		if entry[1] != types.Wildcard {
			return nil, malformed(entry, "pack and suite without a case is ambiguous, use [pack, suite, \"*\"]")
		}
		return expandPack(inv, entry[0])
	case 3:
		if entry[0] == types.Wildcard || entry[1] == types.Wildcard {
			return nil, malformed(entry, "wildcards are only allowed in the last position")
		}
		if entry[2] == types.Wildcard {
			return expandSuite(inv, entry[0], entry[1])
		}
		return []types.Descriptor{types.NewDescriptor(entry[0], entry[1], entry[2])}, nil
	default:
		return nil, malformed(entry, fmt.Sprintf("expected 1 to 3 elements, got %d", len(entry)))
	}
}

func expandPack(inv Inventory, pack string) ([]types.Descriptor, error) {
	suites, err := inv.Suites(pack)
	if err != nil {
		return nil, fmt.Errorf("failed to list suites of %s: %w", pack, err)
	}
	var out []types.Descriptor
	for _, suite := range suites {
		descs, err := expandSuite(inv, pack, suite)
		if err != nil {
			return nil, err
		}
		out = append(out, descs...)
	}
	return out, nil
}

func expandSuite(inv Inventory, pack, suite string) ([]types.Descriptor, error) {
	cases, err := inv.Cases(pack, suite)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases of %s/%s: %w", pack, suite, err)
	}
	out := make([]types.Descriptor, 0, len(cases))
	for _, c := range cases {
		out = append(out, types.NewDescriptor(pack, suite, c))
	}
	return out, nil
}

func malformed(entry []string, reason string) error {
	return &MalformedSelectionError{Entry: entry, Reason: reason}
}
