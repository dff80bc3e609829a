package selection

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-matrix/types"
)

type suiteCases struct {
	name  string
	cases []string
}

type fakeInventory struct {
	order []string
	packs map[string][]suiteCases
}

var errNotFound = errors.New("not found")

func (f *fakeInventory) Packs() []string { return f.order }

func (f *fakeInventory) Suites(pack string) ([]string, error) {
	suites, ok := f.packs[pack]
	if !ok {
		return nil, fmt.Errorf("pack %s: %w", pack, errNotFound)
	}
	var names []string
	for _, s := range suites {
		names = append(names, s.name)
	}
	return names, nil
}

func (f *fakeInventory) Cases(pack, suite string) ([]string, error) {
	for _, s := range f.packs[pack] {
		if s.name == suite {
			return s.cases, nil
		}
	}
	return nil, fmt.Errorf("suite %s/%s: %w", pack, suite, errNotFound)
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{
		order: []string{"packA", "packB"},
		packs: map[string][]suiteCases{
			"packA": {
				{name: "s1", cases: []string{"c1", "c2"}},
				{name: "s2", cases: []string{"c3"}},
			},
			"packB": {
				{name: "s9", cases: []string{"z"}},
			},
		},
	}
}

func d(pack, suite, c string) types.Descriptor {
	return types.NewDescriptor(pack, suite, c)
}

func TestResolve(t *testing.T) {
	inv := newFakeInventory()

	tests := []struct {
		name    string
		entries [][]string
		want    []types.Descriptor
	}{
		{
			name:    "everything",
			entries: [][]string{{"*"}},
			want:    []types.Descriptor{d("packA", "s1", "c1"), d("packA", "s1", "c2"), d("packA", "s2", "c3"), d("packB", "s9", "z")},
		},
		{
			name:    "whole pack",
			entries: [][]string{{"packA", "*"}},
			want:    []types.Descriptor{d("packA", "s1", "c1"), d("packA", "s1", "c2"), d("packA", "s2", "c3")},
		},
		{
			name:    "whole suite",
			entries: [][]string{{"packA", "s1", "*"}},
			want:    []types.Descriptor{d("packA", "s1", "c1"), d("packA", "s1", "c2")},
		},
		{
			name:    "single case",
			entries: [][]string{{"packA", "s2", "c3"}},
			want:    []types.Descriptor{d("packA", "s2", "c3")},
		},
		{
			name:    "entry order and duplicates kept",
			entries: [][]string{{"packB", "*"}, {"packA", "s2", "c3"}, {"packA", "s2", "*"}},
			want:    []types.Descriptor{d("packB", "s9", "z"), d("packA", "s2", "c3"), d("packA", "s2", "c3")},
		},
		{
			name:    "no entries",
			entries: nil,
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(inv, tt.entries)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveMalformed(t *testing.T) {
	inv := newFakeInventory()

	tests := []struct {
		name  string
		entry []string
	}{
		{name: "pack alone", entry: []string{"packA"}},
		{name: "pack and suite", entry: []string{"packA", "suiteB"}},
		{name: "empty", entry: []string{}},
		{name: "too long", entry: []string{"a", "b", "c", "d"}},
		{name: "inner wildcard", entry: []string{"packA", "*", "c1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(inv, [][]string{{"packA", "*"}, tt.entry})
			require.Error(t, err)
			assert.Nil(t, got)

			var malformedErr *MalformedSelectionError
			require.ErrorAs(t, err, &malformedErr)
			assert.Equal(t, tt.entry, malformedErr.Entry)
			assert.ErrorIs(t, err, types.ErrConfiguration)
		})
	}
}

func TestResolveUnknownPack(t *testing.T) {
	_, err := Resolve(newFakeInventory(), [][]string{{"missing", "*"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, errNotFound)

	_, err = Resolve(newFakeInventory(), [][]string{{"packA", "missing", "*"}})
	assert.ErrorIs(t, err, errNotFound)
}
