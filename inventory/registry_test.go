package inventory

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pass(context.Context) error { return nil }

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(Config{Log: log.NewLogger(log.DiscardHandler())})
	s1 := Funcs{"c1": pass, "c2": pass, "_helper": pass}
	require.NoError(t, r.Register("packA", "s1", Static(s1), "c1", "c2", "_helper"))
	require.NoError(t, r.Register("packA", "s2", Static(Funcs{"c3": pass}), "c3"))
	require.NoError(t, r.Register("packB", "only", Static(Funcs{"x": pass}), "x"))
	return r
}

func TestRegistryQueries(t *testing.T) {
	r := newTestRegistry(t)

	assert.Equal(t, []string{"packA", "packB"}, r.Packs())

	suites, err := r.Suites("packA")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, suites)

	cases, err := r.Cases("packA", "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, cases, "private cases must not be listed")

	factory, err := r.Lookup("packA", "s2")
	require.NoError(t, err)
	suite, err := factory(SuiteEnv{})
	require.NoError(t, err)
	assert.Contains(t, suite.Cases(), "c3")
}

func TestRegistryUnknown(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Suites("nope")
	assert.ErrorIs(t, err, ErrUnknownPack)

	_, err = r.Cases("packA", "nope")
	assert.ErrorIs(t, err, ErrUnknownSuite)

	_, err = r.Lookup("nope", "s1")
	assert.ErrorIs(t, err, ErrUnknownPack)
}

func TestRegistryRejectsInvalid(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		name    string
		pack    string
		suite   string
		factory SuiteFactory
	}{
		{name: "empty pack", pack: "", suite: "s", factory: Static(Funcs{})},
		{name: "empty suite", pack: "p", suite: "", factory: Static(Funcs{})},
		{name: "nil factory", pack: "p", suite: "s", factory: nil},
		{name: "duplicate", pack: "packA", suite: "s1", factory: Static(Funcs{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, r.Register(tt.pack, tt.suite, tt.factory))
		})
	}

	assert.Panics(t, func() {
		r.MustRegister("packA", "s1", Static(Funcs{}))
	})
}

func TestFuncsNames(t *testing.T) {
	f := Funcs{"b": pass, "a": pass, "_private": pass}
	assert.Equal(t, []string{"a", "b"}, f.Names())
}
