package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-matrix/types"
)

const nightly = `
name: nightly
platform: linux
environment: staging
parallelism: 2
retries: 1
capabilities: [chrome, firefox]
tests:
  - ["functional", "*"]
  - ["errors", "traverse", "error_timeout"]
variants:
  functional:
    statuses:
      - {title: user, value: alice, excluded_environments: [production]}
      - {title: admin, value: root, production_safe: true}
suites:
  api:
    base_url: http://localhost:8080
`

func TestLoadPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(nightly), 0644))

	plan, err := LoadPlan(path)
	require.NoError(t, err)

	assert.Equal(t, "nightly", plan.Name)
	assert.Equal(t, "linux", plan.Platform)
	assert.Equal(t, "staging", plan.Environment)
	assert.Equal(t, 2, plan.Parallelism)
	assert.Equal(t, 1, plan.Retries)
	assert.Equal(t, []string{"chrome", "firefox"}, plan.Capabilities)
	assert.Equal(t, [][]string{{"functional", "*"}, {"errors", "traverse", "error_timeout"}}, plan.Tests)

	variants := plan.Variants.Variants("functional", "statuses")
	require.Len(t, variants, 2)
	assert.True(t, variants[0].ExcludedFrom("production"))
	assert.True(t, variants[1].ProductionSafe)

	assert.Equal(t, "http://localhost:8080", plan.SuiteSetting("api", "base_url", "x"))
	assert.Equal(t, "x", plan.SuiteSetting("api", "missing", "x"))
	assert.Equal(t, "x", plan.SuiteSetting("other", "base_url", "x"))
}

func TestLoadPlanMissingFile(t *testing.T) {
	_, err := LoadPlan(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParsePlanConfigurationErrors(t *testing.T) {
	cases := map[string]string{
		"no name":              "tests: [[functional]]",
		"negative parallelism": "name: n\nparallelism: -1\ntests: [[functional]]",
		"negative retries":     "name: n\nretries: -2\ntests: [[functional]]",
		"no tests":             "name: n",
		"empty entry":          "name: n\ntests: [[]]",
		"untitled variant":     "name: n\ntests: [[functional]]\nvariants: {functional: {statuses: [{value: v}]}}",
		"not yaml":             "name: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePlan([]byte(doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrConfiguration)
		})
	}
}

func TestShippedPlansLoad(t *testing.T) {
	plan, err := LoadPlan(filepath.Join("..", "plans", "nightly.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "nightly", plan.Name)
	assert.Len(t, plan.Variants.Variants("api", "agify"), 2)
}
