package types

import "slices"

const (
	// NoCapability is used when a run plan names no capability profiles.
	NoCapability = "N/A"
	// NoVariant is the title and value of the implicit variant.
	NoVariant = "-"
)

// Variant is one named data configuration a suite is run with.
type Variant struct {
	Title                string   `yaml:"title" json:"title"`
	Value                string   `yaml:"value" json:"value"`
	ExcludedEnvironments []string `yaml:"excluded_environments,omitempty" json:"excluded_environments,omitempty"`
	ProductionSafe       bool     `yaml:"production_safe,omitempty" json:"production_safe,omitempty"`
}

// DefaultVariant is used for suites that declare no variants.
func DefaultVariant() Variant {
	return Variant{Title: NoVariant, Value: NoVariant}
}

// ExcludedFrom reports whether env is listed in the variant's exclusions.
// Environment names are compared exactly.
func (v Variant) ExcludedFrom(env string) bool {
	return slices.Contains(v.ExcludedEnvironments, env)
}
