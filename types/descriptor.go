package types

import "strings"

// Wildcard selects everything at its position in a selection entry.
const Wildcard = "*"

// Descriptor identifies a single runnable case by pack, suite and case name.
type Descriptor struct {
	Pack  string `json:"pack" yaml:"pack"`
	Suite string `json:"suite" yaml:"suite"`
	Case  string `json:"case" yaml:"case"`
}

func NewDescriptor(pack, suite, name string) Descriptor {
	return Descriptor{Pack: pack, Suite: suite, Case: name}
}

// SuiteKey returns "pack/suite", the key under which variants are looked up.
func (d Descriptor) SuiteKey() string {
	return SuiteKey(d.Pack, d.Suite)
}

func (d Descriptor) String() string {
	return strings.Join([]string{d.Pack, d.Suite, d.Case}, "/")
}

// SuiteKey joins a pack and suite name.
func SuiteKey(pack, suite string) string {
	return pack + "/" + suite
}
