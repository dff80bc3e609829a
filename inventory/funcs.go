package inventory

import "sort"

// Funcs is a stateless Suite built from a map of cases.
type Funcs map[string]Case

func (f Funcs) Cases() map[string]Case { return f }

// Names returns the public case names of f in lexical order.
func (f Funcs) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		if !IsPrivate(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Static returns a factory that hands out the same stateless suite every time.
func Static(cases Funcs) SuiteFactory {
	return func(SuiteEnv) (Suite, error) {
		return cases, nil
	}
}
