package inventory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

var (
	ErrUnknownPack  = errors.New("unknown pack")
	ErrUnknownSuite = errors.New("unknown suite")
	ErrUnknownCase  = errors.New("unknown case")
)

// Case is a single runnable check. Returning nil means it passed.
type Case func(ctx context.Context) error

// Suite exposes the cases of one suite instance, keyed by case name.
type Suite interface {
	Cases() map[string]Case
}

// Cleaner is implemented by suites holding resources that must be released
// after every attempt.
type Cleaner interface {
	Cleanup() error
}

// SuiteEnv is what a suite instance is constructed with for one attempt.
type SuiteEnv struct {
	Pack          string
	Suite         string
	Platform      string
	Capability    string
	ConfigTitle   string
	ConfigValue   string
	ScreenshotDir string
	Log           log.Logger
}

// SuiteFactory builds a fresh suite instance for a single attempt.
type SuiteFactory func(env SuiteEnv) (Suite, error)

type suiteEntry struct {
	name    string
	factory SuiteFactory
	cases   []string
}

type packEntry struct {
	name   string
	suites []*suiteEntry
}

// Registry maps (pack, suite) to suite constructors. It is populated once at
// startup and read concurrently afterwards.
type Registry struct {
	log   log.Logger
	packs []*packEntry
	mu    sync.RWMutex
}

type Config struct {
	Log log.Logger
}

func NewRegistry(cfg Config) *Registry {
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	return &Registry{log: cfg.Log}
}

// Register adds a suite. Case names are listed in the given order; names
// with a leading underscore are private and never listed.
func (r *Registry) Register(pack, suite string, factory SuiteFactory, cases ...string) error {
	if pack == "" || suite == "" {
		return errors.New("pack and suite names are required")
	}
	if factory == nil {
		return fmt.Errorf("suite %s/%s: factory is required", pack, suite)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.findPack(pack)
	if p == nil {
		p = &packEntry{name: pack}
		r.packs = append(r.packs, p)
	}
	if findSuite(p, suite) != nil {
		return fmt.Errorf("suite %s/%s already registered", pack, suite)
	}

	public := make([]string, 0, len(cases))
	for _, c := range cases {
		if IsPrivate(c) || slices.Contains(public, c) {
			continue
		}
		public = append(public, c)
	}
	p.suites = append(p.suites, &suiteEntry{name: suite, factory: factory, cases: public})
	r.log.Debug("Registered suite", "pack", pack, "suite", suite, "cases", len(public))
	return nil
}

// MustRegister panics on registration errors. Meant for package init of built-in suites.
func (r *Registry) MustRegister(pack, suite string, factory SuiteFactory, cases ...string) {
	if err := r.Register(pack, suite, factory, cases...); err != nil {
		panic(err)
	}
}

// Packs lists pack names in registration order.
func (r *Registry) Packs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.packs))
	for _, p := range r.packs {
		names = append(names, p.name)
	}
	return names
}

// Suites lists the suites of a pack in registration order.
func (r *Registry) Suites(pack string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p := r.findPack(pack)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPack, pack)
	}
	names := make([]string, 0, len(p.suites))
	for _, s := range p.suites {
		names = append(names, s.name)
	}
	return names, nil
}

// Cases lists the public cases of a suite.
func (r *Registry) Cases(pack, suite string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, err := r.lookup(pack, suite)
	if err != nil {
		return nil, err
	}
	return slices.Clone(s.cases), nil
}

// Lookup returns the constructor for a suite.
func (r *Registry) Lookup(pack, suite string) (SuiteFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, err := r.lookup(pack, suite)
	if err != nil {
		return nil, err
	}
	return s.factory, nil
}

func (r *Registry) lookup(pack, suite string) (*suiteEntry, error) {
	p := r.findPack(pack)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPack, pack)
	}
	s := findSuite(p, suite)
	if s == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownSuite, pack, suite)
	}
	return s, nil
}

func (r *Registry) findPack(name string) *packEntry {
	for _, p := range r.packs {
		if p.name == name {
			return p
		}
	}
	return nil
}

func findSuite(p *packEntry, name string) *suiteEntry {
	for _, s := range p.suites {
		if s.name == name {
			return s
		}
	}
	return nil
}

// IsPrivate reports whether a case name is hidden from listings.
func IsPrivate(name string) bool {
	return strings.HasPrefix(name, "_")
}
