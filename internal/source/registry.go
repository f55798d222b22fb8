package source

import (
	"sort"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"

	"github.com/dshills/stormcomplete/internal/config"
)

// APIVersion is the version of the source contract offered by this core.
const APIVersion = "1.0.0"

// Validator is implemented by config types that check their own values.
// path is the dot-separated prefix for error paths.
type Validator interface {
	Validate(path string) error
}

type entry struct {
	name  string
	build func(id int, raw map[string]any, policy EnablePolicy, pred PredicateFunc) (*Bundle, error)
}

// Registry holds registered sources in registration order.
// It is an explicit value passed to the core; there is no global registry.
type Registry struct {
	mu      sync.RWMutex
	version string
	entries []*entry
	byName  map[string]int
}

// NewRegistry creates a registry for the given core API version.
func NewRegistry(coreVersion string) *Registry {
	return &Registry{
		version: coreVersion,
		byName:  make(map[string]int),
	}
}

// Register adds src. defaults returns the config used for keys absent from
// the source's section; nil means the zero value of C.
// Returns an error if the name is taken or the version is incompatible.
func Register[C any](r *Registry, src Source[C], defaults func() C) error {
	name := src.Name()
	if name == "" || strings.Contains(name, ".") {
		return errors.Newf("invalid source name %q", name)
	}
	if v, ok := any(src).(Versioned); ok {
		if err := r.validateVersion(v.CoreVersion()); err != nil {
			return errors.Wrapf(err, "source %s", name)
		}
	}

	e := &entry{
		name: name,
		build: func(id int, raw map[string]any, policy EnablePolicy, pred PredicateFunc) (*Bundle, error) {
			var cfg C
			if defaults != nil {
				cfg = defaults()
			}
			path := config.JoinPath("sources", name)
			if err := config.DecodeStrict(path, raw, &cfg); err != nil {
				return nil, err
			}
			if v, ok := any(&cfg).(Validator); ok {
				if err := v.Validate(path); err != nil {
					return nil, err
				}
			}
			return NewBundle(id, src, cfg, policy, pred), nil
		},
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		return errors.Wrapf(ErrDuplicateSource, "%s", name)
	}
	r.byName[name] = len(r.entries)
	r.entries = append(r.entries, e)
	return nil
}

// MustRegister is Register that panics on error, for built-in sources.
func MustRegister[C any](r *Registry, src Source[C], defaults func() C) {
	if err := Register(r, src, defaults); err != nil {
		panic(err)
	}
}

// Names returns source names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.name
	}
	return names
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Build decodes each source's section and returns one bundle per source in
// registration order. Sources without a section use their defaults and are
// enabled. All problems are collected into a *config.BadConfigErrors.
func (r *Registry) Build(sections map[string]map[string]any, resolver PredicateResolver) ([]*Bundle, error) {
	r.mu.RLock()
	entries := append([]*entry(nil), r.entries...)
	known := make(map[string]bool, len(r.byName))
	for name := range r.byName {
		known[name] = true
	}
	r.mu.RUnlock()

	var errs config.BadConfigErrors

	unknown := make([]string, 0)
	for name := range sections {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		errs.Add(config.JoinPath("sources", name), "unknown source")
	}

	bundles := make([]*Bundle, 0, len(entries))
	for id, e := range entries {
		path := config.JoinPath("sources", e.name)
		raw := make(map[string]any, len(sections[e.name]))
		for k, v := range sections[e.name] {
			raw[k] = v
		}
		enable := raw["enable"]
		delete(raw, "enable")

		policy, ok := ParsePolicy(enable)
		if !ok {
			errs.AddWithValue(path+".enable", "must be a boolean or the name of a Lua function", enable)
			continue
		}

		var pred PredicateFunc
		if policy.Kind() == PolicyPredicate {
			if resolver == nil {
				errs.Add(path+".enable", ErrNoPredicates.Error())
				continue
			}
			p, err := resolver.Resolve(policy.PredicateName())
			if err != nil {
				errs.AddWithValue(path+".enable", err.Error(), policy.PredicateName())
				continue
			}
			pred = p
		}

		b, err := e.build(id, raw, policy, pred)
		if err != nil {
			errs.Merge(path, err)
			continue
		}
		bundles = append(bundles, b)
	}

	if err := errs.AsError(); err != nil {
		return nil, err
	}
	return bundles, nil
}

// validateVersion checks a source's constraint against the core version.
func (r *Registry) validateVersion(constraint string) error {
	if constraint == "" {
		return nil
	}

	coreVer, err := semver.NewVersion(r.version)
	if err != nil {
		return errors.Wrapf(err, "invalid core version %s", r.version)
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return errors.Wrapf(err, "invalid version constraint %s", constraint)
	}

	if !c.Check(coreVer) {
		return errors.Wrapf(ErrIncompatible, "requires %s, running %s", constraint, r.version)
	}
	return nil
}
