// Package feature implements a small staged feature-flag registry: flags
// move from Alpha (off by default) to Beta (on by default) to Stable
// (permanently on, kept only so --feature=name=false still parses) to
// Deprecated (permanently off). Callers gate new, possibly-disruptive
// behavior behind a flag and flip its stage as confidence grows.
package feature

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/jLantxa/mapache-sub000/internal/errors"
)

// FlagName identifies a feature flag.
type FlagName string

// Type describes a flag's lifecycle stage and default value.
type Type string

const (
	Alpha      Type = "alpha"
	Beta       Type = "beta"
	Stable     Type = "stable"
	Deprecated Type = "deprecated"
)

// FlagDesc describes one flag's stage and purpose.
type FlagDesc struct {
	Type        Type
	Description string
}

func (t Type) defaultValue() (bool, error) {
	switch t {
	case Alpha:
		return false, nil
	case Beta, Stable:
		return true, nil
	case Deprecated:
		return false, nil
	default:
		return false, errors.Errorf("unknown feature flag type %q", t)
	}
}

func (t Type) locked() bool {
	return t == Stable || t == Deprecated
}

// FlagSet tracks the current value of every registered flag.
type FlagSet struct {
	mu    sync.Mutex
	flags map[FlagName]FlagDesc
	value map[FlagName]bool
}

// New returns an empty FlagSet; call SetFlags to register flags.
func New() *FlagSet {
	return &FlagSet{
		flags: make(map[FlagName]FlagDesc),
		value: make(map[FlagName]bool),
	}
}

// SetFlags replaces the flag registry, resetting every flag to its
// stage's default value. Panics if any flag has an unknown Type.
func (s *FlagSet) SetFlags(flags map[FlagName]FlagDesc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flags = make(map[FlagName]FlagDesc, len(flags))
	s.value = make(map[FlagName]bool, len(flags))
	for name, desc := range flags {
		def, err := desc.Type.defaultValue()
		if err != nil {
			panic(err)
		}
		s.flags[name] = desc
		s.value[name] = def
	}
}

// Enabled reports whether name is currently enabled. Panics if name was
// never registered, since that indicates a programming error at the
// call site, not a runtime condition.
func (s *FlagSet) Enabled(name FlagName) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.value[name]
	if !ok {
		panic(fmt.Sprintf("unknown feature flag %q", name))
	}
	return v
}

// Apply parses a comma-separated "name" or "name=true"/"name=false" list
// and overrides the listed flags' values. Stable and Deprecated flags
// ignore the override silently: their value can never change.
func (s *FlagSet) Apply(flagStr string) error {
	if flagStr == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range strings.Split(flagStr, ",") {
		name, valueStr, hasValue := strings.Cut(item, "=")
		fname := FlagName(name)

		desc, ok := s.flags[fname]
		if !ok {
			return errors.Errorf("unknown feature flag %q", name)
		}

		value := true
		if hasValue {
			v, err := strconv.ParseBool(valueStr)
			if err != nil {
				return errors.Errorf("failed to parse value for feature flag %q: %v", name, err)
			}
			value = v
		}

		if desc.Type.locked() {
			continue
		}
		s.value[fname] = value
	}
	return nil
}

// Help describes one flag for a --help listing.
type Help struct {
	Name        string
	Type        string
	Enabled     bool
	Description string
}

// List returns every registered flag's current help entry, sorted by name.
func (s *FlagSet) List() []Help {
	s.mu.Lock()
	defer s.mu.Unlock()

	help := make([]Help, 0, len(s.flags))
	for name, desc := range s.flags {
		help = append(help, Help{
			Name:        string(name),
			Type:        string(desc.Type),
			Enabled:     s.value[name],
			Description: desc.Description,
		})
	}
	sort.Slice(help, func(i, j int) bool { return help[i].Name < help[j].Name })
	return help
}
