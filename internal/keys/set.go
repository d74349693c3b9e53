package keys

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sentinel spellings accepted in configuration.
const (
	AllKeys = "all"
	NoKeys  = "none"
)

var ErrInvalidSet = errors.New("invalid key set")

type setKind uint8

const (
	kindNone setKind = iota
	kindList
	kindAll
)

// Set is a set of key identifiers. The zero value matches no key.
//
// A Set is either empty ("none"), an explicit list, or every key except an
// explicit list ("all" is the latter with nothing excluded).
type Set struct {
	kind  setKind
	names map[string]struct{}
}

// None returns a set matching no key.
func None() Set { return Set{} }

// All returns a set matching every key.
func All() Set { return Set{kind: kindAll} }

// Of returns a set matching exactly the given keys.
func Of(names ...string) Set {
	s := Set{kind: kindList, names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if n = Normalize(n); n != "" {
			s.names[n] = struct{}{}
		}
	}
	return s
}

func allExcept(names map[string]struct{}) Set {
	return Set{kind: kindAll, names: names}
}

// IsNone reports whether the set can never match a key.
func (s Set) IsNone() bool {
	return s.kind == kindNone || (s.kind == kindList && len(s.names) == 0)
}

// IsAll reports whether the set matches every key.
func (s Set) IsAll() bool {
	return s.kind == kindAll && len(s.names) == 0
}

// Contains reports whether key is matched by the set.
func (s Set) Contains(key string) bool {
	key = Normalize(key)
	switch s.kind {
	case kindAll:
		_, excluded := s.names[key]
		return !excluded
	case kindList:
		_, ok := s.names[key]
		return ok
	default:
		return false
	}
}

// Without returns the keys of s that are not in other.
func (s Set) Without(other Set) Set {
	if s.IsNone() {
		return None()
	}
	switch {
	case other.IsNone():
		return s
	case s.kind == kindList && other.kind == kindList:
		out := make(map[string]struct{})
		for n := range s.names {
			if _, ok := other.names[n]; !ok {
				out[n] = struct{}{}
			}
		}
		return Set{kind: kindList, names: out}
	case s.kind == kindList && other.kind == kindAll:
		out := make(map[string]struct{})
		for n := range s.names {
			if _, excluded := other.names[n]; excluded {
				out[n] = struct{}{}
			}
		}
		return Set{kind: kindList, names: out}
	case s.kind == kindAll && other.kind == kindList:
		out := make(map[string]struct{}, len(s.names)+len(other.names))
		for n := range s.names {
			out[n] = struct{}{}
		}
		for n := range other.names {
			out[n] = struct{}{}
		}
		return allExcept(out)
	default:
		// all-except(E1) minus all-except(E2) is E2 minus E1.
		out := make(map[string]struct{})
		for n := range other.names {
			if _, ok := s.names[n]; !ok {
				out[n] = struct{}{}
			}
		}
		return Set{kind: kindList, names: out}
	}
}

// Names returns the listed keys in sorted order. For an "all" set these are
// the excluded keys.
func (s Set) Names() []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (s Set) String() string {
	switch {
	case s.IsNone():
		return NoKeys
	case s.IsAll():
		return AllKeys
	case s.kind == kindAll:
		return AllKeys + " except [" + strings.Join(s.Names(), " ") + "]"
	default:
		return "[" + strings.Join(s.Names(), " ") + "]"
	}
}

// Parse decodes the configuration spelling of a set: "all", "none", or a
// comma separated list of keys.
func Parse(spec string) (Set, error) {
	switch strings.ToLower(strings.TrimSpace(spec)) {
	case AllKeys:
		return All(), nil
	case NoKeys, "":
		return None(), nil
	}
	parts := strings.Split(spec, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return Set{}, fmt.Errorf("%w: empty key in %q", ErrInvalidSet, spec)
		}
	}
	return Of(parts...), nil
}

func fromSentinel(s string) (Set, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case AllKeys:
		return All(), nil
	case NoKeys:
		return None(), nil
	}
	return Set{}, fmt.Errorf("%w: %q is neither %q, %q nor a list", ErrInvalidSet, s, AllKeys, NoKeys)
}

// UnmarshalYAML accepts "all", "none" or a sequence of key names.
func (s *Set) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		set, err := fromSentinel(node.Value)
		if err != nil {
			return err
		}
		*s = set
		return nil
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSet, err)
		}
		*s = Of(names...)
		return nil
	default:
		return fmt.Errorf("%w: unexpected YAML node at line %d", ErrInvalidSet, node.Line)
	}
}

// MarshalYAML writes the set back in its configuration spelling.
func (s Set) MarshalYAML() (interface{}, error) {
	switch {
	case s.IsAll():
		return AllKeys, nil
	case s.kind == kindNone:
		return NoKeys, nil
	case s.kind == kindAll:
		return nil, fmt.Errorf("%w: an all-except set has no configuration spelling", ErrInvalidSet)
	default:
		return s.Names(), nil
	}
}

// UnmarshalJSON accepts "all", "none" or an array of key names.
func (s *Set) UnmarshalJSON(data []byte) error {
	var sentinel string
	if err := json.Unmarshal(data, &sentinel); err == nil {
		set, err := fromSentinel(sentinel)
		if err != nil {
			return err
		}
		*s = set
		return nil
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSet, err)
	}
	*s = Of(names...)
	return nil
}

// MarshalJSON writes the set in the same shape UnmarshalJSON accepts.
func (s Set) MarshalJSON() ([]byte, error) {
	v, err := s.MarshalYAML()
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}
