// Package enumerator holds the versioned enumerator sets loaded from the
// data/enumerators file and resolves (name, version) lookups for the schema
// resolver.
package enumerator

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/mongodrift/mongodrift/internal/domain"
)

// Statuses an enumerator set may carry.
const (
	StatusActive     = "Active"
	StatusDeprecated = "Deprecated"
)

// Value is one enumerator value with its description.
type Value struct {
	Value       string
	Description string
}

// Enumeration is one named enumerator within a set. Values keep the order
// they were authored in.
type Enumeration struct {
	Name   string
	Values []Value
}

// Set is one versioned collection of enumerations.
type Set struct {
	Name         string
	Status       string
	Version      int
	Enumerations []Enumeration
}

// Lookup returns the ordered values of a named enumeration.
func (s *Set) Lookup(name string) ([]Value, error) {
	for _, e := range s.Enumerations {
		if e.Name == name {
			return e.Values, nil
		}
	}
	return nil, fmt.Errorf("%w: %q in set %q (version %d)", domain.ErrUnknownEnumerator, name, s.Name, s.Version)
}

// ValueNames returns the value strings of a named enumeration in authored
// order. These become the enum list in rendered schemas.
func (s *Set) ValueNames(name string) ([]string, error) {
	values, err := s.Lookup(name)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = v.Value
	}
	return names, nil
}

// Has reports whether the set defines the named enumeration.
func (s *Set) Has(name string) bool {
	_, err := s.Lookup(name)
	return err == nil
}

// Registry holds every loaded enumerator set keyed by integer version.
type Registry struct {
	sets []*Set
}

// Parse decodes the enumerators document (a JSON or YAML list of sets).
// Two sets sharing a version is an error.
func Parse(data []byte) (*Registry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse enumerators: %w", err)
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("parse enumerators: document must be a list of sets")
	}

	reg := &Registry{}
	seen := make(map[int]bool)
	for _, item := range root.Content {
		set, err := parseSet(item)
		if err != nil {
			return nil, err
		}
		if seen[set.Version] {
			return nil, fmt.Errorf("%w: version %d", domain.ErrDuplicateEnumeratorSet, set.Version)
		}
		seen[set.Version] = true
		reg.sets = append(reg.sets, set)
	}
	return reg, nil
}

func parseSet(node *yaml.Node) (*Set, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse enumerators: set must be a mapping")
	}
	set := &Set{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "name":
			set.Name = value.Value
		case "status":
			set.Status = value.Value
		case "version":
			if err := value.Decode(&set.Version); err != nil {
				return nil, fmt.Errorf("parse enumerators: set %q: version must be an integer", set.Name)
			}
		case "enumerators":
			if value.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("parse enumerators: set %q: enumerators must be a mapping", set.Name)
			}
			for j := 0; j+1 < len(value.Content); j += 2 {
				enum, err := parseEnumeration(value.Content[j].Value, value.Content[j+1])
				if err != nil {
					return nil, fmt.Errorf("parse enumerators: set %q: %w", set.Name, err)
				}
				set.Enumerations = append(set.Enumerations, enum)
			}
		}
	}
	return set, nil
}

func parseEnumeration(name string, node *yaml.Node) (Enumeration, error) {
	if node.Kind != yaml.MappingNode {
		return Enumeration{}, fmt.Errorf("enumeration %q must be a value-to-description mapping", name)
	}
	enum := Enumeration{Name: name}
	for i := 0; i+1 < len(node.Content); i += 2 {
		enum.Values = append(enum.Values, Value{
			Value:       node.Content[i].Value,
			Description: node.Content[i+1].Value,
		})
	}
	return enum, nil
}

// Version resolves the set whose integer version matches. The caller decides
// whether a non-Active status is acceptable.
func (r *Registry) Version(v int) (*Set, error) {
	for _, s := range r.sets {
		if s.Version == v {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", domain.ErrUnknownEnumeratorVersion, v)
}

// Sets returns every loaded set in file order.
func (r *Registry) Sets() []*Set { return r.sets }
