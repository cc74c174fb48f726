// Package schema defines the variable registry: the canonical set of point
// variables a conversion can produce, the input names each one may appear
// under, and the CF attribute template written alongside it.
package schema

import (
	"fmt"
	"strings"
)

// DType identifies the fixed-width numeric kind a variable is stored as.
type DType string

const (
	Float32 DType = "f4"
	Float64 DType = "f8"
	Int8    DType = "i1"
	UInt8   DType = "u1"
	Int16   DType = "i2"
	UInt16  DType = "u2"
	Int32   DType = "i4"
)

var dtypes = map[DType]bool{
	Float32: true, Float64: true,
	Int8: true, UInt8: true,
	Int16: true, UInt16: true,
	Int32: true,
}

// Valid reports whether d names a supported storage kind.
func (d DType) Valid() bool { return dtypes[d] }

// Attr is a single variable attribute. Value is a string, float64, or
// []float64.
type Attr struct {
	Name  string
	Value any
}

// VariableSpec describes one canonical variable. Immutable after the
// registry is built.
type VariableSpec struct {
	Name       string
	DType      DType
	Synonyms   []string
	Attributes []Attr
}

// Matches reports whether name is one of the spec's accepted input names,
// compared case-insensitively.
func (v *VariableSpec) Matches(name string) bool {
	for _, s := range v.Synonyms {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// Attribute returns the named attribute value, or nil.
func (v *VariableSpec) Attribute(name string) any {
	for _, a := range v.Attributes {
		if a.Name == name {
			return a.Value
		}
	}
	return nil
}

// Registry is the ordered set of variable specs for a run. Order is
// significant: when an input name matches several specs, the first entry
// wins.
type Registry struct {
	specs []*VariableSpec
}

// NewRegistry builds a registry from specs, validating names and dtypes.
func NewRegistry(specs []*VariableSpec) (*Registry, error) {
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("schema: variable with empty canonical name")
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("schema: duplicate canonical name %q", s.Name)
		}
		seen[s.Name] = true
		if !s.DType.Valid() {
			return nil, fmt.Errorf("schema: variable %q has unknown dtype %q", s.Name, s.DType)
		}
	}
	return &Registry{specs: specs}, nil
}

// Specs returns the registry entries in registry order.
func (r *Registry) Specs() []*VariableSpec { return r.specs }

// Lookup returns the spec for a canonical name, or nil.
func (r *Registry) Lookup(canonical string) *VariableSpec {
	for _, s := range r.specs {
		if s.Name == canonical {
			return s
		}
	}
	return nil
}

// Match returns every spec whose synonym set contains name, in registry
// order. More than one match is a configuration problem the caller reports;
// the first entry is still the deterministic winner.
func (r *Registry) Match(name string) []*VariableSpec {
	var out []*VariableSpec
	for _, s := range r.specs {
		if s.Matches(name) {
			out = append(out, s)
		}
	}
	return out
}
