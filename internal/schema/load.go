package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadRegistry reads a registry from a YAML mapping file of the form
//
//	longitude:
//	  possible_names: [lon, long]
//	  dtype: f4
//	  attributes:
//	    units: degrees_east
//	    valid_range: [-180, 180]
//
// File order is preserved, which makes ambiguity resolution deterministic.
func LoadRegistry(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: reading registry: %w", err)
	}
	return parseRegistry(b)
}

func parseRegistry(b []byte) (*Registry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("schema: parsing registry: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("schema: registry file is empty")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("schema: registry must be a mapping of variable names")
	}

	var specs []*VariableSpec
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := root.Content[i].Value
		var body struct {
			PossibleNames []string `yaml:"possible_names"`
			DType         string   `yaml:"dtype"`
			Attributes    yaml.Node
		}
		if err := root.Content[i+1].Decode(&body); err != nil {
			return nil, fmt.Errorf("schema: variable %q: %w", name, err)
		}
		if len(body.PossibleNames) == 0 {
			return nil, fmt.Errorf("schema: variable %q has no possible_names", name)
		}
		if body.DType == "" {
			body.DType = string(Float32)
		}
		attrs, err := parseAttrs(&body.Attributes)
		if err != nil {
			return nil, fmt.Errorf("schema: variable %q: %w", name, err)
		}
		specs = append(specs, &VariableSpec{
			Name:       name,
			DType:      DType(body.DType),
			Synonyms:   body.PossibleNames,
			Attributes: attrs,
		})
	}
	return NewRegistry(specs)
}

func parseAttrs(n *yaml.Node) ([]Attr, error) {
	if n.Kind == 0 || n.IsZero() {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("attributes must be a mapping")
	}
	var attrs []Attr
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		val := n.Content[i+1]
		switch val.Kind {
		case yaml.ScalarNode:
			var f float64
			if err := val.Decode(&f); err == nil && val.Tag != "!!str" {
				attrs = append(attrs, Attr{key, f})
			} else {
				attrs = append(attrs, Attr{key, val.Value})
			}
		case yaml.SequenceNode:
			var fs []float64
			if err := val.Decode(&fs); err != nil {
				return nil, fmt.Errorf("attribute %q: %w", key, err)
			}
			attrs = append(attrs, Attr{key, fs})
		default:
			return nil, fmt.Errorf("attribute %q has unsupported value", key)
		}
	}
	return attrs, nil
}
