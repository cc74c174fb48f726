// Package acdd composes the ACDD global attributes of an output dataset
// from a user-supplied tier and values computed from the data itself.
package acdd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Requirement tiers used by the attribute table. Purely advisory: absences
// are reported, never enforced.
const (
	Required    = "Required"
	Recommended = "Recommended"
	Optional    = "Optional"
)

// Attribute is one global attribute. Value is a string or float64.
type Attribute struct {
	Key         string
	Value       any
	Requirement string
}

// Set is an ordered collection of global attributes.
type Set struct {
	attrs []Attribute
}

// Attributes returns the attributes in order.
func (s *Set) Attributes() []Attribute { return s.attrs }

// Get returns the value for key, or nil.
func (s *Set) Get(key string) any {
	for _, a := range s.attrs {
		if a.Key == key {
			return a.Value
		}
	}
	return nil
}

// Set inserts or replaces a value, keeping the key's existing position.
func (s *Set) Set(key string, value any) {
	for i := range s.attrs {
		if s.attrs[i].Key == key {
			s.attrs[i].Value = value
			return
		}
	}
	s.attrs = append(s.attrs, Attribute{Key: key, Value: value})
}

// Clone returns a copy sharing no state with the receiver.
func (s *Set) Clone() *Set {
	return &Set{attrs: append([]Attribute(nil), s.attrs...)}
}

// FromJSON parses an inline JSON object of attributes, preserving key
// order. Numbers become float64, everything else a string.
func FromJSON(src string) (*Set, error) {
	dec := json.NewDecoder(strings.NewReader(src))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("acdd: parsing attribute JSON: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("acdd: attribute JSON must be an object")
	}
	s := &Set{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("acdd: parsing attribute JSON: %w", err)
		}
		key := keyTok.(string)
		valTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("acdd: parsing attribute JSON: %w", err)
		}
		switch v := valTok.(type) {
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				return nil, fmt.Errorf("acdd: attribute %q: %w", key, err)
			}
			s.attrs = append(s.attrs, Attribute{Key: key, Value: f})
		case string:
			s.attrs = append(s.attrs, Attribute{Key: key, Value: v})
		case bool:
			s.attrs = append(s.attrs, Attribute{Key: key, Value: strconv.FormatBool(v)})
		case nil:
			// Explicit null means "not provided".
		default:
			return nil, fmt.Errorf("acdd: attribute %q has a non-scalar value", key)
		}
	}
	return s, nil
}

// FromYAMLFile reads attributes from a YAML mapping file, preserving order.
func FromYAMLFile(path string) (*Set, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("acdd: reading attributes: %w", err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("acdd: parsing attributes: %w", err)
	}
	if len(doc.Content) == 0 {
		return &Set{}, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("acdd: attribute file must be a mapping")
	}
	s := &Set{}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		val := root.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("acdd: attribute %q has a non-scalar value", key)
		}
		if val.Tag == "!!null" || val.Value == "" {
			continue
		}
		var f float64
		if err := val.Decode(&f); err == nil && val.Tag != "!!str" {
			s.attrs = append(s.attrs, Attribute{Key: key, Value: f})
		} else {
			s.attrs = append(s.attrs, Attribute{Key: key, Value: val.Value})
		}
	}
	return s, nil
}

// FromCSVFile reads the attribute table format: a header row naming at
// least Attribute and value columns, with optional format and Requirement
// columns. Rows with empty values are kept only for their requirement
// annotation.
func FromCSVFile(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("acdd: reading attribute table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("acdd: parsing attribute table: %w", err)
	}
	if len(rows) == 0 {
		return &Set{}, nil
	}
	col := make(map[string]int)
	for i, name := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	attrIdx, ok := col["attribute"]
	if !ok {
		return nil, fmt.Errorf("acdd: attribute table has no Attribute column")
	}
	valIdx, ok := col["value"]
	if !ok {
		return nil, fmt.Errorf("acdd: attribute table has no value column")
	}

	cell := func(row []string, idx int, ok bool) string {
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	fmtIdx, fmtOK := col["format"]
	reqIdx, reqOK := col["requirement"]

	s := &Set{}
	for _, row := range rows[1:] {
		key := cell(row, attrIdx, true)
		if key == "" {
			continue
		}
		a := Attribute{Key: key, Requirement: cell(row, reqIdx, reqOK)}
		val := cell(row, valIdx, true)
		switch val {
		case "", "nan", "None":
			// No value supplied; keep for the requirement annotation.
		default:
			if cell(row, fmtIdx, fmtOK) == "number" {
				f, err := strconv.ParseFloat(val, 64)
				if err != nil {
					return nil, fmt.Errorf("acdd: attribute %q: %q is not a number", key, val)
				}
				a.Value = f
			} else {
				a.Value = val
			}
		}
		s.attrs = append(s.attrs, a)
	}
	return s, nil
}

var timeFormatRE = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}(T\d{2}:\d{2}:\d{2}Z)?$`)

// Validate checks user-supplied attribute values: timestamp formats,
// latitude/longitude ranges, and extent ordering. Violations are fatal
// before any data is read.
func (s *Set) Validate() error {
	var errs []string
	num := func(key string) (float64, bool) {
		v, ok := s.Get(key).(float64)
		return v, ok
	}
	for _, a := range s.attrs {
		switch a.Key {
		case "time_coverage_start", "time_coverage_end", "date_created":
			if str, ok := a.Value.(string); ok && !timeFormatRE.MatchString(str) {
				errs = append(errs, fmt.Sprintf("%s must be in the format YYYY-MM-DD or YYYY-MM-DDTHH:MM:SSZ", a.Key))
			}
		case "geospatial_lat_min", "geospatial_lat_max":
			if v, ok := a.Value.(float64); ok && (v < -90 || v > 90) {
				errs = append(errs, fmt.Sprintf("%s must be between -90 and 90 inclusive", a.Key))
			}
		case "geospatial_lon_min", "geospatial_lon_max":
			if v, ok := a.Value.(float64); ok && (v < -180 || v > 180) {
				errs = append(errs, fmt.Sprintf("%s must be between -180 and 180 inclusive", a.Key))
			}
		}
	}
	if lo, ok1 := num("geospatial_lat_min"); ok1 {
		if hi, ok2 := num("geospatial_lat_max"); ok2 && lo > hi {
			errs = append(errs, "geospatial_lat_max must be greater than or equal to geospatial_lat_min")
		}
	}
	if lo, ok1 := num("geospatial_lon_min"); ok1 {
		if hi, ok2 := num("geospatial_lon_max"); ok2 && lo > hi {
			errs = append(errs, "geospatial_lon_max must be greater than or equal to geospatial_lon_min")
		}
	}
	if start, ok1 := s.Get("time_coverage_start").(string); ok1 {
		if end, ok2 := s.Get("time_coverage_end").(string); ok2 && start > end {
			errs = append(errs, "time_coverage_end must be greater than or equal to time_coverage_start")
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("acdd: invalid global attributes: %s", strings.Join(errs, "; "))
	}
	return nil
}
