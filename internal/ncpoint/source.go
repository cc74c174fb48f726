// Package ncpoint reads and writes CF point datasets in NetCDF files: one
// unlimited "point" dimension, one variable per canonical field, and ACDD
// global attributes.
package ncpoint

import (
	"fmt"
	"io"
	"os"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/ctessum/cdf"

	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/point"
)

// DimName is the dimension all point variables are laid out along.
const DimName = "point"

// Source streams point records out of a NetCDF file one chunk at a time.
// Attributes and the variable listing come from the netcdf package; bulk
// data reads go through the cdf package, whose ranged Reader handles
// windowed reads of classic record variables.
type Source struct {
	nc      api.Group
	ff      *os.File
	cf      *cdf.File
	fields  []string
	getters map[string]api.VarGetter
	count   int64
	pos     int64
}

// OpenSource opens a NetCDF file and selects every variable laid out along
// the point dimension.
func OpenSource(filePath string) (*Source, error) {
	nc, err := netcdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("ncpoint: opening %s: %w", filePath, err)
	}
	s := &Source{nc: nc, getters: map[string]api.VarGetter{}, count: -1}
	for _, name := range nc.ListVariables() {
		vg, err := nc.GetVarGetter(name)
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("ncpoint: variable %s: %w", name, err)
		}
		dims := vg.Dimensions()
		if len(dims) != 1 || dims[0] != DimName {
			continue
		}
		if s.count < 0 {
			s.count = vg.Len()
		}
		s.fields = append(s.fields, name)
		s.getters[name] = vg
	}
	if len(s.fields) == 0 {
		nc.Close()
		return nil, fmt.Errorf("ncpoint: %s has no variables along a %q dimension", filePath, DimName)
	}
	if ff, err := os.Open(filePath); err == nil {
		if cf, err := cdf.Open(ff); err == nil {
			s.ff, s.cf = ff, cf
		} else {
			ff.Close()
		}
	}
	return s, nil
}

// Fields returns the point variable names in file order.
func (s *Source) Fields() []string { return s.fields }

// Count returns the total number of points.
func (s *Source) Count() (int64, bool) { return s.count, true }

// Metadata returns global attribute lines usable as CRS declarations.
func (s *Source) Metadata() []string {
	var lines []string
	attrs := s.nc.Attributes()
	for _, key := range attrs.Keys() {
		v, ok := attrs.Get(key)
		if !ok {
			continue
		}
		if str, ok := v.(string); ok {
			lines = append(lines, fmt.Sprintf("%s=%s", key, str))
		}
	}
	return lines
}

// Attribute returns a global attribute value, or nil.
func (s *Source) Attribute(key string) any {
	v, ok := s.nc.Attributes().Get(key)
	if !ok {
		return nil
	}
	return v
}

// VarAttribute returns an attribute of a variable, or nil. The variable
// does not have to be a point variable: grid mapping and other scalar
// variables are reachable too.
func (s *Source) VarAttribute(variable, key string) any {
	vg, ok := s.getters[variable]
	if !ok {
		var err error
		vg, err = s.nc.GetVarGetter(variable)
		if err != nil {
			return nil
		}
	}
	v, ok := vg.Attributes().Get(key)
	if !ok {
		return nil
	}
	return v
}

// Next reads up to n records into a fresh chunk. It returns io.EOF once
// all points have been read.
func (s *Source) Next(n int) (*point.Chunk, error) {
	if s.pos >= s.count {
		return nil, io.EOF
	}
	begin := s.pos
	limit := begin + int64(n)
	if limit > s.count {
		limit = s.count
	}
	chunk := point.NewChunk(s.fields, int(limit-begin))
	for _, name := range s.fields {
		col, err := s.readWindow(name, begin, limit)
		if err != nil {
			return nil, err
		}
		chunk.SetColumn(name, col)
	}
	s.pos = limit
	return chunk, nil
}

// readWindow reads records [begin, limit) of one variable into a float64
// column. Classic files read through the cdf strider, which supports
// ranged reads of record variables; other formats fall back to GetSlice.
func (s *Source) readWindow(name string, begin, limit int64) ([]float64, error) {
	var v any
	if s.cf != nil {
		buf := s.cf.Header.ZeroValue(name, int(limit-begin))
		if buf == nil {
			return nil, fmt.Errorf("ncpoint: no variable %s", name)
		}
		r := s.cf.Reader(name, []int{int(begin)}, []int{int(limit)})
		if _, err := r.Read(buf); err != nil && err != io.EOF {
			return nil, fmt.Errorf("ncpoint: reading %s [%d:%d]: %w", name, begin, limit, err)
		}
		v = buf
	} else {
		var err error
		if v, err = s.getters[name].GetSlice(begin, limit); err != nil {
			return nil, fmt.Errorf("ncpoint: reading %s [%d:%d]: %w", name, begin, limit, err)
		}
	}
	col, err := toFloat64(v)
	if err != nil {
		return nil, fmt.Errorf("ncpoint: variable %s: %w", name, err)
	}
	return col, nil
}

// Reduce applies fn to every value of one variable in bounded-size windows
// without materializing the full column.
func (s *Source) Reduce(variable string, window int, fn func([]float64)) error {
	if _, ok := s.getters[variable]; !ok {
		return fmt.Errorf("ncpoint: no variable %s", variable)
	}
	for begin := int64(0); begin < s.count; begin += int64(window) {
		limit := begin + int64(window)
		if limit > s.count {
			limit = s.count
		}
		col, err := s.readWindow(variable, begin, limit)
		if err != nil {
			return err
		}
		fn(col)
	}
	return nil
}

// Close closes the underlying file handles.
func (s *Source) Close() error {
	s.nc.Close()
	if s.ff != nil {
		return s.ff.Close()
	}
	return nil
}

func toFloat64(v any) ([]float64, error) {
	switch vv := v.(type) {
	case []float64:
		return vv, nil
	case []float32:
		out := make([]float64, len(vv))
		for i, x := range vv {
			out[i] = float64(x)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(vv))
		for i, x := range vv {
			out[i] = float64(x)
		}
		return out, nil
	case []int16:
		out := make([]float64, len(vv))
		for i, x := range vv {
			out[i] = float64(x)
		}
		return out, nil
	case []int8:
		out := make([]float64, len(vv))
		for i, x := range vv {
			out[i] = float64(x)
		}
		return out, nil
	case []uint8:
		out := make([]float64, len(vv))
		for i, x := range vv {
			out[i] = float64(x)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}
