package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	reg := Default()
	require.NotNil(t, reg)

	for _, name := range []string{
		"longitude", "latitude", "altitude", "x", "y", "z",
		"red", "green", "blue", "intensity", "time",
	} {
		spec := reg.Lookup(name)
		require.NotNil(t, spec, "missing built-in variable %s", name)
		assert.True(t, spec.DType.Valid(), "variable %s has dtype %q", name, spec.DType)
		assert.True(t, spec.Matches(name), "variable %s does not accept its own name", name)
	}
}

func TestMatchesCaseInsensitive(t *testing.T) {
	reg := Default()
	tests := []struct {
		input string
		want  string
	}{
		{"lon", "longitude"},
		{"LON", "longitude"},
		{"Lat", "latitude"},
		{"Elev", "altitude"},
		{"HEIGHT", "altitude"},
		{"gps_time", "time"},
		{"Easting", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			specs := reg.Match(tt.input)
			require.Len(t, specs, 1)
			assert.Equal(t, tt.want, specs[0].Name)
		})
	}
}

func TestMatchReturnsAllInRegistryOrder(t *testing.T) {
	reg, err := NewRegistry([]*VariableSpec{
		{Name: "first", DType: Float32, Synonyms: []string{"val"}},
		{Name: "second", DType: Float32, Synonyms: []string{"val", "other"}},
	})
	require.NoError(t, err)

	specs := reg.Match("val")
	require.Len(t, specs, 2)
	assert.Equal(t, "first", specs[0].Name)
	assert.Equal(t, "second", specs[1].Name)

	assert.Empty(t, reg.Match("missing"))
}

func TestNewRegistryRejectsBadSpecs(t *testing.T) {
	_, err := NewRegistry([]*VariableSpec{
		{Name: "a", DType: Float32, Synonyms: []string{"a"}},
		{Name: "a", DType: Float32, Synonyms: []string{"aa"}},
	})
	assert.Error(t, err, "duplicate canonical name")

	_, err = NewRegistry([]*VariableSpec{
		{Name: "a", DType: "f16", Synonyms: []string{"a"}},
	})
	assert.Error(t, err, "unknown dtype")
}

func TestParseRegistry(t *testing.T) {
	src := `
depth:
  possible_names: [depth, dep]
  dtype: f4
  attributes:
    units: meters
    positive: down
    valid_range: [0, 11000]
classification:
  possible_names: [classification, class]
  dtype: u1
`
	reg, err := parseRegistry([]byte(src))
	require.NoError(t, err)

	specs := reg.Specs()
	require.Len(t, specs, 2)
	assert.Equal(t, "depth", specs[0].Name)
	assert.Equal(t, "classification", specs[1].Name)

	depth := reg.Lookup("depth")
	assert.Equal(t, Float32, depth.DType)
	assert.True(t, depth.Matches("DEP"))
	assert.Equal(t, "meters", depth.Attribute("units"))
	assert.Equal(t, []float64{0, 11000}, depth.Attribute("valid_range"))

	assert.Equal(t, UInt8, reg.Lookup("classification").DType)
}

func TestParseRegistryErrors(t *testing.T) {
	_, err := parseRegistry([]byte(""))
	assert.Error(t, err)

	_, err = parseRegistry([]byte("depth:\n  dtype: f4\n"))
	assert.Error(t, err, "no possible_names")

	_, err = parseRegistry([]byte("- a\n- b\n"))
	assert.Error(t, err, "not a mapping")
}
