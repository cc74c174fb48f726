package acdd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromJSON(t *testing.T) {
	s, err := FromJSON(`{"title": "Survey A", "creator_name": "Jane", "geospatial_lat_min": 59.5}`)
	require.NoError(t, err)

	attrs := s.Attributes()
	require.Len(t, attrs, 3)
	assert.Equal(t, "title", attrs[0].Key)
	assert.Equal(t, "creator_name", attrs[1].Key)
	assert.Equal(t, "Survey A", s.Get("title"))
	assert.Equal(t, 59.5, s.Get("geospatial_lat_min"))
}

func TestFromJSONErrors(t *testing.T) {
	_, err := FromJSON(`["not", "an", "object"]`)
	assert.Error(t, err)

	_, err = FromJSON(`{"nested": {"a": 1}}`)
	assert.Error(t, err)

	s, err := FromJSON(`{"skipped": null, "kept": "v"}`)
	require.NoError(t, err)
	assert.Nil(t, s.Get("skipped"))
	assert.Equal(t, "v", s.Get("kept"))
}

func TestFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attrs.yaml")
	src := "title: Survey B\nsummary: ten million points\nlicense:\nnaming_authority: no\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	s, err := FromYAMLFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Survey B", s.Get("title"))
	assert.Nil(t, s.Get("license"), "empty values are skipped")

	attrs := s.Attributes()
	require.Len(t, attrs, 3)
	assert.Equal(t, "title", attrs[0].Key)
}

func TestFromCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attrs.csv")
	src := "Attribute,value,format,Requirement\n" +
		"title,Survey C,text,Required\n" +
		"geospatial_lat_min,59.5,number,Required\n" +
		"creator_name,,text,Required\n" +
		"comment,nan,text,Optional\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	s, err := FromCSVFile(path)
	require.NoError(t, err)

	assert.Equal(t, "Survey C", s.Get("title"))
	assert.Equal(t, 59.5, s.Get("geospatial_lat_min"))

	attrs := s.Attributes()
	require.Len(t, attrs, 4)
	assert.Equal(t, "creator_name", attrs[2].Key)
	assert.Nil(t, attrs[2].Value, "valueless rows keep only the requirement annotation")
	assert.Equal(t, Required, attrs[2].Requirement)
	assert.Nil(t, attrs[3].Value)
}

func TestFromCSVFileErrors(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "nocol.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,value\ntitle,x\n"), 0o644))
	_, err := FromCSVFile(path)
	assert.Error(t, err, "missing Attribute column")

	path = filepath.Join(dir, "badnum.csv")
	require.NoError(t, os.WriteFile(path, []byte("Attribute,value,format\nlat,abc,number\n"), 0o644))
	_, err = FromCSVFile(path)
	assert.Error(t, err, "non-numeric value with number format")
}

func TestSetPreservesOrder(t *testing.T) {
	s := &Set{}
	s.Set("b", 1.0)
	s.Set("a", 2.0)
	s.Set("b", 3.0)

	attrs := s.Attributes()
	require.Len(t, attrs, 2)
	assert.Equal(t, "b", attrs[0].Key)
	assert.Equal(t, 3.0, attrs[0].Value)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		fill func(*Set)
		ok   bool
	}{
		{"valid", func(s *Set) {
			s.Set("time_coverage_start", "2024-05-01T00:00:00Z")
			s.Set("time_coverage_end", "2024-05-02T00:00:00Z")
			s.Set("geospatial_lat_min", 59.0)
			s.Set("geospatial_lat_max", 60.0)
		}, true},
		{"bad timestamp", func(s *Set) {
			s.Set("time_coverage_start", "01/05/2024")
		}, false},
		{"latitude out of range", func(s *Set) {
			s.Set("geospatial_lat_min", -99.0)
		}, false},
		{"longitude out of range", func(s *Set) {
			s.Set("geospatial_lon_max", 181.0)
		}, false},
		{"min above max", func(s *Set) {
			s.Set("geospatial_lat_min", 60.0)
			s.Set("geospatial_lat_max", 59.0)
		}, false},
		{"time range inverted", func(s *Set) {
			s.Set("time_coverage_start", "2024-05-02")
			s.Set("time_coverage_end", "2024-05-01")
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Set{}
			tt.fill(s)
			err := s.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
