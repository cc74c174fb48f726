package schema

// Default returns the built-in registry. The variable set, synonyms, and
// attribute templates follow the CF/ACDD conventions for point data: angular
// coordinates in degrees with axis attributes, planar scanner coordinates in
// meters, 16-bit color channels, and GPS epoch time.
func Default() *Registry {
	r, err := NewRegistry([]*VariableSpec{
		{
			Name:     "longitude",
			DType:    Float32,
			Synonyms: []string{"longitude", "lon", "long", "lng"},
			Attributes: []Attr{
				{"units", "degrees_east"},
				{"long_name", "longitude"},
				{"standard_name", "longitude"},
				{"coverage_content_type", "coordinate"},
				{"axis", "X"},
				{"valid_range", []float64{-180, 180}},
			},
		},
		{
			Name:     "latitude",
			DType:    Float32,
			Synonyms: []string{"latitude", "lat"},
			Attributes: []Attr{
				{"units", "degrees_north"},
				{"long_name", "latitude"},
				{"standard_name", "latitude"},
				{"coverage_content_type", "coordinate"},
				{"axis", "Y"},
				{"valid_range", []float64{-90, 90}},
			},
		},
		{
			Name:     "altitude",
			DType:    Float32,
			Synonyms: []string{"altitude", "alt", "elev", "elevation", "height"},
			Attributes: []Attr{
				{"units", "meters"},
				{"long_name", "geometric height above geoid"},
				{"standard_name", "altitude"},
				{"coverage_content_type", "coordinate"},
				{"positive", "up"},
				{"axis", "Z"},
				{"valid_range", []float64{-10000, 10000}},
			},
		},
		{
			Name:     "x",
			DType:    Float64,
			Synonyms: []string{"x", "easting"},
			Attributes: []Attr{
				{"units", "meters"},
				{"long_name", "X coordinate"},
				{"coverage_content_type", "coordinate"},
			},
		},
		{
			Name:     "y",
			DType:    Float64,
			Synonyms: []string{"y", "northing"},
			Attributes: []Attr{
				{"units", "meters"},
				{"long_name", "Y coordinate"},
				{"coverage_content_type", "coordinate"},
			},
		},
		{
			Name:     "z",
			DType:    Float64,
			Synonyms: []string{"z"},
			Attributes: []Attr{
				{"units", "meters"},
				{"long_name", "Z coordinate"},
				{"coverage_content_type", "coordinate"},
			},
		},
		{
			Name:     "red",
			DType:    UInt16,
			Synonyms: []string{"red", "r"},
			Attributes: []Attr{
				{"units", "1"},
				{"long_name", "red channel"},
				{"coverage_content_type", "physicalMeasurement"},
			},
		},
		{
			Name:     "green",
			DType:    UInt16,
			Synonyms: []string{"green", "g"},
			Attributes: []Attr{
				{"units", "1"},
				{"long_name", "green channel"},
				{"coverage_content_type", "physicalMeasurement"},
			},
		},
		{
			Name:     "blue",
			DType:    UInt16,
			Synonyms: []string{"blue", "b"},
			Attributes: []Attr{
				{"units", "1"},
				{"long_name", "blue channel"},
				{"coverage_content_type", "physicalMeasurement"},
			},
		},
		{
			Name:     "intensity",
			DType:    UInt16,
			Synonyms: []string{"intensity", "amplitude", "reflectance"},
			Attributes: []Attr{
				{"units", "1"},
				{"long_name", "return signal intensity"},
				{"coverage_content_type", "physicalMeasurement"},
			},
		},
		{
			Name:     "time",
			DType:    Float64,
			Synonyms: []string{"time", "gps_time", "timestamp", "epoch"},
			Attributes: []Attr{
				{"units", "seconds since 1970-01-01T00:00:00Z"},
				{"long_name", "time"},
				{"standard_name", "time"},
				{"coverage_content_type", "coordinate"},
			},
		},
	})
	if err != nil {
		panic(err) // the built-in table is validated by tests
	}
	return r
}
