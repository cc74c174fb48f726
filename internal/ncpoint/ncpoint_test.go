package ncpoint

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/acdd"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/crs"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/point"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/schema"
)

func testVars() []VarDef {
	return []VarDef{
		{Name: "longitude", DType: schema.Float32, Attrs: []schema.Attr{
			{Name: "units", Value: "degrees_east"},
		}},
		{Name: "latitude", DType: schema.Float32, Attrs: []schema.Attr{
			{Name: "units", Value: "degrees_north"},
		}},
		{Name: "intensity", DType: schema.UInt16},
	}
}

func appendRecords(t *testing.T, w *Writer, rows [][]float64) {
	t.Helper()
	c := point.NewChunk([]string{"longitude", "latitude", "intensity"}, len(rows))
	for _, row := range rows {
		require.NoError(t, c.Append(row...))
	}
	require.NoError(t, w.Append(c))
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.nc")

	w, err := NewWriter(path, testVars(), crs.WGS84(), 0)
	require.NoError(t, err)
	appendRecords(t, w, [][]float64{
		{15.5, 69.25, 100},
		{15.75, 69.5, 65535},
	})
	appendRecords(t, w, [][]float64{
		{16.0, 69.0, 0},
	})
	assert.Equal(t, 3, w.Len())

	attrs := &acdd.Set{}
	attrs.Set("title", "chunked survey")
	attrs.Set("geospatial_lat_min", 69.0)
	require.NoError(t, w.Finalize(attrs))

	src, err := OpenSource(path)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, []string{"longitude", "latitude", "intensity"}, src.Fields())
	count, known := src.Count()
	assert.True(t, known)
	assert.Equal(t, int64(3), count)

	c, err := src.Next(10)
	require.NoError(t, err)
	assert.Equal(t, []float64{15.5, 15.75, 16.0}, c.Column("longitude"))
	assert.Equal(t, []float64{100, 65535, 0}, c.Column("intensity"))

	_, err = src.Next(1)
	assert.Equal(t, io.EOF, err)

	assert.Equal(t, "chunked survey", src.Attribute("title"))
	assert.Equal(t, "degrees_east", src.VarAttribute("longitude", "units"))
	assert.Equal(t, CRSVarName, src.VarAttribute("longitude", "grid_mapping"))
	assert.Equal(t, "EPSG:4326", src.VarAttribute(CRSVarName, "spatial_ref"))
	assert.Contains(t, src.Metadata(), "title=chunked survey")
}

func TestCRSVariable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.nc")
	desc, err := crs.FromAuthority("EPSG", 32633)
	require.NoError(t, err)

	w, err := NewWriter(path, testVars(), desc, 0)
	require.NoError(t, err)
	appendRecords(t, w, [][]float64{{1, 2, 3}})
	require.NoError(t, w.Finalize(&acdd.Set{}))

	src, err := OpenSource(path)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, "EPSG:32633", src.VarAttribute(CRSVarName, "spatial_ref"))
	assert.Equal(t, CRSVarName, src.VarAttribute("longitude", "grid_mapping"))
}

func TestChunkedCopyOnFinalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.nc")

	// copyBatch of 2 forces several copy windows for 5 records.
	w, err := NewWriter(path, testVars(), crs.WGS84(), 2)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		appendRecords(t, w, [][]float64{{float64(i), float64(i), float64(i)}})
	}
	require.NoError(t, w.Finalize(&acdd.Set{}))

	src, err := OpenSource(path)
	require.NoError(t, err)
	defer src.Close()

	c, err := src.Next(10)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, c.Column("intensity"))
}

func TestWindowedReads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.nc")
	w, err := NewWriter(path, testVars(), crs.WGS84(), 0)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		appendRecords(t, w, [][]float64{{float64(i), float64(i), float64(i * 10)}})
	}
	require.NoError(t, w.Finalize(&acdd.Set{}))

	src, err := OpenSource(path)
	require.NoError(t, err)
	defer src.Close()

	// Reads past the first window start mid-variable.
	var got []float64
	for {
		c, err := src.Next(2)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, c.Column("intensity")...)
	}
	assert.Equal(t, []float64{0, 10, 20, 30, 40}, got)
}

func TestReduce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.nc")
	w, err := NewWriter(path, testVars(), crs.WGS84(), 0)
	require.NoError(t, err)
	appendRecords(t, w, [][]float64{
		{1, 1, 10}, {2, 2, 300}, {3, 3, 42},
	})
	require.NoError(t, w.Finalize(&acdd.Set{}))

	src, err := OpenSource(path)
	require.NoError(t, err)
	defer src.Close()

	max := 0.0
	windows := 0
	require.NoError(t, src.Reduce("intensity", 2, func(col []float64) {
		windows++
		for _, v := range col {
			if v > max {
				max = v
			}
		}
	}))
	assert.Equal(t, 300.0, max)
	assert.Equal(t, 2, windows)
}

func TestAppendMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.nc")
	w, err := NewWriter(path, testVars(), crs.WGS84(), 0)
	require.NoError(t, err)
	defer w.Close()

	c := point.NewChunk([]string{"longitude"}, 1)
	require.NoError(t, c.Append(1))
	assert.Error(t, w.Append(c))
}
