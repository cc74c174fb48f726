package acdd

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/crs"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/point"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func geographicChunk(t *testing.T, lons, lats, alts []float64) *point.Chunk {
	t.Helper()
	c := point.NewChunk([]string{"longitude", "latitude", "altitude"}, len(lons))
	for i := range lons {
		require.NoError(t, c.Append(lons[i], lats[i], alts[i]))
	}
	return c
}

func TestCompositorExtents(t *testing.T) {
	comp := NewCompositor(discard(), nil, "scan.ply", false, nil)

	require.NoError(t, comp.Update(geographicChunk(t,
		[]float64{15.1, 15.3}, []float64{68.9, 69.0}, []float64{10, 40})))
	require.NoError(t, comp.Update(geographicChunk(t,
		[]float64{15.0, 15.2}, []float64{69.1, 68.8}, []float64{-5, 25})))

	out := comp.Finalize()
	assert.Equal(t, 15.0, out.Get("geospatial_lon_min"))
	assert.Equal(t, 15.3, out.Get("geospatial_lon_max"))
	assert.Equal(t, 68.8, out.Get("geospatial_lat_min"))
	assert.Equal(t, 69.1, out.Get("geospatial_lat_max"))
	assert.Equal(t, -5.0, out.Get("geospatial_vertical_min"))
	assert.Equal(t, 40.0, out.Get("geospatial_vertical_max"))
}

func TestCompositorPlanarExtents(t *testing.T) {
	desc, err := crs.FromAuthority("EPSG", 32633)
	require.NoError(t, err)
	tr, err := desc.ToWGS84()
	require.NoError(t, err)

	comp := NewCompositor(discard(), nil, "scan.las", false, tr)

	c := point.NewChunk([]string{"x", "y", "z"}, 2)
	require.NoError(t, c.Append(500000, 7650000, 12))
	require.NoError(t, c.Append(501000, 7651000, 18))
	require.NoError(t, comp.Update(c))

	out := comp.Finalize()
	lonMin, ok := out.Get("geospatial_lon_min").(float64)
	require.True(t, ok)
	latMin, ok := out.Get("geospatial_lat_min").(float64)
	require.True(t, ok)
	assert.InDelta(t, 15.0, lonMin, 0.1)
	assert.InDelta(t, 68.9, latMin, 0.2)
	assert.Equal(t, 12.0, out.Get("geospatial_vertical_min"))
}

func TestCompositorProtectedKeys(t *testing.T) {
	user := &Set{}
	user.Set("date_created", "2000-01-01")
	user.Set("geospatial_lat_min", -89.0)
	user.Set("title", "kept")

	comp := NewCompositor(discard(), user, "scan.ply", false, nil)
	require.NoError(t, comp.Update(geographicChunk(t,
		[]float64{10}, []float64{60}, []float64{0})))
	out := comp.Finalize()

	created, ok := out.Get("date_created").(string)
	require.True(t, ok)
	assert.NotEqual(t, "2000-01-01", created)
	parsed, err := time.Parse("2006-01-02T15:04:05Z", created)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), parsed, time.Minute)

	assert.Equal(t, 60.0, out.Get("geospatial_lat_min"))
	assert.Equal(t, "kept", out.Get("title"))
}

func TestCompositorHistoryAppends(t *testing.T) {
	user := &Set{}
	user.Set("history", "2023-01-01T00:00:00Z: original acquisition")

	comp := NewCompositor(discard(), user, "scan.ply", false, nil)
	out := comp.Finalize()

	history, ok := out.Get("history").(string)
	require.True(t, ok)
	assert.Contains(t, history, "original acquisition")
	assert.Contains(t, history, "converted scan.ply to CF-NetCDF")
	assert.Greater(t, len(history), len("2023-01-01T00:00:00Z: original acquisition"))
}

func TestCompositorConventions(t *testing.T) {
	t.Run("defaults fill missing", func(t *testing.T) {
		comp := NewCompositor(discard(), nil, "scan.ply", false, nil)
		out := comp.Finalize()
		assert.Equal(t, "CF-1.8, ACDD-1.3", out.Get("Conventions"))
		assert.Equal(t, "point", out.Get("featureType"))
	})

	t.Run("permissive keeps user value", func(t *testing.T) {
		user := &Set{}
		user.Set("featureType", "trajectory")
		comp := NewCompositor(discard(), user, "scan.ply", false, nil)
		out := comp.Finalize()
		assert.Equal(t, "trajectory", out.Get("featureType"))
	})

	t.Run("strict overrides user value", func(t *testing.T) {
		user := &Set{}
		user.Set("featureType", "trajectory")
		user.Set("Conventions", "CF-1.0")
		comp := NewCompositor(discard(), user, "scan.ply", true, nil)
		out := comp.Finalize()
		assert.Equal(t, "point", out.Get("featureType"))
		assert.Equal(t, "CF-1.8, ACDD-1.3", out.Get("Conventions"))
	})
}

func TestCompositorNoCoordinates(t *testing.T) {
	comp := NewCompositor(discard(), nil, "scan.csv", false, nil)
	c := point.NewChunk([]string{"intensity"}, 1)
	require.NoError(t, c.Append(42))
	require.NoError(t, comp.Update(c))

	out := comp.Finalize()
	assert.Nil(t, out.Get("geospatial_lat_min"))
	assert.Nil(t, out.Get("geospatial_vertical_min"))
	assert.NotNil(t, out.Get("date_created"))
}
