package las

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/point"
)

func colorChunk(t *testing.T, rows [][]float64) *point.Chunk {
	t.Helper()
	fields := []string{"x", "y", "z", "intensity", "gps_time", "red", "green", "blue"}
	c := point.NewChunk(fields, len(rows))
	for _, row := range rows {
		require.NoError(t, c.Append(row...))
	}
	return c
}

func TestRoundTripFormat3(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloud.las")
	cfg := WriterConfig{Version: "1.2", PointFormat: 3, Scale: [3]float64{0.001, 0.001, 0.001}}

	w, err := NewWriter(path, cfg, "")
	require.NoError(t, err)
	require.NoError(t, w.Append(colorChunk(t, [][]float64{
		{500000.001, 7650000.002, 12.003, 100, 1.7e9, 1000, 2000, 3000},
		{500010.5, 7650020.25, -3.125, 65535, 1.7e9 + 1, 0, 65535, 128},
	})))
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{"x", "y", "z", "intensity", "gps_time", "red", "green", "blue"}, r.Fields())
	count, known := r.Count()
	assert.True(t, known)
	assert.Equal(t, int64(2), count)

	c, err := r.Next(10)
	require.NoError(t, err)
	assert.InDelta(t, 500000.001, c.Column("x")[0], 0.0005)
	assert.InDelta(t, 7650020.25, c.Column("y")[1], 0.0005)
	assert.InDelta(t, -3.125, c.Column("z")[1], 0.0005)
	assert.Equal(t, []float64{100, 65535}, c.Column("intensity"))
	assert.InDelta(t, 1.7e9, c.Column("gps_time")[0], 1e-6)
	assert.Equal(t, []float64{1000, 0}, c.Column("red"))
	assert.Equal(t, []float64{3000, 128}, c.Column("blue"))

	_, err = r.Next(1)
	assert.Equal(t, io.EOF, err)
}

func TestRoundTripFormat0(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloud.las")
	w, err := NewWriter(path, WriterConfig{PointFormat: 0}, "")
	require.NoError(t, err)

	c := point.NewChunk([]string{"x", "y", "z"}, 2)
	require.NoError(t, c.Append(1.001, 2.002, 3.003))
	require.NoError(t, c.Append(-1.5, -2.5, -3.5))
	require.NoError(t, w.Append(c))
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{"x", "y", "z", "intensity"}, r.Fields())
	got, err := r.Next(2)
	require.NoError(t, err)
	assert.InDelta(t, 1.001, got.Column("x")[0], 0.0005)
	assert.InDelta(t, -3.5, got.Column("z")[1], 0.0005)
	assert.Equal(t, []float64{0, 0}, got.Column("intensity"), "absent columns are zero filled")
}

func TestWKTRecordRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloud.las")
	wkt := `PROJCS["WGS 84 / UTM zone 33N"]`

	w, err := NewWriter(path, WriterConfig{PointFormat: 1, Version: "1.4"}, wkt)
	require.NoError(t, err)

	c := point.NewChunk([]string{"x", "y", "z", "gps_time"}, 1)
	require.NoError(t, c.Append(10, 20, 30, 1.7e9))
	require.NoError(t, w.Append(c))
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	require.Len(t, r.Metadata(), 1)
	assert.Equal(t, wkt, r.Metadata()[0])
	count, _ := r.Count()
	assert.Equal(t, int64(1), count)
}

func TestHeaderBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloud.las")
	w, err := NewWriter(path, WriterConfig{PointFormat: 0}, "")
	require.NoError(t, err)

	c := point.NewChunk([]string{"x", "y", "z"}, 3)
	require.NoError(t, c.Append(10, 200, -5))
	require.NoError(t, c.Append(30, 100, 15))
	require.NoError(t, c.Append(20, 300, 0))
	require.NoError(t, w.Append(c))
	require.NoError(t, w.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	le := binary.LittleEndian
	readF64 := func(off int) float64 {
		return math.Float64frombits(le.Uint64(b[off:]))
	}
	assert.Equal(t, 10.0, readF64(155))  // x offset
	assert.Equal(t, 200.0, readF64(163)) // y offset
	assert.Equal(t, -5.0, readF64(171))  // z offset
	assert.InDelta(t, 30.0, readF64(179), 0.0005)  // max x
	assert.InDelta(t, 10.0, readF64(187), 0.0005)  // min x
	assert.InDelta(t, 300.0, readF64(195), 0.0005) // max y
	assert.InDelta(t, 100.0, readF64(203), 0.0005) // min y
	assert.InDelta(t, 15.0, readF64(211), 0.0005)  // max z
	assert.InDelta(t, -5.0, readF64(219), 0.0005)  // min z
	assert.Equal(t, uint32(3), le.Uint32(b[107:]))
}

func TestOpenRejectsCompressed(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain.las")
	w, err := NewWriter(plain, WriterConfig{PointFormat: 0}, "")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	b, err := os.ReadFile(plain)
	require.NoError(t, err)
	b[104] |= 0x80 // compression flag set by LAZ encoders
	compressed := filepath.Join(dir, "cloud.laz")
	require.NoError(t, os.WriteFile(compressed, b, 0o644))

	_, err = Open(compressed)
	assert.ErrorIs(t, err, ErrCompressed)
}

func TestWriterConfigValidation(t *testing.T) {
	dir := t.TempDir()
	_, err := NewWriter(filepath.Join(dir, "bad.las"), WriterConfig{PointFormat: 9}, "")
	assert.Error(t, err)

	_, err = NewWriter(filepath.Join(dir, "bad2.las"), WriterConfig{Version: "2.0", PointFormat: 0}, "")
	assert.Error(t, err)
}
