// Package pipeline orchestrates chunked conversions between point-cloud
// files and CF point NetCDF datasets. It owns the resolve-then-stream
// lifecycle: all schema, axis, and CRS resolution happens before the
// output is created, and bulk data only ever moves through bounded-size
// chunks.
package pipeline

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/acdd"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/crs"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/csvio"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/las"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/mapping"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/ply"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/point"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/schema"
)

// DefaultChunkSize is the number of records pulled per pipeline iteration
// when the caller does not set one.
const DefaultChunkSize = 1_000_000

// Source is a chunk-producing decoder over an open input file.
type Source interface {
	// Fields returns the input's field names in file order.
	Fields() []string
	// Metadata returns header comment or attribute lines that may carry
	// an embedded CRS declaration.
	Metadata() []string
	// Count returns the total record count when the format knows it
	// up front.
	Count() (int64, bool)
	// Next returns the next chunk of up to n records, or io.EOF.
	Next(n int) (*point.Chunk, error)
	Close() error
}

// Options configures one conversion job. The zero value is usable: default
// registry, default chunk size, no axis override, no explicit CRS.
type Options struct {
	Logger     *slog.Logger
	Registry   *schema.Registry
	ChunkSize  int
	Axes       *mapping.AxisOverride
	CRS        *crs.Config
	Attributes *acdd.Set
	Strict     bool
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	if out.Registry == nil {
		out.Registry = schema.Default()
	}
	if out.ChunkSize <= 0 {
		out.ChunkSize = DefaultChunkSize
	}
	return out
}

// OpenSource opens a point-cloud input chosen by file extension.
func OpenSource(path string) (Source, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".ply":
		return ply.Open(path)
	case ".las", ".laz":
		return las.Open(path)
	case ".csv", ".tsv", ".txt", ".xyz":
		return csvio.Open(path)
	default:
		return nil, fmt.Errorf("pipeline: no decoder for %s files", ext)
	}
}

// applyResolution renames one chunk's columns to their canonical names and
// drops unmapped columns. Performed in place.
func applyResolution(chunk *point.Chunk, res *mapping.Resolution) {
	for _, name := range res.Dropped {
		chunk.Drop(name)
	}
	for _, f := range res.Fields {
		chunk.Rename(f.Source, f.Canonical)
	}
}
