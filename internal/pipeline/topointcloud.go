package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"

	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/las"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/ncpoint"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/ply"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/point"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/schema"
)

// ReverseConfig drives a NetCDF to point-cloud conversion: the output
// format, an optional variable-to-field re-mapping, and LAS packing
// parameters.
type ReverseConfig struct {
	// Format is ply or las. Empty means infer from the output extension.
	Format string `yaml:"format"`
	// Mappings renames NetCDF variables to output field names. Variables
	// not listed keep their default name.
	Mappings map[string]string `yaml:"mappings"`
	// LAS holds version, point format, and fixed-point scale factors.
	LAS las.WriterConfig `yaml:"las"`
}

// LoadReverseConfig reads a ReverseConfig from a YAML file.
func LoadReverseConfig(path string) (*ReverseConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: reading reverse config: %w", err)
	}
	cfg := &ReverseConfig{}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("pipeline: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// fieldPlan binds one NetCDF variable to one output field.
type fieldPlan struct {
	Var   string
	Field string
}

// ToPointCloud converts a CF point NetCDF dataset back into a point-cloud
// file. Variable re-mapping is configuration driven; coordinate variables
// default onto x/y/z, and colors and timestamps are repacked to what the
// target format expects.
func ToPointCloud(opts Options, cfg *ReverseConfig, input, output string) error {
	o := opts.withDefaults()
	logger := o.Logger.With("input", filepath.Base(input))
	if cfg == nil {
		cfg = &ReverseConfig{}
	}
	format := strings.ToLower(cfg.Format)
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(output)), ".")
	}
	if format == "laz" {
		return las.ErrCompressed
	}
	if format != "ply" && format != "las" {
		return fmt.Errorf("pipeline: no encoder for %s files", format)
	}

	src, err := ncpoint.OpenSource(input)
	if err != nil {
		return err
	}
	defer src.Close()

	plan := planFields(logger, src.Fields(), cfg.Mappings, format)
	coerce, err := timeCoercion(src, plan)
	if err != nil {
		return err
	}
	colorMax, err := maxColorValue(src, plan, o.ChunkSize)
	if err != nil {
		return err
	}

	switch format {
	case "las":
		return writeLAS(o, logger, src, plan, cfg, colorMax, coerce, output)
	default:
		return writePLY(o, logger, src, plan, colorMax, coerce, input, output)
	}
}

// planFields decides the output field name for every point variable.
// Geographic coordinate variables fall back onto the scanner axes, and
// the time variable takes the LAS record name when writing LAS.
func planFields(logger *slog.Logger, vars []string, mappings map[string]string, format string) []fieldPlan {
	defaults := map[string]string{"longitude": "x", "latitude": "y", "altitude": "z"}
	if format == "las" {
		defaults["time"] = "gps_time"
	}
	var plan []fieldPlan
	used := map[string]bool{}
	for _, v := range vars {
		out := mappings[v]
		if out == "" {
			out = defaults[v]
		}
		if out == "" {
			out = v
		}
		if used[out] {
			logger.Warn("output field already taken, dropping variable", "variable", v, "field", out)
			continue
		}
		used[out] = true
		plan = append(plan, fieldPlan{Var: v, Field: out})
	}
	return plan
}

func planned(plan []fieldPlan, field string) (fieldPlan, bool) {
	for _, p := range plan {
		if p.Field == field {
			return p, true
		}
	}
	return fieldPlan{}, false
}

// timeCoercion builds a per-value conversion from a CF time unit (for
// example "days since 2020-01-01") to epoch seconds. It returns nil when
// the dataset has no time variable or the values are epoch seconds
// already.
func timeCoercion(src *ncpoint.Source, plan []fieldPlan) (func([]float64), error) {
	var timeVar string
	for _, p := range plan {
		if p.Field == "gps_time" || p.Field == "time" {
			timeVar = p.Var
			break
		}
	}
	if timeVar == "" {
		return nil, nil
	}
	units, _ := src.VarAttribute(timeVar, "units").(string)
	if units == "" {
		return nil, nil
	}
	unit, base, ok := strings.Cut(units, " since ")
	if !ok {
		return nil, nil
	}
	var factor float64
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "seconds", "second", "s":
		factor = 1
	case "minutes", "minute":
		factor = 60
	case "hours", "hour":
		factor = 3600
	case "days", "day":
		factor = 86400
	default:
		return nil, fmt.Errorf("pipeline: unsupported time unit %q", units)
	}
	base = strings.TrimSpace(base)
	var epoch time.Time
	var err error
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339, "2006-01-02"} {
		if epoch, err = time.Parse(layout, base); err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("pipeline: unparseable time epoch in %q", units)
	}
	offset := float64(epoch.Unix())
	if factor == 1 && offset == 0 {
		return nil, nil
	}
	return func(col []float64) {
		for i := range col {
			col[i] = col[i]*factor + offset
		}
	}, nil
}

// maxColorValue scans the color variables ahead of the chunk loop so the
// output color depth (8 or 16 bit) is decided before any record is
// written. The scan is windowed; nothing is buffered.
func maxColorValue(src *ncpoint.Source, plan []fieldPlan, window int) (float64, error) {
	max := 0.0
	found := false
	for _, field := range []string{"red", "green", "blue"} {
		p, ok := planned(plan, field)
		if !ok {
			continue
		}
		found = true
		err := src.Reduce(p.Var, window, func(col []float64) {
			if len(col) > 0 {
				if m := floats.Max(col); m > max {
					max = m
				}
			}
		})
		if err != nil {
			return 0, err
		}
	}
	if !found {
		return 0, nil
	}
	return max, nil
}

func scaleColumn(col []float64, factor float64) {
	for i := range col {
		col[i] *= factor
	}
}

// applyPlan renames a chunk's columns to their output field names and
// drops variables the plan does not carry.
func applyPlan(chunk *point.Chunk, plan []fieldPlan) {
	keep := map[string]bool{}
	for _, p := range plan {
		keep[p.Var] = true
	}
	for _, f := range append([]string(nil), chunk.Fields()...) {
		if !keep[f] {
			chunk.Drop(f)
		}
	}
	for _, p := range plan {
		chunk.Rename(p.Var, p.Field)
	}
}

func writeLAS(o Options, logger *slog.Logger, src *ncpoint.Source, plan []fieldPlan, cfg *ReverseConfig, colorMax float64, coerce func([]float64), output string) error {
	for _, axis := range []string{"x", "y", "z"} {
		if _, ok := planned(plan, axis); !ok {
			return fmt.Errorf("pipeline: dataset maps no variable onto the %s coordinate", axis)
		}
	}
	wkt, _ := src.VarAttribute(ncpoint.CRSVarName, "spatial_ref").(string)
	sink, err := las.NewWriter(output, cfg.LAS, wkt)
	if err != nil {
		return err
	}
	// Stored 8-bit colors widen to the 16-bit LAS color range.
	colorScale := 0.0
	if colorMax > 0 && colorMax <= 255 {
		colorScale = 257
	}
	for {
		chunk, err := src.Next(o.ChunkSize)
		if err == io.EOF {
			break
		}
		if err != nil {
			sink.Close()
			return err
		}
		applyPlan(chunk, plan)
		if coerce != nil {
			coerce(chunk.Column("gps_time"))
		}
		if colorScale > 0 {
			for _, f := range []string{"red", "green", "blue"} {
				if col := chunk.Column(f); col != nil {
					scaleColumn(col, colorScale)
				}
			}
		}
		if err := sink.Append(chunk); err != nil {
			sink.Close()
			return err
		}
	}
	if err := sink.Close(); err != nil {
		return err
	}
	logger.Info("wrote LAS file", "output", output)
	return nil
}

// plyFieldOrder is the property order viewers conventionally expect.
var plyFieldOrder = []string{"x", "y", "z", "nx", "ny", "nz", "red", "green", "blue"}

func writePLY(o Options, logger *slog.Logger, src *ncpoint.Source, plan []fieldPlan, colorMax float64, coerce func([]float64), input, output string) error {
	count, ok := src.Count()
	if !ok {
		return fmt.Errorf("pipeline: %s has no known record count", input)
	}
	ordered := orderForPLY(plan)
	// Stored 16-bit colors narrow to the 8-bit range viewers expect.
	colorScale := 0.0
	if colorMax > 255 {
		colorScale = 1.0 / 257
	}
	props := make([]ply.Property, len(ordered))
	for i, p := range ordered {
		switch p.Field {
		case "red", "green", "blue":
			props[i] = ply.Property{Name: p.Field, Type: "uchar"}
		default:
			props[i] = ply.Property{Name: p.Field, Type: plyType(o.Registry, p)}
		}
	}
	sink, err := ply.NewWriter(output, props, count, provenanceComments(src, input))
	if err != nil {
		return err
	}
	for {
		chunk, err := src.Next(o.ChunkSize)
		if err == io.EOF {
			break
		}
		if err != nil {
			sink.Close()
			return err
		}
		applyPlan(chunk, plan)
		if coerce != nil {
			coerce(chunk.Column("time"))
		}
		if colorScale > 0 {
			for _, f := range []string{"red", "green", "blue"} {
				if col := chunk.Column(f); col != nil {
					scaleColumn(col, colorScale)
				}
			}
		}
		if err := sink.Append(chunk); err != nil {
			sink.Close()
			return err
		}
	}
	if err := sink.Close(); err != nil {
		return err
	}
	logger.Info("wrote PLY file", "output", output, "points", count)
	return nil
}

// orderForPLY sorts the plan into the conventional PLY property order,
// remaining fields after in plan order.
func orderForPLY(plan []fieldPlan) []fieldPlan {
	var ordered []fieldPlan
	taken := map[string]bool{}
	for _, field := range plyFieldOrder {
		if p, ok := planned(plan, field); ok {
			ordered = append(ordered, p)
			taken[field] = true
		}
	}
	for _, p := range plan {
		if !taken[p.Field] {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

// plyType picks the PLY scalar type for one output field. Coordinates are
// always double precision; everything else follows the registry dtype.
func plyType(reg *schema.Registry, p fieldPlan) string {
	switch p.Field {
	case "x", "y", "z":
		return "double"
	}
	if spec := reg.Lookup(p.Var); spec != nil {
		switch spec.DType {
		case schema.Float64:
			return "double"
		case schema.Float32:
			return "float"
		case schema.UInt16:
			return "ushort"
		case schema.UInt8:
			return "uchar"
		case schema.Int16:
			return "short"
		case schema.Int32:
			return "int"
		case schema.Int8:
			return "char"
		}
	}
	return "float"
}

// provenanceComments composes the header comments carried over into a
// PLY output: conversion provenance and the source's geospatial extent.
func provenanceComments(src *ncpoint.Source, input string) []string {
	crsInfo, _ := src.VarAttribute(ncpoint.CRSVarName, "spatial_ref").(string)
	if crsInfo == "" {
		crsInfo, _ = src.VarAttribute(ncpoint.CRSVarName, "proj4text").(string)
	}
	comments := []string{fmt.Sprintf("processing_time_epoch=%d; crs_info=%s; source_file=%s",
		time.Now().Unix(), crsInfo, filepath.Base(input))}
	var ext []string
	for _, key := range []string{
		"geospatial_lon_min", "geospatial_lon_max",
		"geospatial_lat_min", "geospatial_lat_max",
		"geospatial_vertical_min", "geospatial_vertical_max",
	} {
		v := src.Attribute(key)
		if v == nil {
			ext = nil
			break
		}
		ext = append(ext, fmt.Sprintf("%v", v))
	}
	if len(ext) == 6 {
		comments = append(comments, fmt.Sprintf("BBox = [%s]", strings.Join(ext, ", ")))
	}
	return comments
}
