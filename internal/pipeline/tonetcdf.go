package pipeline

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/ctessum/geom/proj"

	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/acdd"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/crs"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/mapping"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/ncpoint"
)

// ToNetCDF converts a point-cloud file into a CF point NetCDF dataset.
// Field, axis, and CRS resolution all run before the output file is
// created; once streaming starts, a failure leaves the partial file on
// disk.
func ToNetCDF(opts Options, input, output string) error {
	o := opts.withDefaults()
	logger := o.Logger.With("input", filepath.Base(input))

	if o.Attributes != nil {
		if err := o.Attributes.Validate(); err != nil {
			return fmt.Errorf("pipeline: global attribute config: %w", err)
		}
	}

	src, err := OpenSource(input)
	if err != nil {
		return err
	}
	defer src.Close()

	res := mapping.ResolveNames(logger, o.Registry, src.Fields())
	hasLatLon := res.HasGeographic() || o.Axes != nil
	desc, err := crs.Resolve(o.CRS, src.Metadata(), hasLatLon)
	if err != nil {
		return err
	}
	if err := mapping.ResolveAxes(o.Registry, res, o.Axes, desc); err != nil {
		return err
	}
	coords, vars := splitCoordinates(res)
	if len(coords) == 0 {
		return errors.New("pipeline: input has no coordinate fields after resolution")
	}
	logger.Info("resolved input schema",
		"crs", desc.String(), "coordinates", len(coords), "variables", len(vars), "dropped", len(res.Dropped))

	// Planar jobs reproject per chunk so the geospatial extent attributes
	// are still geographic.
	var toWGS84 proj.Transformer
	if !res.HasGeographic() {
		toWGS84, err = desc.ToWGS84()
		if err != nil {
			return fmt.Errorf("pipeline: %s to WGS84: %w", desc, err)
		}
	}
	comp := acdd.NewCompositor(logger, o.Attributes, filepath.Base(input), o.Strict, toWGS84)

	sink, err := ncpoint.NewWriter(output, append(coords, vars...), desc, o.ChunkSize)
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
			return fmt.Errorf("pipeline: reading %s: %w", input, err)
		}
		applyResolution(chunk, res)
		if err := comp.Update(chunk); err != nil {
			sink.Close()
			return err
		}
		if err := sink.Append(chunk); err != nil {
			sink.Close()
			return err
		}
	}

	if err := sink.Finalize(comp.Finalize()); err != nil {
		return err
	}
	logger.Info("wrote NetCDF dataset", "output", output, "points", sink.Len())
	return nil
}

// splitCoordinates orders the output variables: coordinate variables first,
// then data variables, each group in input order.
func splitCoordinates(res *mapping.Resolution) (coords, vars []ncpoint.VarDef) {
	for _, f := range res.Fields {
		def := ncpoint.VarDef{Name: f.Canonical, DType: f.Spec.DType, Attrs: f.Spec.Attributes}
		if f.Role != mapping.RoleNone {
			coords = append(coords, def)
		} else {
			vars = append(vars, def)
		}
	}
	return coords, vars
}
