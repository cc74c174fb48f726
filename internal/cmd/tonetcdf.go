package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/acdd"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/crs"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/mapping"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/pipeline"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/schema"
)

var (
	outputPath     string
	attributesArg  string
	crsConfigPath  string
	registryPath   string
	xcoord, ycoord string
	zcoord         string
	chunkSize      int
	strict         bool
)

func init() {
	rootCmd.AddCommand(toNetCDFCmd)
	f := toNetCDFCmd.Flags()
	f.StringVarP(&outputPath, "output", "o", "",
		"Output NetCDF path. Defaults to the input path with a .nc extension.")
	f.StringVar(&attributesArg, "attributes", "",
		"Global attributes: a YAML or CSV file path, or an inline JSON object.")
	f.StringVar(&crsConfigPath, "crs-config", "",
		"YAML file declaring the input's coordinate reference system.")
	f.StringVar(&registryPath, "registry", "",
		"YAML file overriding the built-in variable registry.")
	f.StringVar(&xcoord, "xcoord", "",
		"Axis role of the scanner X coordinate (latitude, longitude, or altitude).")
	f.StringVar(&ycoord, "ycoord", "", "Axis role of the scanner Y coordinate.")
	f.StringVar(&zcoord, "zcoord", "", "Axis role of the scanner Z coordinate.")
	f.IntVar(&chunkSize, "chunk-size", pipeline.DefaultChunkSize,
		"Number of points read and written per iteration.")
	f.BoolVar(&strict, "strict", false,
		"Also derive the featureType and Conventions attributes, overriding user values.")
}

var toNetCDFCmd = &cobra.Command{
	Use:   "tonetcdf <input>",
	Short: "Convert a point-cloud file to a CF point NetCDF dataset.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := buildOptions()
		if err != nil {
			return err
		}
		out := outputPath
		if out == "" {
			in := args[0]
			out = strings.TrimSuffix(in, filepath.Ext(in)) + ".nc"
		}
		return pipeline.ToNetCDF(opts, args[0], out)
	},
}

func buildOptions() (pipeline.Options, error) {
	opts := pipeline.Options{
		Logger:    logger,
		ChunkSize: chunkSize,
		Strict:    strict,
	}
	var err error
	if registryPath != "" {
		if opts.Registry, err = schema.LoadRegistry(registryPath); err != nil {
			return opts, err
		}
	}
	if opts.Axes, err = mapping.ParseAxisOverride(xcoord, ycoord, zcoord); err != nil {
		return opts, err
	}
	if crsConfigPath != "" {
		if opts.CRS, err = crs.LoadConfig(crsConfigPath); err != nil {
			return opts, err
		}
	}
	if attributesArg != "" {
		if opts.Attributes, err = loadAttributes(attributesArg); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// loadAttributes accepts an inline JSON object or a YAML/CSV file path.
func loadAttributes(arg string) (*acdd.Set, error) {
	if strings.HasPrefix(strings.TrimSpace(arg), "{") {
		return acdd.FromJSON(arg)
	}
	switch strings.ToLower(filepath.Ext(arg)) {
	case ".yaml", ".yml":
		return acdd.FromYAMLFile(arg)
	case ".csv":
		return acdd.FromCSVFile(arg)
	default:
		return nil, fmt.Errorf("cannot load attributes from %s: want inline JSON or a .yaml/.csv file", arg)
	}
}
