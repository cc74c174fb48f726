package cmd

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/pipeline"
)

var (
	reverseOutput string
	reverseFormat string
	reverseConfig string
)

func init() {
	rootCmd.AddCommand(toPointCloudCmd)
	f := toPointCloudCmd.Flags()
	f.StringVarP(&reverseOutput, "output", "o", "",
		"Output point-cloud path. Defaults to the input path with the format's extension.")
	f.StringVar(&reverseFormat, "format", "",
		"Output format, ply or las. Defaults to the output extension.")
	f.StringVar(&reverseConfig, "config", "",
		"YAML file with variable mappings and LAS packing parameters.")
	f.IntVar(&chunkSize, "chunk-size", pipeline.DefaultChunkSize,
		"Number of points read and written per iteration.")
}

var toPointCloudCmd = &cobra.Command{
	Use:   "topointcloud <input.nc>",
	Short: "Convert a CF point NetCDF dataset back to a point-cloud file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := &pipeline.ReverseConfig{}
		if reverseConfig != "" {
			var err error
			if cfg, err = pipeline.LoadReverseConfig(reverseConfig); err != nil {
				return err
			}
		}
		if reverseFormat != "" {
			cfg.Format = reverseFormat
		}
		out := reverseOutput
		if out == "" {
			format := cfg.Format
			if format == "" {
				format = "ply"
			}
			in := args[0]
			out = strings.TrimSuffix(in, filepath.Ext(in)) + "." + format
		}
		opts := pipeline.Options{Logger: logger, ChunkSize: chunkSize}
		return pipeline.ToPointCloud(opts, cfg, args[0], out)
	},
}
