package cmd

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/acdd"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/crs"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/mapping"
	"github.com/lhmarsden/point-cloud-to-cf-netcdf/internal/pipeline"
)

// batch option columns; every other column becomes a global attribute for
// that row's file.
var batchKnownColumns = []string{
	"input", "output", "xcoord", "ycoord", "zcoord", "crs_config",
}

func init() {
	rootCmd.AddCommand(batchCmd)
}

var batchCmd = &cobra.Command{
	Use:   "batch <jobs.csv>",
	Short: "Run one NetCDF conversion per row of a CSV file.",
	Long: "Run one point-cloud to NetCDF conversion per row of a CSV file.\n" +
		"Columns named input, output, xcoord, ycoord, zcoord, and crs_config\n" +
		"set per-file options; every other column becomes a global attribute\n" +
		"for that file. A failed row is reported and the batch continues.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(args[0])
	},
}

func runBatch(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	rows, err := cr.ReadAll()
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if len(rows) < 2 {
		return fmt.Errorf("%s has no job rows", path)
	}
	header := rows[0]
	failed := 0
	for i, row := range rows[1:] {
		job := map[string]string{}
		for j, col := range header {
			if j < len(row) {
				job[strings.TrimSpace(col)] = strings.TrimSpace(row[j])
			}
		}
		if err := runBatchRow(job, header); err != nil {
			logger.Error("batch row failed", "row", i+2, "input", job["input"], "error", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d batch rows failed", failed, len(rows)-1)
	}
	return nil
}

func runBatchRow(job map[string]string, header []string) error {
	input := job["input"]
	if input == "" {
		return fmt.Errorf("row has no input column")
	}
	opts := pipeline.Options{Logger: logger, ChunkSize: chunkSize}

	var err error
	if opts.Axes, err = mapping.ParseAxisOverride(job["xcoord"], job["ycoord"], job["zcoord"]); err != nil {
		return err
	}
	if p := job["crs_config"]; p != "" {
		if opts.CRS, err = crs.LoadConfig(p); err != nil {
			return err
		}
	}

	known := map[string]bool{}
	for _, c := range batchKnownColumns {
		known[c] = true
	}
	attrs := &acdd.Set{}
	for _, col := range header {
		col = strings.TrimSpace(col)
		if known[col] || job[col] == "" {
			continue
		}
		attrs.Set(col, job[col])
	}
	if len(attrs.Attributes()) > 0 {
		opts.Attributes = attrs
	}

	output := job["output"]
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + ".nc"
	}
	return pipeline.ToNetCDF(opts, input, output)
}
