// Package cmd wires the conversion pipeline into a command line tool.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose bool

	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pointcdf",
	Short: "Convert point clouds to and from CF/ACDD NetCDF datasets.",
	Long: "pointcdf converts point-cloud files (PLY, LAS, delimited text) into\n" +
		"CF-1.8/ACDD-1.3 conformant NetCDF datasets and back, mapping loosely\n" +
		"named input fields onto a canonical variable schema and streaming the\n" +
		"records through in bounded-size chunks.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging.")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
