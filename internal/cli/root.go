// Package cli implements the cognix command line: loading datasets,
// asking questions, serving the HTTP API, and inspecting stored artifacts.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string
	Schema   string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the cognix CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cognix",
		Short: "Cognix - natural-language analytics",
		Long:  "Ask free-text questions of a loaded dataset and get back a compiled query, a result table, a chart spec, and a narrative.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			configureLogging(opts.Verbose)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "cognix.db", "path to SQLite database")
	cmd.PersistentFlags().StringVar(&opts.Schema, "schema", "", "path to schema definition (.cue file or directory)")

	cmd.AddCommand(NewLoadCommand(opts))
	cmd.AddCommand(NewAskCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewArtifactsCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))

	return cmd
}

func configureLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
