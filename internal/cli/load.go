package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cognix/cognix/internal/dataset"
	"github.com/cognix/cognix/internal/schema"
)

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <manifest.yaml>",
		Short: "Load a CSV dataset into the database",
		Long: `Load a dataset described by a YAML manifest. The manifest names the
CSV file and the CUE schema definition; loading replaces any previous
rows of the same dataset.

Example:
  cognix load --db sales.db data/superstore.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runLoad(opts *RootOptions, cmd *cobra.Command, manifestPath string) error {
	manifest, err := dataset.LoadManifest(manifestPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load manifest", err)
	}

	reg, err := schema.LoadFile(manifest.Schema)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load schema", err)
	}

	st, err := openStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	slog.Info("loading dataset", "name", manifest.Name, "csv", manifest.CSV, "schema_version", reg.Version())
	n, err := dataset.LoadCSV(cmd.Context(), st, reg, manifest.CSV)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load dataset", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if done, err := out.JSON(map[string]any{
		"dataset":        manifest.Name,
		"rows":           n,
		"schema_version": reg.Version(),
	}); done {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d rows into %q (schema %s)\n", n, manifest.Name, reg.Version())
	return nil
}
