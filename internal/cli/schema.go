package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "schema",
		Short:         "Show the loaded schema definition",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry(rootOpts)
			if err != nil {
				return err
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}
			if done, err := out.JSON(map[string]any{
				"name":    reg.Name(),
				"table":   reg.Table(),
				"version": reg.Version(),
				"columns": reg.Columns(),
			}); done {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Dataset %q (table %q, version %s)\n", reg.Name(), reg.Table(), reg.Version())
			for _, col := range reg.Columns() {
				fmt.Fprintf(w, "  %-16s %s", col.Name, col.Type)
				if len(col.Domain) > 0 {
					fmt.Fprintf(w, "  [%s]", strings.Join(col.Domain, ", "))
				}
				fmt.Fprintln(w)
			}
			return nil
		},
	}
}
