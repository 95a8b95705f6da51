package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cognix/cognix/internal/artifact"
)

// NewArtifactsCommand creates the artifacts command group.
func NewArtifactsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "Inspect stored result bundles",
	}
	cmd.AddCommand(newArtifactsListCommand(rootOpts))
	cmd.AddCommand(newArtifactsShowCommand(rootOpts))
	return cmd
}

func newArtifactsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List stored bundles, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			list, err := artifact.NewCache(st).List(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list artifacts", err)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}
			if done, err := out.JSON(list); done {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No artifacts stored.")
				return nil
			}
			for _, s := range list {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %4d rows  schema %s\n",
					s.Fingerprint, s.CreatedAt.Format("2006-01-02 15:04:05"), s.RowCount, s.SchemaVersion)
			}
			return nil
		},
	}
}

func newArtifactsShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <fingerprint>",
		Short:         "Show one stored bundle",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			b, err := artifact.NewCache(st).Lookup(cmd.Context(), args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read artifact", err)
			}
			if b == nil {
				return NewExitError(ExitFailure, fmt.Sprintf("no artifact with fingerprint %s", args[0]))
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}
			if done, err := out.JSON(b); done {
				return err
			}
			printBundle(out, b, true)
			return nil
		},
	}
}
