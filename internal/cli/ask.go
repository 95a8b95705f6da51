package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cognix/cognix/internal/artifact"
	"github.com/cognix/cognix/internal/pipeline"
)

// NewAskCommand creates the ask command.
func NewAskCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question of the loaded dataset",
		Long: `Resolve a free-text question into a query, run it, and print the
result table, chart choice, and narrative. Repeated questions are served
from the artifact cache.

Example:
  cognix ask --db sales.db --schema superstore.cue "Monthly sales trend"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runAsk(opts *RootOptions, cmd *cobra.Command, question string) error {
	app, err := openApp(opts)
	if err != nil {
		return err
	}
	defer app.Close()

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	res, err := app.Pipeline.Run(cmd.Context(), question)
	if err != nil {
		var failure *pipeline.Failure
		if errors.As(err, &failure) {
			_ = out.Error(string(failure.Kind), failure.Message(), failure.Error())
			return NewExitError(ExitFailure, failure.Message())
		}
		return WrapExitError(ExitCommandError, "request failed", err)
	}

	if done, err := out.JSON(askResponse{
		Bundle:   res.Bundle,
		CacheHit: res.CacheHit,
		Degraded: res.Degraded,
	}); done {
		return err
	}

	printBundle(out, res.Bundle, res.CacheHit)
	return nil
}

type askResponse struct {
	Bundle   *artifact.Bundle `json:"bundle"`
	CacheHit bool             `json:"cache_hit"`
	Degraded bool             `json:"degraded,omitempty"`
}

func printBundle(out *OutputFormatter, b *artifact.Bundle, cacheHit bool) {
	w := out.Writer
	fmt.Fprintf(w, "%s\n", b.Viz.Title)
	if cacheHit {
		fmt.Fprintf(w, "(cached %s)\n", b.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintln(w)
	printTable(out, b)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Chart: %s (%s)\n", b.Viz.Kind, b.Viz.Reason)
	fmt.Fprintf(w, "%s\n", b.Narrative)
	if out.Verbose {
		fmt.Fprintf(w, "\nFingerprint: %s\nSQL: %s\n", b.Fingerprint, b.Query.SQL)
	}
}

func printTable(out *OutputFormatter, b *artifact.Bundle) {
	w := out.Writer
	widths := make([]int, len(b.Table.Columns))
	cells := make([][]string, len(b.Table.Rows))
	for i, name := range b.Table.Columns {
		widths[i] = len(name)
	}
	for i, row := range b.Table.Rows {
		cells[i] = make([]string, len(row))
		for j, cell := range row {
			s := renderCell(cell)
			cells[i][j] = s
			if j < len(widths) && len(s) > widths[j] {
				widths[j] = len(s)
			}
		}
	}

	var header []string
	for i, name := range b.Table.Columns {
		header = append(header, pad(name, widths[i]))
	}
	fmt.Fprintln(w, strings.Join(header, "  "))
	for _, row := range cells {
		var line []string
		for j, cell := range row {
			line = append(line, pad(cell, widths[j]))
		}
		fmt.Fprintln(w, strings.Join(line, "  "))
	}
	if b.Table.Truncated {
		fmt.Fprintf(w, "(truncated at %d rows)\n", b.Table.RowCount)
	}
}

func renderCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%.2f", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
