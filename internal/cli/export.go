package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"wedding-rsvp/internal/report"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Output string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the guest list and RSVP answers to a spreadsheet",
		Long: `Write every family record's guests and answers to an xlsx workbook.

Examples:
  wedding-rsvp export --out guests.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}
	cmd.Flags().StringVarP(&opts.Output, "out", "o", "guests.xlsx", "output file")

	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	a, err := newApp(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	file, err := os.Create(opts.Output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	totals, err := report.NewExporter(a.guests, a.logger).Export(cmd.Context(), file)
	if cerr := file.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close output file: %w", cerr)
	}
	if err != nil {
		_ = os.Remove(opts.Output)
		return err
	}

	if opts.Format == "json" {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"file":      opts.Output,
			"attending": totals.Attending,
			"declined":  totals.Declined,
			"pending":   totals.Pending,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Exported to %s (%d attending, %d declined, %d pending)\n",
		opts.Output, totals.Attending, totals.Declined, totals.Pending)
	return nil
}
