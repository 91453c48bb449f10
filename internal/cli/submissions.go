package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wedding-rsvp/internal/storage"
)

// SubmissionsOptions holds flags for the submissions command.
type SubmissionsOptions struct {
	*RootOptions
	Attending string
	Limit     int
}

// NewSubmissionsCommand creates the submissions command.
func NewSubmissionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmissionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submissions",
		Short: "List RSVP submissions received by this server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmissions(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Attending, "attending", "", "filter by attendance (yes|no)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 100, "maximum submissions to show")

	return cmd
}

func runSubmissions(opts *SubmissionsOptions, cmd *cobra.Command) error {
	filter := storage.SubmissionFilter{Limit: opts.Limit}
	switch opts.Attending {
	case "":
	case "yes":
		attending := true
		filter.Attending = &attending
	case "no":
		attending := false
		filter.Attending = &attending
	default:
		return fmt.Errorf("invalid --attending %q: must be yes or no", opts.Attending)
	}

	a, err := newApp(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.store.ListSubmissions(cmd.Context(), filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return printJSON(out, records)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No submissions found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBMITTED\tPHONE\tRECORDS\tATTENDING\tDECLINED\tSONG")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			formatTime(&r.SubmittedAt), r.Phone, r.RecordIDs, r.AttendingCount, r.DeclinedCount, truncate(r.SongRequest, 40))
	}
	return tw.Flush()
}
