package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wedding-rsvp/internal/outbox"
)

// OutboxOptions holds flags for the outbox commands.
type OutboxOptions struct {
	*RootOptions
	Status string
	Limit  int
}

// NewOutboxCommand creates the outbox command group.
func NewOutboxCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OutboxOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and replay follow-up deliveries",
		Long: `Follow-ups are recorded after an RSVP is saved and delivered in the background:
playlist additions for picked tracks and WhatsApp confirmations.

Examples:
  wedding-rsvp outbox list --status dead
  wedding-rsvp outbox retry 6f1c...
  wedding-rsvp outbox drain`,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List outbox entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOutboxList(opts, cmd)
		},
	}
	list.Flags().StringVar(&opts.Status, "status", "", "filter by status (pending|failed|sent|dead)")
	list.Flags().IntVar(&opts.Limit, "limit", 50, "maximum entries to show")

	retry := &cobra.Command{
		Use:   "retry <id>",
		Short: "Reset a failed or dead entry and deliver it now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer a.Close()

			entry, err := a.outbox.Retry(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to retry entry: %w", err)
			}
			if opts.Format == "json" {
				return printJSON(cmd.OutOrStdout(), entry)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Entry %s is %s after %d attempt(s)\n", entry.ID, entry.Status, entry.Attempts)
			if entry.LastError != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Last error: %s\n", entry.LastError)
			}
			return nil
		},
	}

	drain := &cobra.Command{
		Use:   "drain",
		Short: "Deliver every due entry once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.outbox.Drain(cmd.Context())
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]int{"attempted": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Attempted %d entr(ies)\n", n)
			return nil
		},
	}

	cmd.AddCommand(list, retry, drain)
	return cmd
}

func runOutboxList(opts *OutboxOptions, cmd *cobra.Command) error {
	status := outbox.Status(opts.Status)
	switch status {
	case "", outbox.StatusPending, outbox.StatusFailed, outbox.StatusSent, outbox.StatusDead:
	default:
		return fmt.Errorf("invalid status %q", opts.Status)
	}

	a, err := newApp(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.outbox.List(cmd.Context(), status, opts.Limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return printJSON(out, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No outbox entries found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTATUS\tATTEMPTS\tNEXT ATTEMPT\tLAST ERROR")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			e.ID, e.Kind, e.Status, e.Attempts, e.MaxAttempts, formatTime(e.NextAttemptAt), truncate(e.LastError, 60))
	}
	return tw.Flush()
}
