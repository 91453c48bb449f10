package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"wedding-rsvp/internal/config"
	"wedding-rsvp/internal/whatsapp"
)

// NewWhatsAppCommand creates the whatsapp command group.
func NewWhatsAppCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whatsapp",
		Short: "Manage the WhatsApp device used for RSVP confirmations",
	}

	pair := &cobra.Command{
		Use:   "pair",
		Short: "Link a WhatsApp device by scanning a QR code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			logger := newLogger(cfg, rootOpts)

			service, err := whatsapp.NewService(cmd.Context(), whatsapp.Config{DataDir: cfg.DataDir}, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize WhatsApp service: %w", err)
			}
			defer service.Disconnect()

			out := cmd.OutOrStdout()
			if service.IsPaired() {
				fmt.Fprintln(out, "✅ Device already paired.")
				return nil
			}
			fmt.Fprintln(out, "Scan the QR code with WhatsApp > Linked devices:")
			if err := service.Pair(cmd.Context(), out); err != nil {
				return err
			}
			fmt.Fprintln(out, "\n✅ Paired! Set WHATSAPP_ENABLED=true to send confirmations.")
			return nil
		},
	}

	cmd.AddCommand(pair)
	return cmd
}
