package cli

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"wedding-rsvp/internal/handler"
	"wedding-rsvp/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the outbox processor",
		Long: `Serve the JSON API used by the wedding site:

  GET  /search, /search/families   guest lookup by phone
  POST /submit                     RSVP submission
  POST /playlist/add               add a track to the wedding playlist
  GET  /spotify/search             catalog search
  GET  /spotify/auth, /callback    link the playlist owner's account
  GET  /admin/airtable-schema      table introspection
  GET  /health, /metrics

Follow-ups queued by submissions are delivered in the background.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			checker := handler.NewChecker(a.store, a.store, map[string]func() error{
				"airtable": a.cfg.RequireAirtable,
				"spotify":  a.cfg.RequirePlaylist,
			}, Version)
			h := handler.New(a.guests, a.rsvp, a.spotify, a.oauth, schemaFunc(a.tables), checker, handler.Config{
				SecureCookies: strings.HasPrefix(a.cfg.PublicBaseURL, "https://"),
				OnLinked:      a.spotify.PlaylistTokens().Invalidate,
			}, a.logger)

			srv := server.New(":"+a.cfg.Port, a.logger)
			h.Register(srv.Echo())

			a.outbox.Start(ctx)
			defer a.outbox.Stop()

			return srv.Run(ctx)
		},
	}
}
