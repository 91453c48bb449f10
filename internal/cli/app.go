package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"wedding-rsvp/internal/airtable"
	"wedding-rsvp/internal/config"
	"wedding-rsvp/internal/guests"
	"wedding-rsvp/internal/outbox"
	"wedding-rsvp/internal/rsvp"
	"wedding-rsvp/internal/spotify"
	"wedding-rsvp/internal/storage"
	"wedding-rsvp/internal/whatsapp"
)

const databaseFile = "wedding-rsvp.db"

// app holds the wired services shared by the commands
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	store    *storage.Storage
	airtable *airtable.Client
	guests   *guests.Directory
	rsvp     *rsvp.Submitter
	outbox   *outbox.Processor
	spotify  *spotify.Client
	oauth    *spotify.OAuth
	whatsapp *whatsapp.Service
}

func newLogger(cfg *config.Config, opts *RootOptions) zerolog.Logger {
	levelName := cfg.LogLevel
	if opts.LogLevel != "" {
		levelName = opts.LogLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(levelName))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.PrettyLogs {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// newApp loads configuration and wires every service. Missing secrets are reported when a feature is used.
func newApp(ctx context.Context, opts *RootOptions) (*app, error) {
	cfg := config.LoadConfig()
	logger := newLogger(cfg, opts)

	store, err := storage.Open(filepath.Join(cfg.DataDir, databaseFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, store: store}

	a.airtable = airtable.NewClient(airtable.Config{
		BaseURL: cfg.AirtableAPIURL,
		APIKey:  cfg.AirtableAPIKey,
		BaseID:  cfg.AirtableBaseID,
		Table:   cfg.AirtableTable,
	}, logger)
	a.guests = guests.NewDirectory(a.airtable, cfg.CountryCode, cfg.RequireAirtable, logger)

	a.outbox = outbox.NewProcessor(store, outbox.Config{
		BatchSize:    cfg.OutboxBatchSize,
		PollInterval: cfg.OutboxPollInterval,
		MaxAttempts:  cfg.OutboxMaxRetries,
		Retention:    cfg.OutboxRetention,
	}, logger)

	a.rsvp = rsvp.NewSubmitter(a.airtable, store, a.outbox, rsvp.Options{
		Ready:         cfg.RequireAirtable,
		CountryCode:   cfg.CountryCode,
		Confirmations: cfg.WhatsAppEnabled,
	}, logger)

	accounts := spotify.NewAccounts(spotify.AccountsConfig{
		BaseURL:      cfg.SpotifyAccountsURL,
		ClientID:     cfg.SpotifyClientID,
		ClientSecret: cfg.SpotifyClientSecret,
		RedirectURI:  cfg.SpotifyRedirectURI,
	}, logger)
	a.spotify = spotify.NewClient(spotify.ClientConfig{
		BaseURL:    cfg.SpotifyAPIURL,
		PlaylistID: cfg.SpotifyPlaylistID,
	},
		spotify.NewTokenCache(accounts.ClientCredentials()),
		spotify.NewTokenCache(spotify.NewRefreshTokenSource(accounts, store, cfg.SpotifyRefreshToken, logger)),
		logger,
	)
	a.oauth = spotify.NewOAuth(accounts, store, logger)

	if cfg.WhatsAppEnabled {
		a.whatsapp, err = whatsapp.NewService(ctx, whatsapp.Config{DataDir: cfg.DataDir}, logger)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to initialize WhatsApp service: %w", err)
		}
	}

	a.registerHandlers()
	return a, nil
}

func (a *app) registerHandlers() {
	a.outbox.Handle(outbox.KindPlaylistAdd, func(ctx context.Context, entry *outbox.Entry) error {
		var payload outbox.PlaylistAdd
		if err := entry.Decode(&payload); err != nil {
			return err
		}
		_, err := a.spotify.AddToPlaylist(ctx, payload.TrackURI)
		return err
	})

	if a.whatsapp == nil {
		return
	}
	details := whatsapp.Details{
		WeddingDate:     a.cfg.WeddingDate,
		WeddingLocation: a.cfg.WeddingLocation,
		BrideName:       a.cfg.BrideName,
		GroomName:       a.cfg.GroomName,
	}
	a.outbox.Handle(outbox.KindWhatsAppConfirmation, func(ctx context.Context, entry *outbox.Entry) error {
		var payload outbox.WhatsAppConfirmation
		if err := entry.Decode(&payload); err != nil {
			return err
		}
		return a.whatsapp.SendConfirmation(ctx, payload.Phone, whatsapp.ConfirmationText(details, payload.Attending, payload.Declined))
	})
}

// tables guards schema reads with the record store configuration check
func (a *app) tables(ctx context.Context) ([]airtable.Table, error) {
	if err := a.cfg.RequireAirtable(); err != nil {
		return nil, err
	}
	return a.airtable.Tables(ctx)
}

func (a *app) Close() {
	if a.whatsapp != nil {
		a.whatsapp.Disconnect()
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close storage")
	}
}

type schemaFunc func(ctx context.Context) ([]airtable.Table, error)

func (f schemaFunc) Tables(ctx context.Context) ([]airtable.Table, error) {
	return f(ctx)
}
