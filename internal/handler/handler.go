package handler

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"wedding-rsvp/internal/airtable"
	"wedding-rsvp/internal/models"
	"wedding-rsvp/internal/spotify"
)

// GuestDirectory looks guests up by phone number
type GuestDirectory interface {
	Lookup(ctx context.Context, phoneNumber string) ([]models.Guest, error)
	Families(ctx context.Context, phoneNumber string) ([]models.FamilyGroup, error)
}

// Submitter persists RSVP submissions
type Submitter interface {
	Submit(ctx context.Context, sub models.Submission) (models.SubmitResult, error)
}

// Music adds to the playlist and searches the catalog
type Music interface {
	AddToPlaylist(ctx context.Context, trackURI string) (*spotify.PlaylistAddResult, error)
	SearchTracks(ctx context.Context, query string, limit int) ([]spotify.Track, error)
}

// AccountLinker runs the playlist owner's authorization flow
type AccountLinker interface {
	AuthorizeURL(state string) (string, error)
	Complete(ctx context.Context, code string) error
}

// SchemaReader describes the record store's tables
type SchemaReader interface {
	Tables(ctx context.Context) ([]airtable.Table, error)
}

// Config holds handler settings
type Config struct {
	// SecureCookies marks the OAuth state cookie Secure
	SecureCookies bool
	// OnLinked runs after the playlist account was linked
	OnLinked func()
}

// Handler serves the JSON API
type Handler struct {
	guests GuestDirectory
	rsvp   Submitter
	music  Music
	linker AccountLinker
	schema SchemaReader
	health *Checker
	cfg    Config
	logger zerolog.Logger
}

// New creates the API handler
func New(guests GuestDirectory, rsvp Submitter, music Music, linker AccountLinker, schema SchemaReader, health *Checker, cfg Config, logger zerolog.Logger) *Handler {
	if cfg.OnLinked == nil {
		cfg.OnLinked = func() {}
	}
	return &Handler{
		guests: guests,
		rsvp:   rsvp,
		music:  music,
		linker: linker,
		schema: schema,
		health: health,
		cfg:    cfg,
		logger: logger.With().Str("component", "handler").Logger(),
	}
}

// Register adds every route to e
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/search", h.SearchGuests)
	e.GET("/search/families", h.SearchFamilies)
	e.POST("/submit", h.SubmitRSVP)

	e.POST("/playlist/add", h.AddToPlaylist)
	e.GET("/spotify/search", h.SearchTracks)
	e.GET("/spotify/auth", h.SpotifyAuth)
	e.GET("/spotify/callback", h.SpotifyCallback)

	e.GET("/admin/airtable-schema", h.AirtableSchema)

	if h.health != nil {
		e.GET("/health", h.health.Health)
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
