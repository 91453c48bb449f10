package spotify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"wedding-rsvp/internal/apperr"
	"wedding-rsvp/internal/metrics"
)

const defaultSearchLimit = 10

// Track is a search result trimmed to what the song picker shows
type Track struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	AlbumArt   string `json:"albumArt,omitempty"`
	URI        string `json:"uri"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

// PlaylistAddResult describes a track added to the playlist
type PlaylistAddResult struct {
	TrackURI   string `json:"trackUri"`
	TrackURL   string `json:"trackUrl"`
	PlaylistID string `json:"playlistId"`
}

type searchResponse struct {
	Tracks struct {
		Items []struct {
			ID      string `json:"id"`
			Name    string `json:"name"`
			URI     string `json:"uri"`
			Preview string `json:"preview_url"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
			Album struct {
				Name   string `json:"name"`
				Images []struct {
					URL string `json:"url"`
				} `json:"images"`
			} `json:"album"`
		} `json:"items"`
	} `json:"tracks"`
}

// ClientConfig holds the Web API settings
type ClientConfig struct {
	BaseURL    string
	PlaylistID string
	Timeout    time.Duration
}

// Client talks to the Spotify Web API
type Client struct {
	http           *resty.Client
	cfg            ClientConfig
	searchTokens   *TokenCache
	playlistTokens *TokenCache
	logger         zerolog.Logger
}

// NewClient creates a Web API client. Search uses application tokens,
// playlist writes use the playlist owner's tokens.
func NewClient(cfg ClientConfig, searchTokens, playlistTokens *TokenCache, logger zerolog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetTimeout(cfg.Timeout).
			SetHeader("Accept", "application/json"),
		cfg:            cfg,
		searchTokens:   searchTokens,
		playlistTokens: playlistTokens,
		logger:         logger.With().Str("component", "spotify").Logger(),
	}
}

// PlaylistTokens returns the cache holding the playlist owner's token
func (c *Client) PlaylistTokens() *TokenCache {
	return c.playlistTokens
}

// AddToPlaylist appends a track to the wedding playlist
func (c *Client) AddToPlaylist(ctx context.Context, trackURI string) (*PlaylistAddResult, error) {
	id, ok := ParseTrackURI(trackURI)
	if !ok {
		if strings.TrimSpace(trackURI) == "" {
			return nil, apperr.Validation("Track URI is required")
		}
		return nil, apperr.Validation("Invalid Spotify track URI")
	}
	if c.cfg.PlaylistID == "" {
		return nil, apperr.Configuration("SPOTIFY_PLAYLIST_ID")
	}

	token, err := c.playlistTokens.Get(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetPathParam("playlistId", c.cfg.PlaylistID).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string][]string{"uris": {TrackURI(id)}}).
		Post("/v1/playlists/{playlistId}/tracks")
	if err := c.check("playlist_add", start, resp, err, c.playlistTokens); err != nil {
		if resp != nil && resp.StatusCode() == http.StatusUnauthorized {
			return nil, NeedsSetup("Failed to add track to playlist. Authentication may have expired.")
		}
		return nil, err
	}

	c.logger.Info().
		Str("playlist_id", c.cfg.PlaylistID).
		Str("track_uri", TrackURI(id)).
		Msg("Track added to playlist")

	return &PlaylistAddResult{
		TrackURI:   TrackURI(id),
		TrackURL:   TrackURL(id),
		PlaylistID: c.cfg.PlaylistID,
	}, nil
}

// SearchTracks searches the catalog for tracks
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("Search query is required")
	}
	if limit <= 0 || limit > 50 {
		limit = defaultSearchLimit
	}

	token, err := c.searchTokens.Get(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(map[string]string{
			"q":     query,
			"type":  "track",
			"limit": strconv.Itoa(limit),
		}).
		SetResult(&searchResponse{}).
		Get("/v1/search")
	if err := c.check("search", start, resp, err, c.searchTokens); err != nil {
		return nil, err
	}

	result := resp.Result().(*searchResponse)
	tracks := make([]Track, 0, len(result.Tracks.Items))
	for _, item := range result.Tracks.Items {
		artists := make([]string, 0, len(item.Artists))
		for _, a := range item.Artists {
			artists = append(artists, a.Name)
		}
		track := Track{
			ID:         item.ID,
			Name:       item.Name,
			Artist:     strings.Join(artists, ", "),
			Album:      item.Album.Name,
			URI:        item.URI,
			PreviewURL: item.Preview,
		}
		if len(item.Album.Images) > 0 {
			track.AlbumArt = item.Album.Images[0].URL
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

// check records the call and maps failures. A 401 empties the token cache
// so the next call exchanges a fresh token.
func (c *Client) check(operation string, start time.Time, resp *resty.Response, err error, tokens *TokenCache) error {
	status := 0
	if resp != nil {
		status = resp.StatusCode()
	}
	metrics.UpstreamRequestDuration.
		WithLabelValues("spotify", operation, strconv.Itoa(status)).
		Observe(time.Since(start).Seconds())

	if err != nil {
		c.logger.Error().Err(err).Str("operation", operation).Msg("Spotify request failed")
		return apperr.Upstream("spotify", fmt.Errorf("failed to %s: %w", operation, err))
	}
	if resp.IsError() {
		if status == http.StatusUnauthorized {
			tokens.Invalidate()
		}
		c.logger.Error().
			Str("operation", operation).
			Int("status", status).
			Str("body", resp.String()).
			Msg("Spotify API error")
		return apperr.Upstream("spotify", fmt.Errorf("spotify API error: %s", resp.Status()))
	}
	return nil
}
