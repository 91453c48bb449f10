package handler

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"wedding-rsvp/internal/apperr"
	"wedding-rsvp/internal/spotify"
)

const (
	stateCookie     = "spotify_auth_state"
	stateCookieTTL  = 5 * 60
	authSuccessPath = "/spotify-auth-success"
	authErrorPath   = "/spotify-auth-error"
)

type playlistAddRequest struct {
	TrackURI string `json:"trackUri"`
}

type playlistAddResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	TrackURI   string `json:"trackUri,omitempty"`
	TrackURL   string `json:"trackUrl,omitempty"`
	PlaylistID string `json:"playlistId,omitempty"`
	NeedsSetup bool   `json:"needs_setup,omitempty"`
	SetupURL   string `json:"setup_url,omitempty"`
}

// AddToPlaylist handles POST /playlist/add
func (h *Handler) AddToPlaylist(c echo.Context) error {
	var req playlistAddRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("Invalid request body")
	}

	result, err := h.music.AddToPlaylist(c.Request().Context(), req.TrackURI)
	if spotify.IsNeedsSetup(err) {
		h.logger.Warn().Str("track_uri", req.TrackURI).Str("setup_url", spotify.SetupURL).Msg("Playlist account needs setup")
		return c.JSON(http.StatusUnauthorized, playlistAddResponse{
			Message:    apperr.PublicMessage(err),
			NeedsSetup: true,
			SetupURL:   spotify.SetupURL,
		})
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, playlistAddResponse{
		Success:    true,
		Message:    "Track successfully added to playlist",
		TrackURI:   result.TrackURI,
		TrackURL:   result.TrackURL,
		PlaylistID: result.PlaylistID,
	})
}

// SearchTracks handles GET /spotify/search?q=&limit=
func (h *Handler) SearchTracks(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	tracks, err := h.music.SearchTracks(c.Request().Context(), c.QueryParam("q"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"tracks": tracks})
}

// SpotifyAuth handles GET /spotify/auth by redirecting to the consent page
func (h *Handler) SpotifyAuth(c echo.Context) error {
	state := uuid.NewString()
	authURL, err := h.linker.AuthorizeURL(state)
	if err != nil {
		return err
	}

	c.SetCookie(&http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   stateCookieTTL,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusTemporaryRedirect, authURL)
}

// SpotifyCallback handles GET /spotify/callback. Every failure lands on the error page.
func (h *Handler) SpotifyCallback(c echo.Context) error {
	if err := h.completeAuth(c); err != nil {
		h.logger.Error().Err(err).Msg("Spotify authorization failed")
		return c.Redirect(http.StatusTemporaryRedirect, authErrorPath)
	}
	return c.Redirect(http.StatusTemporaryRedirect, authSuccessPath)
}

func (h *Handler) completeAuth(c echo.Context) error {
	if reason := c.QueryParam("error"); reason != "" {
		return apperr.Auth("Authorization denied: "+reason, nil)
	}
	code := c.QueryParam("code")
	state := c.QueryParam("state")
	if code == "" || state == "" {
		return apperr.Auth("Missing code or state", nil)
	}

	cookie, err := c.Cookie(stateCookie)
	if err != nil || cookie.Value != state {
		return apperr.Auth("State mismatch", nil)
	}
	c.SetCookie(&http.Cookie{Name: stateCookie, Path: "/", MaxAge: -1, HttpOnly: true, Secure: h.cfg.SecureCookies})

	if err := h.linker.Complete(c.Request().Context(), code); err != nil {
		return err
	}
	h.cfg.OnLinked()
	return nil
}
