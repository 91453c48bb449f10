package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"wedding-rsvp/internal/apperr"
	"wedding-rsvp/internal/metrics"
)

// CredentialRefreshToken is the credential store key of the playlist owner's refresh token
const CredentialRefreshToken = "spotify_refresh_token"

// SetupURL is where an admin links the playlist owner's account
const SetupURL = "/admin/spotify-setup"

// Scopes requested when linking the playlist owner's account
var Scopes = []string{"playlist-modify-public", "playlist-modify-private", "playlist-read-private"}

// ErrNeedsSetup means no playlist credential has been linked yet
var ErrNeedsSetup = NeedsSetup("Spotify authentication not set up yet. Admin needs to complete setup.")

// NeedsSetup returns an auth error pointing the admin at the setup page
func NeedsSetup(message string) *apperr.Error {
	return apperr.Auth(message, map[string]any{
		"needs_setup": true,
		"setup_url":   SetupURL,
	})
}

// IsNeedsSetup reports whether err asks for the playlist account to be linked
func IsNeedsSetup(err error) bool {
	needs, _ := apperr.MetaOf(err)["needs_setup"].(bool)
	return needs
}

// CredentialStore persists long-lived credentials
type CredentialStore interface {
	GetCredential(ctx context.Context, name string) (string, error)
	PutCredential(ctx context.Context, name, value string) error
}

// AccountsConfig holds the application credentials
type AccountsConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Timeout      time.Duration
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

func (t *tokenResponse) token() Token {
	expiresIn := t.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	return Token{AccessToken: t.AccessToken, ExpiresIn: time.Duration(expiresIn) * time.Second}
}

// Accounts talks to the Spotify accounts service
type Accounts struct {
	http   *resty.Client
	cfg    AccountsConfig
	logger zerolog.Logger
}

// NewAccounts creates an accounts service client
func NewAccounts(cfg AccountsConfig, logger zerolog.Logger) *Accounts {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Accounts{
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetTimeout(cfg.Timeout).
			SetHeader("Accept", "application/json"),
		cfg:    cfg,
		logger: logger.With().Str("component", "spotify-accounts").Logger(),
	}
}

func (a *Accounts) requireClient() error {
	var missing []string
	if a.cfg.ClientID == "" {
		missing = append(missing, "SPOTIFY_CLIENT_ID")
	}
	if a.cfg.ClientSecret == "" {
		missing = append(missing, "SPOTIFY_CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return apperr.Configuration(missing...)
	}
	return nil
}

func (a *Accounts) requestToken(ctx context.Context, grant string, form map[string]string) (resp *tokenResponse, err error) {
	defer func() {
		metrics.TokenRefreshesTotal.WithLabelValues(grant, metrics.Result(err)).Inc()
	}()

	if err := a.requireClient(); err != nil {
		return nil, err
	}

	data := map[string]string{"grant_type": grant}
	for k, v := range form {
		data[k] = v
	}

	start := time.Now()
	r, err := a.http.R().
		SetContext(ctx).
		SetBasicAuth(a.cfg.ClientID, a.cfg.ClientSecret).
		SetFormData(data).
		SetResult(&tokenResponse{}).
		Post("/api/token")

	status := 0
	if r != nil {
		status = r.StatusCode()
	}
	metrics.UpstreamRequestDuration.
		WithLabelValues("spotify", "token", strconv.Itoa(status)).
		Observe(time.Since(start).Seconds())

	if err != nil {
		a.logger.Error().Err(err).Str("grant", grant).Msg("Token request failed")
		return nil, apperr.Upstream("spotify", fmt.Errorf("failed to exchange %s token: %w", grant, err))
	}
	if r.IsError() {
		a.logger.Error().
			Str("grant", grant).
			Int("status", status).
			Str("body", r.String()).
			Msg("Token exchange rejected")
		return nil, apperr.Upstream("spotify", fmt.Errorf("token exchange rejected: %s", r.Status()))
	}

	resp = r.Result().(*tokenResponse)
	if resp.AccessToken == "" {
		return nil, apperr.Upstream("spotify", errors.New("token response has no access token"))
	}
	a.logger.Debug().Str("grant", grant).Int("expires_in", resp.ExpiresIn).Msg("Token exchanged")
	return resp, nil
}

// ClientCredentials returns a source of application tokens, enough for catalog search
func (a *Accounts) ClientCredentials() TokenSource {
	return TokenSourceFunc(func(ctx context.Context) (Token, error) {
		resp, err := a.requestToken(ctx, "client_credentials", nil)
		if err != nil {
			return Token{}, err
		}
		return resp.token(), nil
	})
}

// RefreshTokenSource exchanges the playlist owner's refresh token for user tokens
type RefreshTokenSource struct {
	accounts *Accounts
	store    CredentialStore
	fallback string
	logger   zerolog.Logger
}

// NewRefreshTokenSource reads the refresh token from store, then falls back to a configured value
func NewRefreshTokenSource(accounts *Accounts, store CredentialStore, fallback string, logger zerolog.Logger) *RefreshTokenSource {
	return &RefreshTokenSource{
		accounts: accounts,
		store:    store,
		fallback: fallback,
		logger:   logger.With().Str("component", "spotify-refresh").Logger(),
	}
}

// Exchange performs a refresh-token grant, persisting a rotated refresh token
func (s *RefreshTokenSource) Exchange(ctx context.Context) (Token, error) {
	refreshToken, err := s.current(ctx)
	if err != nil {
		return Token{}, err
	}
	if refreshToken == "" {
		return Token{}, ErrNeedsSetup
	}

	resp, err := s.accounts.requestToken(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return Token{}, err
	}

	if resp.RefreshToken != "" && resp.RefreshToken != refreshToken && s.store != nil {
		if err := s.store.PutCredential(ctx, CredentialRefreshToken, resp.RefreshToken); err != nil {
			s.logger.Error().Err(err).Msg("Failed to store rotated refresh token")
		}
	}
	return resp.token(), nil
}

func (s *RefreshTokenSource) current(ctx context.Context) (string, error) {
	if s.store != nil {
		stored, err := s.store.GetCredential(ctx, CredentialRefreshToken)
		if err != nil {
			return "", fmt.Errorf("failed to read refresh token: %w", err)
		}
		if stored != "" {
			return stored, nil
		}
	}
	return s.fallback, nil
}

// OAuth links the playlist owner's account through the authorization-code flow
type OAuth struct {
	accounts *Accounts
	store    CredentialStore
	logger   zerolog.Logger
}

// NewOAuth creates the account linking flow
func NewOAuth(accounts *Accounts, store CredentialStore, logger zerolog.Logger) *OAuth {
	return &OAuth{
		accounts: accounts,
		store:    store,
		logger:   logger.With().Str("component", "spotify-oauth").Logger(),
	}
}

// AuthorizeURL returns the consent page URL carrying state
func (o *OAuth) AuthorizeURL(state string) (string, error) {
	if o.accounts.cfg.ClientID == "" {
		return "", apperr.Configuration("SPOTIFY_CLIENT_ID")
	}
	q := url.Values{}
	q.Set("client_id", o.accounts.cfg.ClientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", o.accounts.cfg.RedirectURI)
	q.Set("scope", strings.Join(Scopes, " "))
	q.Set("state", state)
	return strings.TrimRight(o.accounts.cfg.BaseURL, "/") + "/authorize?" + q.Encode(), nil
}

// Complete exchanges an authorization code and stores the resulting refresh token
func (o *OAuth) Complete(ctx context.Context, code string) error {
	if code == "" {
		return apperr.Auth("Missing authorization code", nil)
	}
	resp, err := o.accounts.requestToken(ctx, "authorization_code", map[string]string{
		"code":         code,
		"redirect_uri": o.accounts.cfg.RedirectURI,
	})
	if err != nil {
		return err
	}
	if resp.RefreshToken == "" {
		return apperr.Upstream("spotify", errors.New("authorization response has no refresh token"))
	}
	if err := o.store.PutCredential(ctx, CredentialRefreshToken, resp.RefreshToken); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	o.logger.Info().Str("scope", resp.Scope).Msg("Spotify account linked")
	return nil
}
