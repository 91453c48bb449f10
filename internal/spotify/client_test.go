package spotify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wedding-rsvp/internal/apperr"
)

type memCredentials struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemCredentials() *memCredentials {
	return &memCredentials{values: make(map[string]string)}
}

func (m *memCredentials) GetCredential(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[name], nil
}

func (m *memCredentials) PutCredential(ctx context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = value
	return nil
}

// fakeAccounts answers token requests and records the grants it saw
type fakeAccounts struct {
	mu           sync.Mutex
	grants       []string
	refreshToken string
	status       int
}

func (f *fakeAccounts) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, pass, ok := r.BasicAuth()
	if !ok || user != "client" || pass != "secret" {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	grant := r.PostForm.Get("grant_type")
	f.grants = append(f.grants, grant)
	if f.status != 0 {
		http.Error(w, `{"error":"invalid_grant"}`, f.status)
		return
	}

	resp := map[string]any{
		"access_token": grant + "-token",
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
	switch grant {
	case "authorization_code":
		resp["refresh_token"] = "linked-refresh"
		resp["scope"] = strings.Join(Scopes, " ")
	case "refresh_token":
		if f.refreshToken != "" {
			resp["refresh_token"] = f.refreshToken
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeAccounts) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.grants...)
}

func newAccounts(t *testing.T, fake *fakeAccounts) *Accounts {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewAccounts(AccountsConfig{
		BaseURL:      srv.URL,
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURI:  "http://localhost:3001/spotify/callback",
	}, zerolog.Nop())
}

func newAPIClient(t *testing.T, accounts *Accounts, store CredentialStore, playlistID string, api http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return NewClient(
		ClientConfig{BaseURL: srv.URL, PlaylistID: playlistID},
		NewTokenCache(accounts.ClientCredentials()),
		NewTokenCache(NewRefreshTokenSource(accounts, store, "", zerolog.Nop())),
		zerolog.Nop(),
	)
}

func TestAddToPlaylist(t *testing.T) {
	fake := &fakeAccounts{}
	store := newMemCredentials()
	store.values[CredentialRefreshToken] = "stored-refresh"

	var uris []string
	client := newAPIClient(t, newAccounts(t, fake), store, "playlist1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/playlists/playlist1/tracks", r.URL.Path)
		assert.Equal(t, "Bearer refresh_token-token", r.Header.Get("Authorization"))
		var body struct {
			URIs []string `json:"uris"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		uris = body.URIs
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"snapshot_id":"snap"}`))
	})

	result, err := client.AddToPlaylist(context.Background(), "https://open.spotify.com/track/abc123?si=1")
	require.NoError(t, err)
	assert.Equal(t, []string{"spotify:track:abc123"}, uris)
	assert.Equal(t, "spotify:track:abc123", result.TrackURI)
	assert.Equal(t, "https://open.spotify.com/track/abc123", result.TrackURL)
	assert.Equal(t, "playlist1", result.PlaylistID)

	_, err = client.AddToPlaylist(context.Background(), "spotify:track:def456")
	require.NoError(t, err)
	assert.Equal(t, []string{"refresh_token"}, fake.seen(), "token is cached between calls")
}

func TestAddToPlaylist_NeedsSetupWithoutRefreshToken(t *testing.T) {
	fake := &fakeAccounts{}
	client := newAPIClient(t, newAccounts(t, fake), newMemCredentials(), "playlist1", func(w http.ResponseWriter, r *http.Request) {
		t.Error("playlist API must not be called")
	})

	_, err := client.AddToPlaylist(context.Background(), "spotify:track:abc123")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNeedsSetup)
	assert.True(t, IsNeedsSetup(err))
	assert.Equal(t, http.StatusUnauthorized, apperr.StatusCode(err))
	assert.Empty(t, fake.seen())
}

func TestAddToPlaylist_UnauthorizedInvalidatesToken(t *testing.T) {
	fake := &fakeAccounts{}
	store := newMemCredentials()
	store.values[CredentialRefreshToken] = "stored-refresh"

	calls := 0
	client := newAPIClient(t, newAccounts(t, fake), store, "playlist1", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, `{"error":{"status":401}}`, http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	_, err := client.AddToPlaylist(context.Background(), "spotify:track:abc123")
	require.Error(t, err)
	assert.True(t, IsNeedsSetup(err))

	_, err = client.AddToPlaylist(context.Background(), "spotify:track:abc123")
	require.NoError(t, err)
	assert.Equal(t, []string{"refresh_token", "refresh_token"}, fake.seen())
}

func TestAddToPlaylist_Validation(t *testing.T) {
	client := newAPIClient(t, newAccounts(t, &fakeAccounts{}), newMemCredentials(), "", func(w http.ResponseWriter, r *http.Request) {})

	_, err := client.AddToPlaylist(context.Background(), "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = client.AddToPlaylist(context.Background(), "not a track")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = client.AddToPlaylist(context.Background(), "spotify:track:abc123")
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
}

func TestRefreshTokenSource_PersistsRotatedToken(t *testing.T) {
	fake := &fakeAccounts{refreshToken: "rotated"}
	store := newMemCredentials()
	source := NewRefreshTokenSource(newAccounts(t, fake), store, "env-refresh", zerolog.Nop())

	token, err := source.Exchange(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refresh_token-token", token.AccessToken)
	assert.Equal(t, "rotated", store.values[CredentialRefreshToken])
}

func TestRefreshTokenSource_RejectedIsUpstream(t *testing.T) {
	fake := &fakeAccounts{status: http.StatusBadRequest}
	source := NewRefreshTokenSource(newAccounts(t, fake), nil, "env-refresh", zerolog.Nop())

	_, err := source.Exchange(context.Background())
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}

func TestSearchTracks(t *testing.T) {
	fake := &fakeAccounts{}
	client := newAPIClient(t, newAccounts(t, fake), nil, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/search", r.URL.Path)
		assert.Equal(t, "september", r.URL.Query().Get("q"))
		assert.Equal(t, "track", r.URL.Query().Get("type"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer client_credentials-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tracks":{"items":[{
			"id":"abc","name":"September","uri":"spotify:track:abc","preview_url":"https://p/abc",
			"artists":[{"name":"Earth"},{"name":"Wind & Fire"}],
			"album":{"name":"The Best Of","images":[{"url":"https://i/large"},{"url":"https://i/small"}]}
		},{
			"id":"def","name":"Other","uri":"spotify:track:def","preview_url":null,
			"artists":[],"album":{"name":"B","images":[]}
		}]}}`))
	})

	tracks, err := client.SearchTracks(context.Background(), " september ", 0)
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, Track{
		ID:         "abc",
		Name:       "September",
		Artist:     "Earth, Wind & Fire",
		Album:      "The Best Of",
		AlbumArt:   "https://i/large",
		URI:        "spotify:track:abc",
		PreviewURL: "https://p/abc",
	}, tracks[0])
	assert.Empty(t, tracks[1].AlbumArt)
	assert.Equal(t, []string{"client_credentials"}, fake.seen())

	_, err = client.SearchTracks(context.Background(), "  ", 0)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestSearchTracks_MissingClientCredentials(t *testing.T) {
	accounts := NewAccounts(AccountsConfig{BaseURL: "http://127.0.0.1:1"}, zerolog.Nop())
	client := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:1"},
		NewTokenCache(accounts.ClientCredentials()), nil, zerolog.Nop())

	_, err := client.SearchTracks(context.Background(), "song", 5)
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
}

func TestOAuth(t *testing.T) {
	fake := &fakeAccounts{}
	store := newMemCredentials()
	oauth := NewOAuth(newAccounts(t, fake), store, zerolog.Nop())

	raw, err := oauth.AuthorizeURL("state123")
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/authorize", u.Path)
	q := u.Query()
	assert.Equal(t, "client", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "state123", q.Get("state"))
	assert.Equal(t, "http://localhost:3001/spotify/callback", q.Get("redirect_uri"))
	assert.Equal(t, "playlist-modify-public playlist-modify-private playlist-read-private", q.Get("scope"))

	require.NoError(t, oauth.Complete(context.Background(), "code123"))
	assert.Equal(t, "linked-refresh", store.values[CredentialRefreshToken])
	assert.Equal(t, []string{"authorization_code"}, fake.seen())

	err = oauth.Complete(context.Background(), "")
	assert.True(t, apperr.Is(err, apperr.KindAuth))
}
