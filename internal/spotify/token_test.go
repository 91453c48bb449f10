package spotify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wedding-rsvp/internal/apperr"
)

type countingSource struct {
	mu    sync.Mutex
	calls int
	ttl   time.Duration
	err   error
}

func (s *countingSource) Exchange(ctx context.Context) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return Token{}, s.err
	}
	return Token{AccessToken: fmt.Sprintf("token-%d", s.calls), ExpiresIn: s.ttl}, nil
}

func newTestCache(source TokenSource, clock *time.Time) *TokenCache {
	c := NewTokenCache(source)
	c.now = func() time.Time { return *clock }
	return c
}

func TestTokenCache_ReusesUntilBuffer(t *testing.T) {
	source := &countingSource{ttl: time.Hour}
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache := newTestCache(source, &clock)
	ctx := context.Background()

	token, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)

	clock = clock.Add(58 * time.Minute)
	token, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)
	assert.Equal(t, 1, source.calls)

	// inside the one-minute buffer
	clock = clock.Add(time.Minute)
	token, err = cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-2", token)
	assert.Equal(t, 2, source.calls)
}

func TestTokenCache_Invalidate(t *testing.T) {
	source := &countingSource{ttl: time.Hour}
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache := newTestCache(source, &clock)

	_, err := cache.Get(context.Background())
	require.NoError(t, err)
	cache.Invalidate()

	token, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-2", token)
}

func TestTokenCache_ShortLivedTokenIsNeverCached(t *testing.T) {
	source := &countingSource{ttl: 30 * time.Second}
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache := newTestCache(source, &clock)

	for i := 0; i < 3; i++ {
		_, err := cache.Get(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, source.calls)
}

func TestTokenCache_FailureKeepsNothing(t *testing.T) {
	source := &countingSource{ttl: time.Hour, err: apperr.Upstream("spotify", errors.New("503"))}
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache := newTestCache(source, &clock)

	_, err := cache.Get(context.Background())
	assert.True(t, apperr.Is(err, apperr.KindUpstream))

	source.err = nil
	token, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-2", token)
}

func TestTokenCache_ConcurrentGet(t *testing.T) {
	source := &countingSource{ttl: time.Hour}
	cache := NewTokenCache(source)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := cache.Get(context.Background())
			assert.NoError(t, err)
			assert.NotEmpty(t, token)
		}()
	}
	wg.Wait()
	assert.GreaterOrEqual(t, source.calls, 1)
}

func TestParseTrackURI(t *testing.T) {
	tests := []struct {
		in   string
		id   string
		okay bool
	}{
		{"spotify:track:4uLU6hMCjMI75M1A2tKUQC", "4uLU6hMCjMI75M1A2tKUQC", true},
		{" spotify:track:abc123 ", "abc123", true},
		{"https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=xyz", "4uLU6hMCjMI75M1A2tKUQC", true},
		{"https://open.spotify.com/album/4uLU6hMCjMI75M1A2tKUQC", "", false},
		{"https://example.com/track/abc", "", false},
		{"spotify:album:abc", "", false},
		{"spotify:track:", "", false},
		{"spotify:track:abc-def", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			id, ok := ParseTrackURI(tt.in)
			assert.Equal(t, tt.okay, ok)
			assert.Equal(t, tt.id, id)
		})
	}
	assert.Equal(t, "https://open.spotify.com/track/abc", TrackURL("abc"))
	assert.Equal(t, "spotify:track:abc", TrackURI("abc"))
}
