package spotify

import (
	"context"
	"sync/atomic"
	"time"
)

// expiryBuffer is how long before expiry a cached token is treated as stale
const expiryBuffer = time.Minute

// Token is an access token returned by a token exchange
type Token struct {
	AccessToken string
	ExpiresIn   time.Duration
}

// TokenSource performs a token exchange against the accounts service
type TokenSource interface {
	Exchange(ctx context.Context) (Token, error)
}

// TokenSourceFunc adapts a function to TokenSource
type TokenSourceFunc func(ctx context.Context) (Token, error)

func (f TokenSourceFunc) Exchange(ctx context.Context) (Token, error) {
	return f(ctx)
}

type cachedToken struct {
	accessToken string
	expiresAt   time.Time
}

// TokenCache memoizes one access token until shortly before it expires.
//
// Concurrent callers that find the slot stale each run their own exchange and
// the last one stored wins. Exchanges are idempotent, so no caller waits on another.
type TokenCache struct {
	source TokenSource
	slot   atomic.Pointer[cachedToken]
	now    func() time.Time
}

// NewTokenCache creates an empty cache backed by source
func NewTokenCache(source TokenSource) *TokenCache {
	return &TokenCache{
		source: source,
		now:    time.Now,
	}
}

// Get returns the cached token while now < expiresAt - 1m, otherwise exchanges for a new one.
// Exchange failures are returned as-is and leave the slot untouched.
func (c *TokenCache) Get(ctx context.Context) (string, error) {
	if t := c.slot.Load(); t != nil && c.now().Before(t.expiresAt.Add(-expiryBuffer)) {
		return t.accessToken, nil
	}

	token, err := c.source.Exchange(ctx)
	if err != nil {
		return "", err
	}
	c.slot.Store(&cachedToken{
		accessToken: token.AccessToken,
		expiresAt:   c.now().Add(token.ExpiresIn),
	})
	return token.AccessToken, nil
}

// Invalidate empties the slot so the next Get exchanges again
func (c *TokenCache) Invalidate() {
	c.slot.Store(nil)
}
