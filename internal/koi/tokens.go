package koi

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// minTokenTTL is the floor applied to the configured cache TTL to avoid
// re-issuing tokens on every call when the TTL is misconfigured.
const minTokenTTL = 60 * time.Second

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// TokenCache holds one bearer token per end user. Entries expire lazily
// on read; keys are independent, so a single coarse mutex is enough.
type TokenCache struct {
	mu      sync.Mutex
	entries map[string]cachedToken
	ttl     time.Duration
	now     func() time.Time
}

func NewTokenCache(ttl time.Duration) *TokenCache {
	if ttl < minTokenTTL {
		ttl = minTokenTTL
	}
	return &TokenCache{
		entries: make(map[string]cachedToken),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns a still-valid cached token. Expired entries are removed
// on the spot and reported as absent.
func (c *TokenCache) Get(userID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[userID]
	if !ok {
		return "", false
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, userID)
		return "", false
	}
	return entry.token, true
}

// Set stores a token for the configured TTL. When the token is a
// parseable JWT whose exp claim lands before the TTL would, the claim
// wins: there is no point caching past the token's own lifetime.
func (c *TokenCache) Set(userID, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	expiresAt := now.Add(c.ttl)
	if exp, ok := jwtExpiry(token); ok && exp.After(now) && exp.Before(expiresAt) {
		expiresAt = exp
	}
	c.entries[userID] = cachedToken{token: token, expiresAt: expiresAt}
}

// Invalidate removes one user's token, typically after a 401.
func (c *TokenCache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

// Reset drops every cached token.
func (c *TokenCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cachedToken)
}

func jwtExpiry(token string) (time.Time, bool) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
