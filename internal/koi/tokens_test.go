package koi

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenCacheRoundTrip(t *testing.T) {
	cache := NewTokenCache(900 * time.Second)
	cache.Set("42", "tok")
	got, ok := cache.Get("42")
	if !ok || got != "tok" {
		t.Fatalf("expected cached token, got %q ok=%v", got, ok)
	}
	if _, ok := cache.Get("other"); ok {
		t.Fatal("unexpected hit for unknown user")
	}
}

func TestTokenCacheLazyExpiry(t *testing.T) {
	cache := NewTokenCache(900 * time.Second)
	current := time.Now()
	cache.now = func() time.Time { return current }

	cache.Set("42", "tok")
	current = current.Add(901 * time.Second)
	if _, ok := cache.Get("42"); ok {
		t.Fatal("expected expired token to be treated as absent")
	}
	// The expired entry must have been removed, not just hidden.
	cache.mu.Lock()
	_, present := cache.entries["42"]
	cache.mu.Unlock()
	if present {
		t.Fatal("expired entry was not removed on read")
	}
}

func TestTokenCacheTTLFloor(t *testing.T) {
	cache := NewTokenCache(1 * time.Second)
	if cache.ttl != minTokenTTL {
		t.Fatalf("expected TTL floor of %v, got %v", minTokenTTL, cache.ttl)
	}
}

func TestTokenCacheInvalidateAndReset(t *testing.T) {
	cache := NewTokenCache(time.Hour)
	cache.Set("a", "tok-a")
	cache.Set("b", "tok-b")

	cache.Invalidate("a")
	if _, ok := cache.Get("a"); ok {
		t.Fatal("invalidated token still present")
	}
	if _, ok := cache.Get("b"); !ok {
		t.Fatal("unrelated token was dropped")
	}

	cache.Reset()
	if _, ok := cache.Get("b"); ok {
		t.Fatal("reset did not clear the cache")
	}
}

func TestTokenCacheCapsAtJWTExpiry(t *testing.T) {
	cache := NewTokenCache(time.Hour)
	current := time.Now()
	cache.now = func() time.Time { return current }

	exp := current.Add(2 * time.Minute)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
		"sub": "42",
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}

	cache.Set("42", token)
	if _, ok := cache.Get("42"); !ok {
		t.Fatal("expected fresh token to hit")
	}
	current = current.Add(3 * time.Minute)
	if _, ok := cache.Get("42"); ok {
		t.Fatal("token should expire at the JWT exp claim, not the cache TTL")
	}
}

func TestTokenCacheOpaqueTokenUsesConfiguredTTL(t *testing.T) {
	cache := NewTokenCache(time.Hour)
	current := time.Now()
	cache.now = func() time.Time { return current }

	cache.Set("42", "opaque-token")
	current = current.Add(59 * time.Minute)
	if _, ok := cache.Get("42"); !ok {
		t.Fatal("opaque token should live for the full configured TTL")
	}
}
