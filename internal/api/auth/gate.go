package auth

import (
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// Gate is the trust boundary for protected operations: an Authorization
// header goes in, verified claims (or an error) come out.
type Gate struct {
	verifier Verifier
	now      func() time.Time
}

type GateOption func(*Gate)

// WithGateClock replaces time.Now, mainly for tests.
func WithGateClock(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

func NewGate(v Verifier, opts ...GateOption) *Gate {
	g := &Gate{verifier: v, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorize extracts the bearer token from header and verifies it.
func (g *Gate) Authorize(header string) (*Claims, error) {
	token, err := BearerToken(header)
	if err != nil {
		return nil, err
	}
	return g.verifier.Verify(token, g.now())
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "bearer") {
		return "", ErrInvalidToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// CachingVerifier remembers successful verifications until the token expires.
// A hit is still checked against now, so cached tokens expire on time.
type CachingVerifier struct {
	next  Verifier
	cache *cache.Cache
}

// NewCachingVerifier wraps next. cleanup is the janitor interval; zero
// disables background cleanup.
func NewCachingVerifier(next Verifier, cleanup time.Duration) *CachingVerifier {
	return &CachingVerifier{
		next:  next,
		cache: cache.New(cache.NoExpiration, cleanup),
	}
}

func (c *CachingVerifier) Verify(token string, now time.Time) (*Claims, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	if v, found := c.cache.Get(token); found {
		claims := v.(*Claims)
		if !now.Before(claims.Expiry()) {
			c.cache.Delete(token)
			return nil, ErrExpiredToken
		}
		cp := *claims
		return &cp, nil
	}

	claims, err := c.next.Verify(token, now)
	if err != nil {
		return nil, err
	}
	if claims.Expiry().IsZero() {
		return claims, nil
	}
	if ttl := claims.Expiry().Sub(now); ttl > 0 {
		stored := *claims
		c.cache.Set(token, &stored, ttl)
	}
	return claims, nil
}

// Len reports how many verified tokens are cached.
func (c *CachingVerifier) Len() int {
	return c.cache.ItemCount()
}
