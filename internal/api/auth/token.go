package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/FACorreiaa/go-credential-auth/config"
)

// DefaultTokenTTL is used when the configuration leaves the TTL unset.
const DefaultTokenTTL = time.Hour

var signingMethod = jwt.SigningMethodHS256

// TokenSigner mints access tokens.
type TokenSigner interface {
	Issue(user *User, now time.Time) (string, error)
}

// Verifier turns a presented token into trusted claims.
type Verifier interface {
	Verify(token string, now time.Time) (*Claims, error)
}

var (
	_ TokenSigner = (*TokenIssuer)(nil)
	_ Verifier    = (*TokenVerifier)(nil)
)

// TokenIssuer signs HS256 tokens. Issue reads nothing but its arguments and
// the secret, so the same inputs always produce the same token.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

func NewTokenIssuer(cfg config.JWTConfig) *TokenIssuer {
	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(cfg.SecretKey), ttl: ttl, issuer: cfg.Issuer}
}

// TTL is the lifetime given to every issued token.
func (i *TokenIssuer) TTL() time.Duration { return i.ttl }

// Issue binds user's identity into a token valid for [now, now+TTL).
// The registered "exp" is rounded up to the next second and only bounds the
// exact expiry carried in "exp_ns".
func (i *TokenIssuer) Issue(user *User, now time.Time) (string, error) {
	if len(i.secret) == 0 {
		return "", fmt.Errorf("%w: secret is not configured", ErrSigning)
	}
	if user == nil {
		return "", fmt.Errorf("%w: no user", ErrSigning)
	}
	expiry := now.Add(i.ttl)

	claims := Claims{
		UserID:        user.ID,
		Username:      user.Username,
		Email:         user.Email,
		ExpiresAtNano: expiry.UnixNano(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(ceilSecond(expiry)),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return signed, nil
}

// TokenVerifier checks signature, then expiry. It keeps no state between calls.
type TokenVerifier struct {
	secret []byte
	issuer string
}

func NewTokenVerifier(cfg config.JWTConfig) *TokenVerifier {
	return &TokenVerifier{secret: []byte(cfg.SecretKey), issuer: cfg.Issuer}
}

// Verify returns the token's claims when its signature is valid and now is
// before its exact expiry. Malformed tokens and bad signatures both yield
// ErrInvalidToken.
func (v *TokenVerifier) Verify(token string, now time.Time) (*Claims, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	if len(v.secret) == 0 {
		return nil, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, v.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !parsed.Valid || claims.ExpiresAtNano == 0 {
		return nil, ErrInvalidToken
	}
	if !now.Before(claims.Expiry()) {
		return nil, ErrExpiredToken
	}
	return claims, nil
}

func ceilSecond(t time.Time) time.Time {
	c := t.Truncate(time.Second)
	if c.Before(t) {
		c = c.Add(time.Second)
	}
	return c
}

func (v *TokenVerifier) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return v.secret, nil
}
