package auth

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the fixed lifetime of an access token.
const TokenTTL = time.Hour

type tokenClaims struct {
	UserID string `json:"id"`
	Role   string `json:"role"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies HS256 access tokens with a process-wide secret.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption configures a TokenCodec.
type TokenOption func(*TokenCodec)

// WithClock overrides the time source, used by tests to cross expiry.
func WithClock(now func() time.Time) TokenOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewTokenCodec requires a non-empty secret.
// The secret is copied so later changes by the caller have no effect.
func NewTokenCodec(secret []byte, opts ...TokenOption) (*TokenCodec, error) {
	if len(bytes.TrimSpace(secret)) == 0 {
		return nil, errors.New("auth: token secret is required")
	}
	c := &TokenCodec{secret: bytes.Clone(secret), ttl: TokenTTL, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue signs a token for id that expires TokenTTL from now.
func (c *TokenCodec) Issue(id Identity) (string, time.Time, error) {
	if id.ID == "" || !id.Role.Valid() {
		return "", time.Time{}, fmt.Errorf("%w: identity requires id and a valid role", ErrValidation)
	}
	now := c.now()
	expiresAt := now.Add(c.ttl)
	claims := tokenClaims{
		UserID: id.ID,
		Role:   string(id.Role),
		Name:   id.Name,
		Email:  id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, algorithm and expiry, then returns the embedded identity.
// Failures wrap ErrTokenExpired or ErrTokenMalformed.
func (c *TokenCodec) Verify(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrTokenMalformed
	}
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	role := Role(claims.Role)
	if claims.UserID == "" || !role.Valid() {
		return Identity{}, fmt.Errorf("%w: missing id or unknown role", ErrTokenMalformed)
	}
	return Identity{ID: claims.UserID, Role: role, Name: claims.Name, Email: claims.Email}, nil
}
