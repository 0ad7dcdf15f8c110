// Package auth resolves connection tokens to player identities.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"duelgate/internal/session"
)

// ErrInvalidToken is returned for tokens that fail parsing, signature or
// expiry checks, or that carry no usable player ID.
var ErrInvalidToken = errors.New("invalid or expired token")

// ErrTokenRevoked is returned by a TokenStore for a validly signed token
// that is not, or no longer, on record.
var ErrTokenRevoked = errors.New("token revoked")

// Verifier resolves a connection token to a player identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (session.PlayerID, error)
}

// TokenStore confirms that an issued token is still active. Unknown tokens
// report ErrTokenRevoked.
type TokenStore interface {
	Lookup(ctx context.Context, id session.PlayerID, token string) error
}

// Claims is the JWT payload. The player ID is read from the id claim, or
// from a numeric sub when id is absent.
type Claims struct {
	ID       int64  `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// PlayerID returns the player identified by the claims.
func (c *Claims) PlayerID() (session.PlayerID, error) {
	if c.ID > 0 {
		return session.PlayerID(c.ID), nil
	}
	if c.Subject == "" {
		return 0, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: subject %q is not a player id", ErrInvalidToken, c.Subject)
	}
	return session.PlayerID(id), nil
}

// JWTVerifier checks HS256 tokens and, when a store is set, that the token
// was issued and not revoked.
type JWTVerifier struct {
	key   []byte
	store TokenStore
}

// NewJWTVerifier creates a verifier for tokens signed with secret.
// store may be nil to skip the token lookup.
func NewJWTVerifier(secret string, store TokenStore) *JWTVerifier {
	return &JWTVerifier{key: []byte(secret), store: store}
}

// Verify implements Verifier.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (session.PlayerID, error) {
	if token == "" {
		return 0, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := claims.PlayerID()
	if err != nil {
		return 0, err
	}

	if v.store != nil {
		if err := v.store.Lookup(ctx, id, token); err != nil {
			return 0, fmt.Errorf("checking token store: %w", err)
		}
	}
	return id, nil
}

// Issue signs a token for id. A zero ttl issues a token without expiry.
func (v *JWTVerifier) Issue(id session.PlayerID, username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		ID:       int64(id),
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  strconv.FormatInt(int64(id), 10),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
}
