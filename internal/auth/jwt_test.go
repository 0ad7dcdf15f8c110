package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duelgate/internal/session"
)

type fakeStore struct {
	err   error
	calls int
}

func (s *fakeStore) Lookup(context.Context, session.PlayerID, string) error {
	s.calls++
	return s.err
}

func TestJWTVerifier_IssueAndVerify(t *testing.T) {
	v := NewJWTVerifier("secret", nil)
	token, err := v.Issue(42, "alice", time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, session.PlayerID(42), id)
}

func TestJWTVerifier_SubjectOnly(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "7"}).
		SignedString([]byte("secret"))
	require.NoError(t, err)

	id, err := NewJWTVerifier("secret", nil).Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, session.PlayerID(7), id)
}

func TestJWTVerifier_Rejects(t *testing.T) {
	v := NewJWTVerifier("secret", nil)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		ID:               1,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	wrongKey, err := NewJWTVerifier("other", nil).Issue(1, "", 0)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).
		SignedString([]byte("secret"))
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "bob"}).
		SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":       "",
		"garbage":     "not-a-jwt",
		"expired":     expired,
		"wrong key":   wrongKey,
		"no subject":  noSubject,
		"bad subject": badSubject,
	} {
		_, err := v.Verify(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
}

func TestJWTVerifier_RejectsOtherAlgorithms(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, &Claims{ID: 1}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewJWTVerifier("secret", nil).Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTVerifier_TokenStore(t *testing.T) {
	store := &fakeStore{}
	v := NewJWTVerifier("secret", store)
	token, err := v.Issue(3, "carol", 0)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, 1, store.calls)

	store.err = fmt.Errorf("player 3: %w", ErrTokenRevoked)
	_, err = v.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	down := errors.New("connection refused")
	store.err = down
	_, err = v.Verify(context.Background(), token)
	assert.ErrorIs(t, err, down)
	assert.NotErrorIs(t, err, ErrTokenRevoked)
}
