package jwtinfra

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/guildgate/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateSigner_RoundTrip(t *testing.T) {
	s, err := NewStateSigner("secret", 10*time.Minute)
	require.NoError(t, err)

	tok, err := s.Sign("42", "7")
	require.NoError(t, err)

	claims, err := s.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "7", claims.CommunityID)
}

func TestStateSigner_EmptySecret(t *testing.T) {
	_, err := NewStateSigner("", time.Minute)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestStateSigner_WrongSecret(t *testing.T) {
	a, _ := NewStateSigner("secret-a", time.Minute)
	b, _ := NewStateSigner("secret-b", time.Minute)

	tok, err := a.Sign("42", "7")
	require.NoError(t, err)
	_, err = b.Verify(tok)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestStateSigner_Expired(t *testing.T) {
	s, _ := NewStateSigner("secret", time.Minute)
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issued }
	tok, err := s.Sign("42", "7")
	require.NoError(t, err)

	s.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestStateSigner_RejectsOtherAlgorithms(t *testing.T) {
	s, _ := NewStateSigner("secret", time.Minute)
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, StateClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "42"},
	})
	tok, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestStateSigner_Garbage(t *testing.T) {
	s, _ := NewStateSigner("secret", time.Minute)
	_, err := s.Verify("not-a-token")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}
