package jwtinfra

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/guildgate/internal/domain"
)

// StateClaims bind an OAuth round-trip to the user and community that
// started it. Subject carries the user id.
type StateClaims struct {
	CommunityID string `json:"gid"`
	jwt.RegisteredClaims
}

// StateSigner signs and verifies HS256 OAuth state tokens.
type StateSigner struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewStateSigner(secret string, expiry time.Duration) (*StateSigner, error) {
	if secret == "" {
		return nil, fmt.Errorf("state secret is empty: %w", domain.ErrConfiguration)
	}
	return &StateSigner{secret: []byte(secret), expiry: expiry, now: time.Now}, nil
}

func (s *StateSigner) Sign(userID, communityID string) (string, error) {
	now := s.now()
	claims := StateClaims{
		CommunityID: communityID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks the signature and expiry. Every failure wraps
// domain.ErrInvalidState.
func (s *StateSigner) Verify(tokenStr string) (*StateClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &StateClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrInvalidState)
	}
	claims, ok := token.Claims.(*StateClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("invalid state claims: %w", domain.ErrInvalidState)
	}
	return claims, nil
}
