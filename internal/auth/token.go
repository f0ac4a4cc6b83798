// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors. Every parse failure maps to exactly one of these.
var (
	// ErrTokenExpired means the signature is valid but exp has passed.
	ErrTokenExpired = errors.New("session token expired")

	// ErrTokenInvalid covers bad signatures, wrong algorithms and malformed tokens.
	ErrTokenInvalid = errors.New("session token invalid")
)

// minSecretLength matches the HS256 key length enforced by config validation.
const minSecretLength = 32

// SessionClaims are the claims carried by a session token.
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenSigner issues and verifies session tokens.
type TokenSigner struct {
	secret      []byte
	maxLifetime time.Duration
	now         func() time.Time
}

// NewTokenSigner creates a signer. maxLifetime bounds every token from its
// session's creation time; the server-side session expiry slides
// independently within that bound.
//
// An empty secret is rejected. Short secrets are accepted here so
// development setups can run, but config validation refuses them in
// production.
func NewTokenSigner(secret string, maxLifetime time.Duration) (*TokenSigner, error) {
	if secret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required but was empty")
	}
	if maxLifetime <= 0 {
		return nil, fmt.Errorf("token max lifetime must be positive, got %v", maxLifetime)
	}
	return &TokenSigner{
		secret:      []byte(secret),
		maxLifetime: maxLifetime,
		now:         time.Now,
	}, nil
}

// Issue creates a signed token for the session.
//
// Token Claims:
//   - sid: the server-side session id
//   - sub: the user id
//   - iat: session creation time
//   - exp: session creation time plus the max lifetime
func (s *TokenSigner) Issue(session *Session) (string, error) {
	claims := &SessionClaims{
		SessionID: session.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.UserID,
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(session.CreatedAt.Add(s.maxLifetime)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the session id.
//
// Only HS256 is accepted, which rules out "none" and algorithm confusion.
// Expired tokens return ErrTokenExpired; everything else that fails
// returns ErrTokenInvalid wrapping the parser error.
func (s *TokenSigner) Verify(tokenString string) (string, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid || claims.SessionID == "" {
		return "", fmt.Errorf("%w: missing session id", ErrTokenInvalid)
	}
	return claims.SessionID, nil
}

// MaxLifetime returns the absolute token lifetime.
func (s *TokenSigner) MaxLifetime() time.Duration {
	return s.maxLifetime
}
