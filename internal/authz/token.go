// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package authz models the opaque capability tokens a saga carries: a
// JWT-backed handle exposed to node bodies via a saga Context, which
// datastore and remote collaborators pass through on every call. It
// holds no authn/authz policy logic of its own; that lives at the
// outer API surface that mints tokens.
package authz

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidTokenSecret indicates the signing secret is empty or unusable.
var ErrInvalidTokenSecret = errors.New("invalid token secret")

// TokenSecret is an opaque handle to JWT signing key material. The
// zero value is invalid, forcing callers through the constructor.
type TokenSecret struct {
	key []byte
}

// NewTokenSecret creates a TokenSecret from raw key bytes, defensively
// copied so the caller can't mutate it after construction.
func NewTokenSecret(key []byte) (TokenSecret, error) {
	if len(key) == 0 {
		return TokenSecret{}, ErrInvalidTokenSecret
	}
	cp := make([]byte, len(key))
	copy(cp, key)
	return TokenSecret{key: cp}, nil
}

func (ts TokenSecret) signingKey() []byte { return ts.key }

func (ts TokenSecret) IsValid() bool { return len(ts.key) > 0 }

// String never reveals key material.
func (ts TokenSecret) String() string { return "[REDACTED]" }

// MarshalJSON prevents the secret leaking into logs or API responses.
func (ts TokenSecret) MarshalJSON() ([]byte, error) { return []byte(`"[REDACTED]"`), nil }

// Claims is the capability carried by a Token: who it authorizes, and
// for which silo/project scope every node body's datastore/remote
// calls are bound to.
type Claims struct {
	jwt.RegisteredClaims
	SiloID    string   `json:"silo_id"`
	ProjectID string   `json:"project_id"`
	Scopes    []string `json:"scopes"`
}

// Token is the opaque capability token a saga Context exposes to
// datastore and remote collaborators.
type Token struct {
	raw    string
	claims Claims
}

// Raw returns the bearer-token string suitable for an Authorization header.
func (t Token) Raw() string { return t.raw }

// SiloID returns the silo the token is scoped to.
func (t Token) SiloID() string { return t.claims.SiloID }

// ProjectID returns the project the token is scoped to.
func (t Token) ProjectID() string { return t.claims.ProjectID }

// HasScope reports whether the token carries the given scope.
func (t Token) HasScope(scope string) bool {
	for _, s := range t.claims.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Issuer mints capability tokens for a saga's auth_token parameter.
type Issuer struct {
	secret TokenSecret
	ttl    time.Duration
}

func NewIssuer(secret TokenSecret, ttl time.Duration) (*Issuer, error) {
	if !secret.IsValid() {
		return nil, ErrInvalidTokenSecret
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{secret: secret, ttl: ttl}, nil
}

func (i *Issuer) Issue(subject, siloID, projectID string, scopes []string) (Token, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		SiloID:    siloID,
		ProjectID: projectID,
		Scopes:    scopes,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := tok.SignedString(i.secret.signingKey())
	if err != nil {
		return Token{}, err
	}
	return Token{raw: raw, claims: claims}, nil
}

// Verifier validates capability tokens before a node body uses them.
type Verifier struct {
	secret TokenSecret
}

func NewVerifier(secret TokenSecret) *Verifier { return &Verifier{secret: secret} }

func (v *Verifier) Verify(raw string) (Token, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return v.secret.signingKey(), nil
	})
	if err != nil || !parsed.Valid {
		return Token{}, errors.New("invalid capability token")
	}
	return Token{raw: raw, claims: claims}, nil
}
