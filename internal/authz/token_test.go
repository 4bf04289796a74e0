// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package authz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	secret, err := NewTokenSecret([]byte("super-secret-key-material"))
	require.NoError(t, err)

	issuer, err := NewIssuer(secret, time.Minute)
	require.NoError(t, err)

	tok, err := issuer.Issue("saga-engine", "silo-1", "project-1", []string{"disk:snapshot"})
	require.NoError(t, err)
	require.NotEmpty(t, tok.Raw())

	verifier := NewVerifier(secret)
	verified, err := verifier.Verify(tok.Raw())
	require.NoError(t, err)
	require.Equal(t, "silo-1", verified.SiloID())
	require.Equal(t, "project-1", verified.ProjectID())
	require.True(t, verified.HasScope("disk:snapshot"))
	require.False(t, verified.HasScope("disk:delete"))
}

func TestVerify_WrongSecretRejected(t *testing.T) {
	secret1, _ := NewTokenSecret([]byte("secret-one-secret-one"))
	secret2, _ := NewTokenSecret([]byte("secret-two-secret-two"))

	issuer, _ := NewIssuer(secret1, time.Minute)
	tok, err := issuer.Issue("sub", "silo", "project", nil)
	require.NoError(t, err)

	_, err = NewVerifier(secret2).Verify(tok.Raw())
	require.Error(t, err)
}

func TestTokenSecret_RedactsValue(t *testing.T) {
	secret, err := NewTokenSecret([]byte("hunter2hunter2"))
	require.NoError(t, err)
	require.Equal(t, "[REDACTED]", secret.String())

	_, err = NewTokenSecret(nil)
	require.ErrorIs(t, err, ErrInvalidTokenSecret)
}
