package auth_test

import (
	"testing"
	"time"

	"github.com/foothub/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenVerifier(t *testing.T) {
	t.Run("creates verifier with verification key", func(t *testing.T) {
		verifier, err := auth.NewTokenVerifier(testKeyPair(t), defaultTestConfig(), nil)

		assert.NoError(t, err)
		assert.NotNil(t, verifier)
	})

	t.Run("fails without a verification key", func(t *testing.T) {
		verifier, err := auth.NewTokenVerifier(auth.NewKeyPair(nil, nil), defaultTestConfig(), nil)

		assert.Error(t, err)
		assert.Nil(t, verifier)
	})
}

func TestTokenVerifier_Verify(t *testing.T) {
	issuedAt := time.Now().Truncate(time.Second)
	issuerClock := func() time.Time { return issuedAt }

	issuer, err := auth.NewTokenIssuer(testKeyPair(t), defaultTestConfig(), nil,
		auth.WithIssuerClock(issuerClock))
	require.NoError(t, err)

	newVerifier := func(t *testing.T, at time.Time) *auth.TokenVerifier {
		t.Helper()
		verifier, err := auth.NewTokenVerifier(testKeyPair(t), defaultTestConfig(), nil,
			auth.WithVerifierClock(func() time.Time { return at }))
		require.NoError(t, err)
		return verifier
	}

	t.Run("round trips a fresh token", func(t *testing.T) {
		tokenString, err := issuer.Issue(newMockIdentity("abc-123", "Chi", "chi@foothub.com"))
		require.NoError(t, err)

		claims, err := newVerifier(t, issuedAt).Verify(tokenString)

		require.NoError(t, err)
		assert.Equal(t, "abc-123", claims.UserID())
		assert.Equal(t, "Chi", claims.DisplayName())
	})

	t.Run("accepts a token right before its expiration", func(t *testing.T) {
		tokenString, err := issuer.Issue(newMockIdentity("abc-123", "Chi", "chi@foothub.com"))
		require.NoError(t, err)

		_, err = newVerifier(t, issuedAt.Add(24*time.Hour-time.Second)).Verify(tokenString)
		assert.NoError(t, err)
	})

	t.Run("rejects a token past its lifetime", func(t *testing.T) {
		tokenString, err := issuer.Issue(newMockIdentity("abc-123", "Chi", "chi@foothub.com"))
		require.NoError(t, err)

		_, err = newVerifier(t, issuedAt.Add(25*time.Hour)).Verify(tokenString)

		require.Error(t, err)
		assert.True(t, auth.IsTokenExpiredError(err))
		assert.False(t, auth.IsMalformedError(err))
	})

	t.Run("rejects a tainted token", func(t *testing.T) {
		tokenString, err := issuer.Issue(newMockIdentity("abc-123", "Chi", "chi@foothub.com"))
		require.NoError(t, err)

		_, err = newVerifier(t, issuedAt).Verify(tokenString + "_taint")

		require.Error(t, err)
		assert.True(t, auth.IsMalformedError(err))
	})

	t.Run("rejects garbage input", func(t *testing.T) {
		verifier := newVerifier(t, issuedAt)

		for _, tokenString := range []string{"", "not-a-token", "a.b.c"} {
			_, err := verifier.Verify(tokenString)
			require.Error(t, err)
			assert.True(t, auth.IsMalformedError(err))
		}
	})

	t.Run("token signed with a foreign key is indistinguishable from garbage", func(t *testing.T) {
		foreignIssuer, err := auth.NewTokenIssuer(foreignKeyPair(t), defaultTestConfig(), nil,
			auth.WithIssuerClock(issuerClock))
		require.NoError(t, err)

		tokenString, err := foreignIssuer.Issue(newMockIdentity("abc-123", "Chi", "chi@foothub.com"))
		require.NoError(t, err)

		_, err = newVerifier(t, issuedAt).Verify(tokenString)

		require.Error(t, err)
		assert.True(t, auth.IsMalformedError(err))
		assert.False(t, auth.IsTokenExpiredError(err))
	})

	t.Run("rejects a token without identity claims", func(t *testing.T) {
		tokenString, _, err := issuer.IssueScoped("abc-123", 5*time.Minute)
		require.NoError(t, err)

		_, err = newVerifier(t, issuedAt).Verify(tokenString)

		require.Error(t, err)
		assert.True(t, auth.IsMalformedError(err))
	})
}

func TestTokenVerifier_VerifyScoped(t *testing.T) {
	issuedAt := time.Now().Truncate(time.Second)
	issuerClock := func() time.Time { return issuedAt }

	issuer, err := auth.NewTokenIssuer(testKeyPair(t), defaultTestConfig(), nil,
		auth.WithIssuerClock(issuerClock))
	require.NoError(t, err)

	t.Run("accepts a uuid only token", func(t *testing.T) {
		tokenString, _, err := issuer.IssueScoped("abc-123", 5*time.Minute)
		require.NoError(t, err)

		verifier, err := auth.NewTokenVerifier(testKeyPair(t), defaultTestConfig(), nil,
			auth.WithVerifierClock(issuerClock))
		require.NoError(t, err)

		claims, err := verifier.VerifyScoped(tokenString)
		require.NoError(t, err)
		assert.Equal(t, "abc-123", claims.UserID())
	})

	t.Run("still rejects expired tokens", func(t *testing.T) {
		tokenString, _, err := issuer.IssueScoped("abc-123", 5*time.Minute)
		require.NoError(t, err)

		verifier, err := auth.NewTokenVerifier(testKeyPair(t), defaultTestConfig(), nil,
			auth.WithVerifierClock(func() time.Time { return issuedAt.Add(6 * time.Minute) }))
		require.NoError(t, err)

		_, err = verifier.VerifyScoped(tokenString)
		require.Error(t, err)
		assert.True(t, auth.IsTokenExpiredError(err))
	})
}

func TestTokenVerifier_ExpirationKnob(t *testing.T) {
	issuedAt := time.Now().Truncate(time.Second)

	issuer, err := auth.NewTokenIssuer(testKeyPair(t), defaultTestConfig(), nil,
		auth.WithIssuerClock(func() time.Time { return issuedAt }))
	require.NoError(t, err)

	tokenString, err := issuer.Issue(newMockIdentity("abc-123", "Chi", "chi@foothub.com"))
	require.NoError(t, err)

	t.Run("expired token passes when expiration checking is disabled", func(t *testing.T) {
		cfg := defaultTestConfig()
		cfg.verifyExpiration = false

		verifier, err := auth.NewTokenVerifier(testKeyPair(t), cfg, nil,
			auth.WithVerifierClock(func() time.Time { return issuedAt.Add(48 * time.Hour) }))
		require.NoError(t, err)

		claims, err := verifier.Verify(tokenString)
		require.NoError(t, err)
		assert.Equal(t, "abc-123", claims.UserID())
	})

	t.Run("signature is still checked with expiration disabled", func(t *testing.T) {
		cfg := defaultTestConfig()
		cfg.verifyExpiration = false

		verifier, err := auth.NewTokenVerifier(testKeyPair(t), cfg, nil)
		require.NoError(t, err)

		_, err = verifier.Verify(tokenString + "_taint")
		require.Error(t, err)
		assert.True(t, auth.IsMalformedError(err))
	})
}
