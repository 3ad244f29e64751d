package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/foothub/auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func confirmationToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()

	issuer, err := auth.NewTokenIssuer(testKeyPair(t), defaultTestConfig(), nil)
	require.NoError(t, err)

	identity := newMockIdentity(userID.String(), "Chi", "chi@foothub.com")
	tokenString, err := issuer.IssueWithTTL(identity, 24*time.Hour)
	require.NoError(t, err)

	return tokenString
}

func newConfirmVerifier(t *testing.T) *auth.TokenVerifier {
	t.Helper()
	verifier, err := auth.NewTokenVerifier(testKeyPair(t), defaultTestConfig(), nil)
	require.NoError(t, err)
	return verifier
}

func TestConfirmEmailHandler(t *testing.T) {
	userID := uuid.New()

	t.Run("redeems a valid token", func(t *testing.T) {
		users := &MockUsers{}
		users.On("GetByID", mock.Anything, userID.String()).
			Return(&auth.User{ID: userID, Username: "Chi", Email: "chi@foothub.com"}, nil)
		users.On("ConfirmEmail", mock.Anything, userID).Return(nil)

		repo := &MockRepositoryManager{}
		repo.On("Users").Return(users)

		handler := &auth.ConfirmEmailHandler{Repo: repo, Verifier: newConfirmVerifier(t)}

		var resp *auth.ConfirmEmailResponse
		err := handler.Execute(context.Background(), auth.ConfirmEmailMessage{
			Token:      confirmationToken(t, userID),
			OnResponse: func(r *auth.ConfirmEmailResponse) { resp = r },
		})

		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, userID.String(), resp.UserID)
		assert.True(t, resp.Confirmed)
		assert.False(t, resp.AlreadyConfirmed)

		users.AssertExpectations(t)
	})

	t.Run("second redemption is a no-op success", func(t *testing.T) {
		users := &MockUsers{}
		users.On("GetByID", mock.Anything, userID.String()).
			Return(&auth.User{ID: userID, Username: "Chi", EmailConfirmed: true}, nil)

		repo := &MockRepositoryManager{}
		repo.On("Users").Return(users)

		handler := &auth.ConfirmEmailHandler{Repo: repo, Verifier: newConfirmVerifier(t)}

		var resp *auth.ConfirmEmailResponse
		err := handler.Execute(context.Background(), auth.ConfirmEmailMessage{
			Token:      confirmationToken(t, userID),
			OnResponse: func(r *auth.ConfirmEmailResponse) { resp = r },
		})

		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.True(t, resp.Confirmed)
		assert.True(t, resp.AlreadyConfirmed)

		// The update must not run for an already confirmed user.
		users.AssertNotCalled(t, "ConfirmEmail", mock.Anything, mock.Anything)
	})

	t.Run("rejects a tainted token without touching storage", func(t *testing.T) {
		users := &MockUsers{}
		repo := &MockRepositoryManager{}

		handler := &auth.ConfirmEmailHandler{Repo: repo, Verifier: newConfirmVerifier(t)}

		err := handler.Execute(context.Background(), auth.ConfirmEmailMessage{
			Token: confirmationToken(t, userID) + "_taint",
		})

		require.Error(t, err)
		assert.True(t, auth.IsMalformedError(err))
		users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("rejects a token whose uuid claim is not a uuid", func(t *testing.T) {
		issuer, err := auth.NewTokenIssuer(testKeyPair(t), defaultTestConfig(), nil)
		require.NoError(t, err)

		tokenString, err := issuer.Issue(newMockIdentity("abc-123", "Chi", "chi@foothub.com"))
		require.NoError(t, err)

		handler := &auth.ConfirmEmailHandler{Repo: &MockRepositoryManager{}, Verifier: newConfirmVerifier(t)}

		err = handler.Execute(context.Background(), auth.ConfirmEmailMessage{Token: tokenString})

		require.Error(t, err)
		assert.True(t, auth.IsMalformedError(err))
	})

	t.Run("unknown user yields identity not found", func(t *testing.T) {
		users := &MockUsers{}
		users.On("GetByID", mock.Anything, userID.String()).Return(nil, auth.ErrIdentityNotFound)

		repo := &MockRepositoryManager{}
		repo.On("Users").Return(users)

		handler := &auth.ConfirmEmailHandler{Repo: repo, Verifier: newConfirmVerifier(t)}

		err := handler.Execute(context.Background(), auth.ConfirmEmailMessage{
			Token: confirmationToken(t, userID),
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrIdentityNotFound)
	})

	t.Run("empty token is a validation error", func(t *testing.T) {
		handler := &auth.ConfirmEmailHandler{Repo: &MockRepositoryManager{}, Verifier: newConfirmVerifier(t)}

		err := handler.Execute(context.Background(), auth.ConfirmEmailMessage{})
		assert.Error(t, err)
	})

	t.Run("cancelled context aborts before any work", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		handler := &auth.ConfirmEmailHandler{Repo: &MockRepositoryManager{}, Verifier: newConfirmVerifier(t)}

		err := handler.Execute(ctx, auth.ConfirmEmailMessage{Token: confirmationToken(t, userID)})
		assert.Error(t, err)
	})
}
