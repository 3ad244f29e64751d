package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// UserProvider resolves identities from the user store and checks
// credentials for the token obtain flow.
type UserProvider struct {
	store  Users
	logger Logger
}

// NewUserProvider will create a new UserProvider
func NewUserProvider(store Users) *UserProvider {
	return &UserProvider{
		store:  store,
		logger: defLogger{},
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	if l != nil {
		u.logger = l
	}
	return u
}

// VerifyIdentity will find the user by username or email, compare the
// password, and return the identity. A missing account burns a hash anyway
// so lookup misses are not observable through response timing.
func (u *UserProvider) VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error) {
	user, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if goerrors.IsNotFound(err) {
			levelTiming(password)
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during verification")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, ErrMismatchedHashAndPassword
	}

	return user.Identity(), nil
}

// FindIdentityByIdentifier resolves an identity without checking credentials.
func (u *UserProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	user, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return user.Identity(), nil
}
