package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenIssuer creates RS256 signed, time bounded identity tokens. It is
// stateless apart from the immutable key pair and safe for concurrent use.
type TokenIssuer struct {
	keys   *KeyPair
	ttl    time.Duration
	issuer string
	clock  func() time.Time
	logger Logger
}

type TokenIssuerOption func(*TokenIssuer)

// WithIssuerClock overrides the issuance clock, used from tests.
func WithIssuerClock(clock func() time.Time) TokenIssuerOption {
	return func(ti *TokenIssuer) {
		if clock != nil {
			ti.clock = clock
		}
	}
}

// WithIssuerName sets the registered issuer claim.
func WithIssuerName(name string) TokenIssuerOption {
	return func(ti *TokenIssuer) {
		ti.issuer = name
	}
}

// NewTokenIssuer creates a new TokenIssuer. A missing signing key is a
// configuration error; callers are expected to treat it as fatal at startup.
func NewTokenIssuer(keys *KeyPair, cfg Config, logger Logger, opts ...TokenIssuerOption) (*TokenIssuer, error) {
	if !keys.CanSign() {
		return nil, goerrors.New("token issuer requires a signing key", goerrors.CategoryInternal).
			WithTextCode(TextCodeMissingKey)
	}

	if logger == nil {
		logger = defLogger{}
	}

	ttl := 24 * time.Hour
	if cfg != nil && cfg.GetTokenExpiration() > 0 {
		ttl = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	ti := &TokenIssuer{
		keys:   keys,
		ttl:    ttl,
		clock:  time.Now,
		logger: logger,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ti)
		}
	}

	return ti, nil
}

// Issue creates a token for the given identity using the default lifetime.
func (ti *TokenIssuer) Issue(identity Identity) (string, error) {
	return ti.IssueWithTTL(identity, ti.ttl)
}

// IssueWithTTL creates a token for the given identity with an explicit
// lifetime. Expiration is always computed from the issuer's clock, never
// from a caller supplied timestamp.
func (ti *TokenIssuer) IssueWithTTL(identity Identity, ttl time.Duration) (string, error) {
	if identity == nil {
		return "", goerrors.New("identity is required", goerrors.CategoryBadInput)
	}
	if identity.ID() == "" || identity.Username() == "" {
		return "", goerrors.New("identity must carry an id and a username", goerrors.CategoryBadInput)
	}
	if ttl <= 0 {
		return "", goerrors.New("token TTL must be positive", goerrors.CategoryBadInput)
	}

	now := ti.clock()
	claims := &IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.issuer,
			Subject:   identity.ID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UUID:     identity.ID(),
		Username: identity.Username(),
		Email:    identity.Email(),
	}

	return ti.SignClaims(claims)
}

// IssueScoped mints a short lived token carrying only the user identifier,
// used for the registration broadcast. It returns the expiration so callers
// can log or schedule around it.
func (ti *TokenIssuer) IssueScoped(userID string, ttl time.Duration) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, goerrors.New("user id is required", goerrors.CategoryBadInput)
	}
	if ttl <= 0 {
		return "", time.Time{}, goerrors.New("token TTL must be positive", goerrors.CategoryBadInput)
	}

	now := ti.clock()
	expiresAt := now.Add(ttl)

	claims := &IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UUID: userID,
	}

	token, err := ti.SignClaims(claims)
	if err != nil {
		return "", time.Time{}, err
	}

	return token, expiresAt, nil
}

// SignClaims signs arbitrary claims using the configured signing key.
func (ti *TokenIssuer) SignClaims(claims *IdentityClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)

	signed, err := token.SignedString(ti.keys.SigningKey())
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signed, nil
}
