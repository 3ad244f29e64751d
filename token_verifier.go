package auth

import (
	stderrors "errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenVerifier validates tokens against the configured public key and
// recovers the embedded claims. Verification is a pure function of
// (token, key, now): no I/O, no retries, safe for concurrent use.
type TokenVerifier struct {
	keys             *KeyPair
	verifyExpiration bool
	clock            func() time.Time
	logger           Logger
}

type TokenVerifierOption func(*TokenVerifier)

// WithVerifierClock overrides the verification clock, used from tests.
func WithVerifierClock(clock func() time.Time) TokenVerifierOption {
	return func(tv *TokenVerifier) {
		if clock != nil {
			tv.clock = clock
		}
	}
}

// NewTokenVerifier creates a new TokenVerifier. A missing verification key
// is a configuration error; callers are expected to treat it as fatal at
// startup. Expiration checking follows cfg.GetVerifyExpiration and is only
// ever disabled through that explicit knob.
func NewTokenVerifier(keys *KeyPair, cfg Config, logger Logger, opts ...TokenVerifierOption) (*TokenVerifier, error) {
	if !keys.CanVerify() {
		return nil, goerrors.New("token verifier requires a verification key", goerrors.CategoryInternal).
			WithTextCode(TextCodeMissingKey)
	}

	if logger == nil {
		logger = defLogger{}
	}

	verifyExpiration := true
	if cfg != nil {
		verifyExpiration = cfg.GetVerifyExpiration()
	}

	tv := &TokenVerifier{
		keys:             keys,
		verifyExpiration: verifyExpiration,
		clock:            time.Now,
		logger:           logger,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(tv)
		}
	}

	return tv, nil
}

// Verify validates structure, signature, expiration, and required identity
// claims, in that order. Signature failures are indistinguishable from
// garbage input: both come back as ErrTokenMalformed.
func (tv *TokenVerifier) Verify(tokenString string) (*IdentityClaims, error) {
	claims, err := tv.parse(tokenString)
	if err != nil {
		return nil, err
	}

	if !claims.hasIdentity() {
		tv.logger.Debug("token verified but identity claims are missing")
		return nil, goerrors.New(ErrTokenMalformed.Message, ErrTokenMalformed.Category).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	return claims, nil
}

// VerifyScoped validates a token that carries only a user identifier, such
// as the registration broadcast token. The username claim is not required.
func (tv *TokenVerifier) VerifyScoped(tokenString string) (*IdentityClaims, error) {
	claims, err := tv.parse(tokenString)
	if err != nil {
		return nil, err
	}

	if claims.UserID() == "" {
		return nil, goerrors.New(ErrTokenMalformed.Message, ErrTokenMalformed.Category).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	return claims, nil
}

func (tv *TokenVerifier) parse(tokenString string) (*IdentityClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(tv.clock),
	}

	if !tv.verifyExpiration {
		parserOptions = append(parserOptions, jwt.WithoutClaimsValidation())
	}

	token, err := jwt.ParseWithClaims(tokenString, &IdentityClaims{}, func(t *jwt.Token) (any, error) {
		return tv.keys.VerificationKey(), nil
	}, parserOptions...)

	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	claims, ok := token.Claims.(*IdentityClaims)
	if !ok || !token.Valid {
		tv.logger.Error("token verifier could not decode claims")
		return nil, goerrors.New(ErrTokenMalformed.Message, ErrTokenMalformed.Category).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	return claims, nil
}
