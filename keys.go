package auth

import (
	"crypto/rsa"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// KeyPair holds the RSA key material for token signing and verification.
// A process that only verifies may carry just the public key, and one that
// only issues may carry just the private key. Loaded once at startup and
// immutable afterwards, so it is safe to share between goroutines.
type KeyPair struct {
	private *rsa.PrivateKey
	public  *rsa.PublicKey
}

// LoadKeyPair parses PEM encoded key material. Either argument may be empty;
// when both keys are present they must belong together.
func LoadKeyPair(privatePEM, publicPEM string) (*KeyPair, error) {
	kp := &KeyPair{}

	if privatePEM != "" {
		key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privatePEM))
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to parse RSA private key").
				WithTextCode(TextCodeMissingKey)
		}
		kp.private = key
	}

	if publicPEM != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicPEM))
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to parse RSA public key").
				WithTextCode(TextCodeMissingKey)
		}
		kp.public = key
	}

	if kp.private != nil && kp.public != nil {
		if kp.private.PublicKey.N.Cmp(kp.public.N) != 0 || kp.private.PublicKey.E != kp.public.E {
			return nil, goerrors.New("private and public keys do not match", goerrors.CategoryInternal).
				WithTextCode(TextCodeMissingKey)
		}
	}

	// Derive the verification key when only the signing key was supplied,
	// so a single-key deployment can still verify its own tokens.
	if kp.private != nil && kp.public == nil {
		kp.public = &kp.private.PublicKey
	}

	return kp, nil
}

// NewKeyPair wraps already parsed keys, mostly used from tests.
func NewKeyPair(private *rsa.PrivateKey, public *rsa.PublicKey) *KeyPair {
	kp := &KeyPair{private: private, public: public}
	if kp.private != nil && kp.public == nil {
		kp.public = &kp.private.PublicKey
	}
	return kp
}

// CanSign reports whether the pair carries a signing key.
func (k *KeyPair) CanSign() bool {
	return k != nil && k.private != nil
}

// CanVerify reports whether the pair carries a verification key.
func (k *KeyPair) CanVerify() bool {
	return k != nil && k.public != nil
}

// SigningKey returns the private key, nil when the process only verifies.
func (k *KeyPair) SigningKey() *rsa.PrivateKey {
	if k == nil {
		return nil
	}
	return k.private
}

// VerificationKey returns the public key, nil when the process only issues.
func (k *KeyPair) VerificationKey() *rsa.PublicKey {
	if k == nil {
		return nil
	}
	return k.public
}
