package session

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var errSecretTooShort = errors.New("hs256 requires a secret of at least 32 bytes")

// keyPair is the resolved signing material for one method. HS256 signs and
// verifies with the same secret.
type keyPair struct {
	method jwt.SigningMethod
	sign   any
	verify any
}

func loadKeys(cfg Config) (keyPair, error) {
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return keyPair{}, errSecretTooShort
		}
		return keyPair{method: jwt.SigningMethodHS256, sign: cfg.PrivateKey, verify: cfg.PrivateKey}, nil
	case MethodEd25519:
		priv, err := edKey[ed25519.PrivateKey](cfg.PrivateKey, ed25519.PrivateKeySize, jwt.ParseEdPrivateKeyFromPEM)
		if err != nil {
			return keyPair{}, fmt.Errorf("ed25519 private key: %w", err)
		}
		pub, err := edKey[ed25519.PublicKey](cfg.PublicKey, ed25519.PublicKeySize, jwt.ParseEdPublicKeyFromPEM)
		if err != nil {
			return keyPair{}, fmt.Errorf("ed25519 public key: %w", err)
		}
		return keyPair{method: jwt.SigningMethodEdDSA, sign: priv, verify: pub}, nil
	default:
		return keyPair{}, fmt.Errorf("unsupported signing method %q", cfg.SigningMethod)
	}
}

// edKey accepts either raw key bytes of the exact size or a PEM block.
func edKey[K ~[]byte, P any](raw []byte, size int, fromPEM func([]byte) (P, error)) (K, error) {
	if len(raw) == size {
		return K(raw), nil
	}
	parsed, err := fromPEM(raw)
	if err != nil {
		return nil, err
	}
	key, ok := any(parsed).(K)
	if !ok {
		return nil, fmt.Errorf("unexpected key type %T", parsed)
	}
	return key, nil
}
