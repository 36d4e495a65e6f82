package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// Supported signing algorithms.
const (
	HS256 = "HS256"
	RS256 = "RS256"
	EdDSA = "EdDSA"
)

// ErrUnknownKey is returned for a kid the provider does not hold.
var ErrUnknownKey = errors.New("unknown signing key")

// Key is one signing key. Sign may be nil for verify-only keys kept
// around during rotation.
type Key struct {
	ID        string
	Algorithm string
	Sign      any
	Verify    any
}

func (k Key) method() (jwt.SigningMethod, error) {
	switch k.Algorithm {
	case HS256:
		return jwt.SigningMethodHS256, nil
	case RS256:
		return jwt.SigningMethodRS256, nil
	case EdDSA:
		return jwt.SigningMethodEdDSA, nil
	}
	return nil, fmt.Errorf("unsupported algorithm %q", k.Algorithm)
}

// KeyProvider supplies the active signing key and any verification key
// by id.
type KeyProvider interface {
	SigningKey() (Key, error)
	VerificationKey(kid string) (Key, error)
}

// KeySet is a fixed KeyProvider. Older keys stay valid for verification
// while the active key signs.
type KeySet struct {
	active string
	keys   map[string]Key
}

// NewKeySet creates a KeySet whose active key is the one with id active.
func NewKeySet(active string, keys ...Key) (*KeySet, error) {
	ks := &KeySet{active: active, keys: make(map[string]Key, len(keys))}
	for _, k := range keys {
		if _, err := k.method(); err != nil {
			return nil, fmt.Errorf("key %s: %w", k.ID, err)
		}
		if k.Verify == nil {
			return nil, fmt.Errorf("key %s has no verification material", k.ID)
		}
		if _, dup := ks.keys[k.ID]; dup {
			return nil, fmt.Errorf("duplicate key id %s", k.ID)
		}
		ks.keys[k.ID] = k
	}
	if k, ok := ks.keys[active]; !ok || k.Sign == nil {
		return nil, fmt.Errorf("active key %q is not a signing key", active)
	}
	return ks, nil
}

// SigningKey returns the active key.
func (ks *KeySet) SigningKey() (Key, error) {
	return ks.keys[ks.active], nil
}

// VerificationKey returns the key with the given id.
func (ks *KeySet) VerificationKey(kid string) (Key, error) {
	k, ok := ks.keys[kid]
	if !ok {
		return Key{}, fmt.Errorf("%w: %q", ErrUnknownKey, kid)
	}
	return k, nil
}

// KeySource describes where a key's material comes from.
type KeySource struct {
	ID             string
	Algorithm      string
	Secret         string
	PublicKeyFile  string
	PrivateKeyFile string
}

// LoadKey reads key material for an HMAC secret or a PEM key pair. For
// asymmetric keys a private key alone is enough; its public half is
// derived.
func LoadKey(src KeySource) (Key, error) {
	k := Key{ID: src.ID, Algorithm: src.Algorithm}

	switch src.Algorithm {
	case HS256:
		if src.Secret == "" {
			return Key{}, fmt.Errorf("key %s: HS256 needs a secret", src.ID)
		}
		k.Sign = []byte(src.Secret)
		k.Verify = []byte(src.Secret)
		return k, nil

	case RS256:
		if src.PrivateKeyFile != "" {
			pem, err := os.ReadFile(src.PrivateKeyFile)
			if err != nil {
				return Key{}, fmt.Errorf("failed to read private key: %w", err)
			}
			priv, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
			if err != nil {
				return Key{}, fmt.Errorf("key %s: %w", src.ID, err)
			}
			k.Sign = priv
			k.Verify = &priv.PublicKey
		}
		if src.PublicKeyFile != "" {
			pem, err := os.ReadFile(src.PublicKeyFile)
			if err != nil {
				return Key{}, fmt.Errorf("failed to read public key: %w", err)
			}
			pub, err := jwt.ParseRSAPublicKeyFromPEM(pem)
			if err != nil {
				return Key{}, fmt.Errorf("key %s: %w", src.ID, err)
			}
			k.Verify = pub
		}

	case EdDSA:
		if src.PrivateKeyFile != "" {
			pem, err := os.ReadFile(src.PrivateKeyFile)
			if err != nil {
				return Key{}, fmt.Errorf("failed to read private key: %w", err)
			}
			priv, err := jwt.ParseEdPrivateKeyFromPEM(pem)
			if err != nil {
				return Key{}, fmt.Errorf("key %s: %w", src.ID, err)
			}
			signer, ok := priv.(ed25519.PrivateKey)
			if !ok {
				return Key{}, fmt.Errorf("key %s: not an ed25519 key", src.ID)
			}
			k.Sign = signer
			k.Verify = signer.Public()
		}
		if src.PublicKeyFile != "" {
			pem, err := os.ReadFile(src.PublicKeyFile)
			if err != nil {
				return Key{}, fmt.Errorf("failed to read public key: %w", err)
			}
			pub, err := jwt.ParseEdPublicKeyFromPEM(pem)
			if err != nil {
				return Key{}, fmt.Errorf("key %s: %w", src.ID, err)
			}
			k.Verify = pub
		}

	default:
		return Key{}, fmt.Errorf("key %s: unsupported algorithm %q", src.ID, src.Algorithm)
	}

	if k.Verify == nil {
		return Key{}, fmt.Errorf("key %s: no key file given", src.ID)
	}
	return k, nil
}

