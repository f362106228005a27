package archiver

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"filippo.io/age"
	"github.com/btcsuite/btcutil/bech32"
)

const (
	EnvSecretKey = "AGE_SECRET_KEY"
	EnvPublicKey = "AGE_PUBLIC_KEY"
)

// Signer signs archive manifests with an Ed25519 key whose seed is the
// payload of an age X25519 identity.
type Signer struct {
	private   ed25519.PrivateKey
	public    ed25519.PublicKey
	recipient string
}

// SignerFromEnv reads AGE_SECRET_KEY and AGE_PUBLIC_KEY.
func SignerFromEnv() (*Signer, error) {
	return NewSigner(os.Getenv(EnvSecretKey), os.Getenv(EnvPublicKey))
}

// NewSigner builds a Signer from an age secret key, a base64 Ed25519 public
// key, or both. A public key alone yields a verify-only signer.
func NewSigner(secretKey, publicKey string) (*Signer, error) {
	secretKey, publicKey = strings.TrimSpace(secretKey), strings.TrimSpace(publicKey)
	if secretKey == "" && publicKey == "" {
		return nil, fmt.Errorf("%s or %s must be set", EnvSecretKey, EnvPublicKey)
	}

	s := &Signer{}
	if secretKey != "" {
		seed, err := ageSeed(secretKey)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", EnvSecretKey, err)
		}
		s.private = ed25519.NewKeyFromSeed(seed)
		s.public = s.private.Public().(ed25519.PublicKey)
		if identity, err := age.ParseX25519Identity(secretKey); err == nil {
			s.recipient = identity.Recipient().String()
		}
	}

	if publicKey != "" {
		decoded, err := decodePublicKey(publicKey)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", EnvPublicKey, err)
		}
		switch {
		case s.public == nil:
			s.public = decoded
		case !bytes.Equal(s.public, decoded):
			return nil, fmt.Errorf("%s does not match %s", EnvPublicKey, EnvSecretKey)
		}
	}
	return s, nil
}

// Sign returns the base64 Ed25519 signature of payload.
func (s *Signer) Sign(payload []byte) (string, error) {
	if s == nil || len(s.private) == 0 {
		return "", errors.New("signer has no private key")
	}
	return base64.StdEncoding.EncodeToString(ed25519.Sign(s.private, payload)), nil
}

// Verify checks signature over payload. embeddedKey is the key recorded in the
// manifest; it must match the configured key when both are present.
func (s *Signer) Verify(payload []byte, signature, embeddedKey string) error {
	if s == nil {
		return errors.New("nil signer")
	}
	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("invalid signature length %d", len(sig))
	}

	key := s.public
	if embeddedKey != "" {
		embedded, err := decodePublicKey(embeddedKey)
		if err != nil {
			return fmt.Errorf("manifest public key: %w", err)
		}
		if key != nil && !bytes.Equal(key, embedded) {
			return errors.New("manifest signed by unexpected key")
		}
		key = embedded
	}
	if key == nil {
		return errors.New("no public key available for verification")
	}
	if !ed25519.Verify(key, payload, sig) {
		return errors.New("signature verification failed")
	}
	return nil
}

// PublicKey returns the Ed25519 public key in base64.
func (s *Signer) PublicKey() string {
	if s == nil || len(s.public) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(s.public)
}

// Recipient is the age recipient of the secret key, if one was given.
func (s *Signer) Recipient() string {
	if s == nil {
		return ""
	}
	return s.recipient
}

func decodePublicKey(raw string) (ed25519.PublicKey, error) {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("want %d bytes, got %d", ed25519.PublicKeySize, len(decoded))
	}
	return ed25519.PublicKey(decoded), nil
}

// ageSeed extracts the 32-byte payload of an AGE-SECRET-KEY-1... string.
func ageSeed(raw string) ([]byte, error) {
	hrp, data, err := bech32.Decode(raw)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(hrp, "age-secret-key-") {
		return nil, fmt.Errorf("unexpected hrp %q", hrp)
	}
	seed, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, err
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("unexpected seed length %d", len(seed))
	}
	return seed, nil
}
