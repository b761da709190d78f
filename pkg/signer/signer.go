package signer

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ssh"
)

// ErrInvalidKeyLength is returned when decoded key material has the wrong size.
var ErrInvalidKeyLength = errors.New("invalid key length")

// ErrKeyMismatch is returned when a secret key's public half does not belong to its seed.
var ErrKeyMismatch = errors.New("public key does not match seed")

// PublicKey is an Ed25519 public key. Its text form is base58.
type PublicKey []byte

// String returns the base58 encoding of the key.
func (pk PublicKey) String() string {
	return base58.Encode(pk)
}

// PrivateKey is a 64 byte Ed25519 secret (seed followed by public key).
type PrivateKey []byte

// PublicKey derives the public half of the key.
func (sk PrivateKey) PublicKey() (PublicKey, error) {
	if len(sk) != ed25519.PrivateKeySize {
		return nil, ErrInvalidKeyLength
	}
	pk := make([]byte, ed25519.PublicKeySize)
	copy(pk, sk[ed25519.SeedSize:])
	return PublicKey(pk), nil
}

// GenerateKeyPair creates a fresh Ed25519 key pair.
func GenerateKeyPair() (PublicKey, PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return PublicKey(pub), PrivateKey(priv), nil
}

// ParsePublicKey decodes a base58 public key.
func ParsePublicKey(s string) (PublicKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key is %d bytes: %w", len(raw), ErrInvalidKeyLength)
	}
	return PublicKey(raw), nil
}

// ParsePrivateKey decodes a base58 encoded 64 byte secret key.
func ParsePrivateKey(s string) (PrivateKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key is %d bytes: %w", len(raw), ErrInvalidKeyLength)
	}
	derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], raw[ed25519.SeedSize:]) {
		return nil, ErrKeyMismatch
	}
	return PrivateKey(raw), nil
}

// ParseOpenSSHPrivateKey loads an unencrypted OpenSSH ed25519 private key.
func ParseOpenSSHPrivateKey(pemBytes []byte) (PrivateKey, error) {
	key, err := ssh.ParseRawPrivateKey(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key file: %w", err)
	}

	switch k := key.(type) {
	case *ed25519.PrivateKey:
		return PrivateKey(*k), nil
	case ed25519.PrivateKey:
		return PrivateKey(k), nil
	default:
		return nil, fmt.Errorf("unsupported key type %T", key)
	}
}

// Sign produces a detached signature over msg.
func Sign(sk PrivateKey, msg []byte) (Signature, error) {
	if len(sk) != ed25519.PrivateKeySize {
		return nil, ErrInvalidKeyLength
	}
	return Signature(ed25519.Sign(ed25519.PrivateKey(sk), msg)), nil
}

// Verify reports whether sig is a valid signature of msg by pk.
// Malformed keys or signatures verify as false.
func Verify(pk PublicKey, msg []byte, sig Signature) bool {
	if len(pk) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pk), msg, sig)
}
