// Package vault encrypts delegated OAuth credentials at rest. It owns no
// storage; callers persist the envelopes it produces.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/wire"
)

var Provider = wire.NewSet(New)

var (
	// ErrMalformedEnvelope means the stored value is not a
	// nonce:tag:ciphertext envelope at all.
	ErrMalformedEnvelope = errors.New("malformed credential envelope")
	// ErrDecryptFailed means the envelope parsed but authentication failed,
	// so the ciphertext or tag was tampered with or the key is wrong.
	ErrDecryptFailed = errors.New("credential decryption failed")
)

const keySize = 32

// Vault performs AES-256-GCM encryption with a process-lifetime key.
type Vault struct {
	aead cipher.AEAD
}

// New builds a vault from a 32-byte key. A key of any other length is a
// configuration error; main treats it as fatal.
func New(key []byte) (*Vault, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to init GCM: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce and returns the envelope
// "base64(nonce):base64(tag):base64(ciphertext)".
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nil, nonce, []byte(plaintext), nil)

	// Seal appends the tag to the ciphertext; the envelope keeps them as
	// separate segments.
	tagStart := len(sealed) - v.aead.Overhead()
	ciphertext, tag := sealed[:tagStart], sealed[tagStart:]

	return strings.Join([]string{
		base64.StdEncoding.EncodeToString(nonce),
		base64.StdEncoding.EncodeToString(tag),
		base64.StdEncoding.EncodeToString(ciphertext),
	}, ":"), nil
}

// Decrypt opens an envelope produced by Encrypt. Any tampering with nonce,
// tag, or ciphertext yields ErrDecryptFailed, never a corrupted plaintext.
func (v *Vault) Decrypt(envelope string) (string, error) {
	parts := strings.Split(envelope, ":")
	if len(parts) != 3 {
		return "", ErrMalformedEnvelope
	}

	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", ErrMalformedEnvelope
	}
	tag, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", ErrMalformedEnvelope
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return "", ErrMalformedEnvelope
	}
	if len(nonce) != v.aead.NonceSize() || len(tag) != v.aead.Overhead() {
		return "", ErrMalformedEnvelope
	}

	plaintext, err := v.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}
