// Package secret encrypts and decrypts opaque credential blobs with NaCl
// secretbox (XSalsa20-Poly1305). Ciphertext layout is nonce || box.
package secret

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

var (
	// ErrInvalidKey is returned when the configured key is not 32 bytes.
	ErrInvalidKey = errors.New("secret: key must be 32 bytes (hex or base64)")
	// ErrDecrypt is returned for truncated or tampered ciphertext.
	ErrDecrypt = errors.New("secret: decryption failed")
)

// Box encrypts and decrypts byte blobs.
type Box interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// SecretBox is a Box keyed by a single 32-byte key.
type SecretBox struct {
	key [keySize]byte
}

var _ Box = (*SecretBox)(nil)

// New parses a hex or base64 encoded 32-byte key.
func New(encodedKey string) (*SecretBox, error) {
	raw, err := decodeKey(strings.TrimSpace(encodedKey))
	if err != nil {
		return nil, err
	}
	b := &SecretBox{}
	copy(b.key[:], raw)
	return b, nil
}

func decodeKey(s string) ([]byte, error) {
	if s == "" {
		return nil, ErrInvalidKey
	}
	if raw, err := hex.DecodeString(s); err == nil && len(raw) == keySize {
		return raw, nil
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if raw, err := enc.DecodeString(s); err == nil && len(raw) == keySize {
			return raw, nil
		}
	}
	return nil, ErrInvalidKey
}

// Encrypt seals plaintext under a fresh random nonce.
func (b *SecretBox) Encrypt(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("secret: read nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &b.key), nil
}

// Decrypt opens ciphertext produced by Encrypt.
func (b *SecretBox) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < nonceSize+secretbox.Overhead {
		return nil, ErrDecrypt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], ciphertext[:nonceSize])
	out, ok := secretbox.Open(nil, ciphertext[nonceSize:], &nonce, &b.key)
	if !ok {
		return nil, ErrDecrypt
	}
	return out, nil
}

// EncryptString is Encrypt for strings. Empty input yields nil.
func EncryptString(b Box, s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return b.Encrypt([]byte(s))
}

// DecryptString is Decrypt for strings. Nil input yields "".
func DecryptString(b Box, ciphertext []byte) (string, error) {
	if len(ciphertext) == 0 {
		return "", nil
	}
	out, err := b.Decrypt(ciphertext)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
