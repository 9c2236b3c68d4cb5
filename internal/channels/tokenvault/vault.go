// Package tokenvault encrypts platform access tokens and CRM API keys at
// rest. Secretbox with a per-value random nonce; the 32-byte key comes from
// configuration and never leaves process memory.
package tokenvault

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// Vault seals and opens opaque token strings.
type Vault struct {
	key [32]byte
}

// New derives a vault from a hex-encoded 32-byte key.
func New(hexKey string) (*Vault, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("tokenvault: key is not valid hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("tokenvault: key must be 32 bytes, got %d", len(raw))
	}
	v := &Vault{}
	copy(v.key[:], raw)
	return v, nil
}

// Seal encrypts plaintext and returns a base64 value safe for a TEXT column.
func (v *Vault) Seal(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("tokenvault: nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &v.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal.
func (v *Vault) Open(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("tokenvault: decode: %w", err)
	}
	if len(sealed) < nonceSize {
		return "", fmt.Errorf("tokenvault: ciphertext too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &v.key)
	if !ok {
		return "", fmt.Errorf("tokenvault: decryption failed")
	}
	return string(plaintext), nil
}
