package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/4abishai/secura/internal/domain"
)

// SealMessage encrypts plaintext under key with a fresh random nonce and
// returns base64(nonce || ciphertext || tag).
func SealMessage(key [32]byte, plaintext string) (string, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return "", err
	}
	buf := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	out := aead.Seal(buf, buf[:aead.NonceSize()], []byte(plaintext), nil)
	return B64(out), nil
}

// OpenMessage reverses SealMessage. Malformed payloads and authentication
// failures both return domain.ErrDecryption.
func OpenMessage(key [32]byte, payload string) (string, error) {
	raw, err := UnB64(payload)
	if err != nil {
		return "", fmt.Errorf("%w: base64: %v", domain.ErrDecryption, err)
	}
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", fmt.Errorf("%w: payload too short", domain.ErrDecryption)
	}
	nonce, ct := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDecryption, err)
	}
	return string(pt), nil
}
