package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"github.com/4abishai/secura/internal/util/memzero"
)

// sealedFormatVersion is the current on-disk version of a sealed identity.
const sealedFormatVersion = 1

// errWrongPassphrase is returned when the passphrase is incorrect or the
// sealed file was modified.
var errWrongPassphrase = errors.New("wrong passphrase or corrupted identity")

// sealed is the on-disk JSON structure holding the ciphertext and KDF parameters.
type sealed struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Cipher []byte `json:"cipher"`
}

func sealingKey(passphrase string, salt []byte, N, r, p int) ([]byte, error) {
	return scrypt.Key([]byte(passphrase), salt, N, r, p, chacha20poly1305.KeySize)
}

// encrypt derives a key from passphrase and seals raw into a JSON document.
// The key is unique per salt, so a zero nonce is safe; the salt is bound as
// associated data.
func encrypt(passphrase string, raw []byte, N, r, p int) ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key, err := sealingKey(passphrase, salt, N, r, p)
	if err != nil {
		return nil, err
	}
	defer memzero.Bytes(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	return json.Marshal(sealed{
		V:      sealedFormatVersion,
		Salt:   salt,
		N:      N,
		R:      r,
		P:      p,
		Cipher: aead.Seal(nil, nonce, raw, salt),
	})
}

// decrypt opens a sealed document using a key derived from passphrase.
func decrypt(passphrase string, b []byte) ([]byte, error) {
	var doc sealed
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	if doc.V > sealedFormatVersion {
		return nil, fmt.Errorf("unsupported sealed identity version %d", doc.V)
	}
	key, err := sealingKey(passphrase, doc.Salt, doc.N, doc.R, doc.P)
	if err != nil {
		return nil, err
	}
	defer memzero.Bytes(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, make([]byte, aead.NonceSize()), doc.Cipher, doc.Salt)
	if err != nil {
		return nil, errWrongPassphrase
	}
	return pt, nil
}

// scryptParamsDefault are the tunables for sealing new identities.
func scryptParamsDefault() (N, r, p int) { return 1 << 15, 8, 1 }
