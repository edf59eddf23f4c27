package crypto

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/4abishai/secura/internal/domain"
	"github.com/4abishai/secura/internal/util/memzero"
)

const messageKeyInfo = "secura/v1/message-key"

// DeriveMessageKey agrees on a shared secret between priv and peer and
// expands it into a 32-byte AEAD key.
//
// The HKDF info binds both public keys in sorted order, so both sides derive
// the same key regardless of who initiates.
func DeriveMessageKey(
	priv domain.X25519Private,
	local domain.X25519Public,
	peer domain.X25519Public,
) (key [32]byte, err error) {
	shared, err := DH(priv, peer)
	if err != nil {
		return key, err
	}
	defer memzero.Key(&shared)

	info := make([]byte, 0, len(messageKeyInfo)+2*domain.X25519PublicSize)
	info = append(info, messageKeyInfo...)
	lo, hi := local[:], peer[:]
	if bytes.Compare(lo, hi) > 0 {
		lo, hi = hi, lo
	}
	info = append(info, lo...)
	info = append(info, hi...)

	r := hkdf.New(sha256.New, shared[:], nil, info)
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return key, fmt.Errorf("%w: hkdf: %v", domain.ErrKeyExchange, err)
	}
	return key, nil
}
