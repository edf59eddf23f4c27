package types

import (
	"encoding/base64"
	"fmt"
)

// X25519PublicSize is the length of an exported Curve25519 public key.
const X25519PublicSize = 32

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// IsZero reports whether the key is all zeros (unset).
func (p X25519Public) IsZero() bool { return p == X25519Public{} }

// String returns the standard base64 encoding used on the wire.
func (p X25519Public) String() string { return base64.StdEncoding.EncodeToString(p[:]) }

// MarshalText encodes the key as base64.
func (p X25519Public) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText decodes a base64 key of exactly 32 bytes.
func (p *X25519Public) UnmarshalText(text []byte) error {
	pub, err := ParseX25519Public(string(text))
	if err != nil {
		return err
	}
	*p = pub
	return nil
}

// ParseX25519Public decodes a base64-encoded public key.
func ParseX25519Public(s string) (X25519Public, error) {
	var out X25519Public
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("x25519 public: %w", err)
	}
	if len(b) != X25519PublicSize {
		return out, fmt.Errorf("x25519 public: want %d bytes, got %d", X25519PublicSize, len(b))
	}
	copy(out[:], b)
	return out, nil
}

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// MarshalText encodes the key as base64 for the local keystore.
func (k X25519Private) MarshalText() ([]byte, error) {
	return []byte(base64.StdEncoding.EncodeToString(k[:])), nil
}

// UnmarshalText decodes a base64 private key of exactly 32 bytes.
func (k *X25519Private) UnmarshalText(text []byte) error {
	b, err := base64.StdEncoding.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("x25519 private: %w", err)
	}
	if len(b) != 32 {
		return fmt.Errorf("x25519 private: want 32 bytes, got %d", len(b))
	}
	copy(k[:], b)
	return nil
}
