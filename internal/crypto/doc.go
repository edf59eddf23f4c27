// Package crypto exposes the minimal primitives used by secura.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie–Hellman (GenerateX25519,
//     PublicFromPrivate, DH)
//   - Per-peer message key derivation with HKDF-SHA256 (DeriveMessageKey)
//   - Message sealing with ChaCha20-Poly1305 under a fresh random nonce
//     (SealMessage, OpenMessage)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// Keys use the fixed-size array types defined in internal/domain. Shared
// secrets and intermediate key material are wiped with memzero once used.
package crypto
