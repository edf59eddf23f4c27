// Package session derives and caches the symmetric message key shared with
// each peer.
//
// A key is derived by X25519 agreement between the local identity and the
// peer's current public key, expanded with HKDF-SHA256. Keys are cached per
// peer and invalidated when the peer presents a new key, which also raises a
// key-change notification. Concurrent derivations for the same peer are
// coalesced.
package session
