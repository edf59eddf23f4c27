package domain

import "errors"

var (
	// ErrKeyImport means the persisted identity is missing or corrupt. The
	// identity manager recovers from it by regenerating.
	ErrKeyImport = errors.New("identity key import failed")

	// ErrUnknownPeer means the directory has no key for the peer.
	ErrUnknownPeer = errors.New("unknown peer")

	// ErrKeyExchange means key agreement or derivation with a peer failed.
	ErrKeyExchange = errors.New("key exchange failed")

	// ErrDecryption means a payload failed authentication.
	ErrDecryption = errors.New("message decryption failed")

	// ErrTransportUnavailable means a send was attempted while disconnected.
	ErrTransportUnavailable = errors.New("transport not connected")

	// ErrDuplicateMessage marks an inbound envelope that is already stored.
	// The dispatcher drops such envelopes silently.
	ErrDuplicateMessage = errors.New("duplicate message")
)
