// Package store provides local persistence for secura's core data.
//
// It contains concrete implementations of the domain storage interfaces.
// Small records are serialised as JSON files written via temp file + rename;
// the message log lives in an embedded badger database. All methods are
// concurrency-safe. Stored files live under the configured home directory.
//
// The package includes stores for:
//   - Identity keys (IdentityFileStore), optionally passphrase-sealed
//   - Last-known peer public keys (PeerFileStore)
//   - The deduplicated message log and conversation index (MessageStore)
package store
