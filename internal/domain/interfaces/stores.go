package interfaces

import domaintypes "github.com/4abishai/secura/internal/domain/types"

// IdentityStore persists your long-term identity keys.
type IdentityStore interface {
	SaveIdentity(passphrase string, id domaintypes.Identity) error
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
}

// PeerStore persists the last-known public key of every peer.
type PeerStore interface {
	SavePeerRecord(record domaintypes.PeerKeyRecord) error
	LoadPeerRecords() ([]domaintypes.PeerKeyRecord, error)
	ClearPeerRecords() error
}

// MessageStore is the local, deduplicated, conversation-indexed message log.
type MessageStore interface {
	// Append stores msg under its dedup key; a second append of the same key
	// is a no-op.
	Append(msg domaintypes.Message) error
	// ReconcileID atomically moves a pending record from tempID to id and
	// clears Pending.
	ReconcileID(tempID, id string, delivered bool) error
	// Query returns a conversation ordered by timestamp ascending.
	Query(conversation domaintypes.ConversationKey) ([]domaintypes.Message, error)
	Exists(key string) (bool, error)
	Get(key string) (domaintypes.Message, bool, error)
	// Pending lists records still waiting for a server id.
	Pending() ([]domaintypes.Message, error)
	// SetPlaintext attaches decrypted text to a stored record and clears
	// its undecryptable marker.
	SetPlaintext(key, plaintext string) error
	Conversations(user domaintypes.Username) ([]domaintypes.ConversationSummary, error)
	ClearAll() error
}
