package interfaces

import (
	"context"

	domaintypes "github.com/4abishai/secura/internal/domain/types"
)

// IdentityService provides the local device identity.
type IdentityService interface {
	// LoadOrCreate always returns a usable identity, generating and
	// persisting one when nothing valid is stored.
	LoadOrCreate() domaintypes.Identity
	// Rotate replaces the identity with a freshly generated one.
	Rotate() (domaintypes.Identity, error)
	Fingerprint() domaintypes.Fingerprint
}

// PeerKeyCache tracks the last public key seen for each peer.
type PeerKeyCache interface {
	Get(peer domaintypes.Username) (domaintypes.PeerKeyRecord, error)
	Refresh(peer domaintypes.Username, current domaintypes.X25519Public) (domaintypes.PeerKeyRecord, bool)
}

// KeyDeriver yields the symmetric key shared with a peer.
type KeyDeriver interface {
	DeriveFor(
		ctx context.Context,
		peer domaintypes.Username,
		current domaintypes.X25519Public,
		dir domaintypes.Direction,
	) ([32]byte, error)
	Resolve(
		ctx context.Context,
		peer domaintypes.Username,
		dir domaintypes.Direction,
	) ([32]byte, error)
}

// Notifier receives key-change notifications for the user.
type Notifier interface {
	Push(n domaintypes.KeyChangeNotification) domaintypes.KeyChangeNotification
}
