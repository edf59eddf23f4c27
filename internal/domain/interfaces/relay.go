package interfaces

import (
	"context"

	domaintypes "github.com/4abishai/secura/internal/domain/types"
	"github.com/4abishai/secura/internal/protocol/wire"
)

// Directory resolves usernames to their current public identity key.
type Directory interface {
	FetchPublicKey(ctx context.Context, username domaintypes.Username) (domaintypes.X25519Public, error)
	PublishPublicKey(ctx context.Context, username domaintypes.Username, pub domaintypes.X25519Public) error
}

// Transport is the persistent, message-oriented connection to the relay.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect()
	Send(env wire.Envelope) error
	// OnMessage registers handler for one envelope type. Handlers of a type
	// run in registration order; the returned func removes exactly this
	// registration.
	OnMessage(t wire.Type, handler func(wire.Envelope)) (unsubscribe func())
	OnStatus(handler func(domaintypes.TransportStatus)) (unsubscribe func())
	Status() domaintypes.TransportStatus
}
