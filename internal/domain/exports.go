package domain

import (
	interfaces "github.com/4abishai/secura/internal/domain/interfaces"
	types "github.com/4abishai/secura/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Username              = types.Username
	Fingerprint           = types.Fingerprint
	ConversationKey       = types.ConversationKey
	Identity              = types.Identity
	X25519Public          = types.X25519Public
	X25519Private         = types.X25519Private
	PeerKeyRecord         = types.PeerKeyRecord
	DerivedKey            = types.DerivedKey
	Direction             = types.Direction
	KeyChangeNotification = types.KeyChangeNotification
	Message               = types.Message
	ConversationSummary   = types.ConversationSummary
	TransportStatus       = types.TransportStatus
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	IdentityStore   = interfaces.IdentityStore
	PeerStore       = interfaces.PeerStore
	MessageStore    = interfaces.MessageStore
	Directory       = interfaces.Directory
	Transport       = interfaces.Transport
	IdentityService = interfaces.IdentityService
	PeerKeyCache    = interfaces.PeerKeyCache
	KeyDeriver      = interfaces.KeyDeriver
	Notifier        = interfaces.Notifier
)

// Constants re-exported for callers that only import domain.
const (
	DirectionOutgoing = types.DirectionOutgoing
	DirectionIncoming = types.DirectionIncoming

	StatusDisconnected = types.StatusDisconnected
	StatusConnecting   = types.StatusConnecting
	StatusConnected    = types.StatusConnected
	StatusReconnecting = types.StatusReconnecting
	StatusFailed       = types.StatusFailed

	UndecryptablePlaceholder = types.UndecryptablePlaceholder
	X25519PublicSize         = types.X25519PublicSize
)

// NewConversationKey returns the key shared by a and b.
func NewConversationKey(a, b Username) ConversationKey { return types.NewConversationKey(a, b) }
