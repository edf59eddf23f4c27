package types

import "time"

// PeerKeyRecord is the last public key observed for a peer.
type PeerKeyRecord struct {
	Peer        Username     `json:"peer"`
	PublicKey   X25519Public `json:"public_key"`
	Fingerprint Fingerprint  `json:"fingerprint"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// DerivedKey is the symmetric key shared with a peer for one of their
// public keys. It is valid only while Fingerprint matches the peer record.
type DerivedKey struct {
	Peer        Username
	Fingerprint Fingerprint
	Key         [32]byte
}

// Direction tells a key derivation which side of a message we are on.
type Direction int

const (
	// DirectionOutgoing is used when encrypting for a recipient.
	DirectionOutgoing Direction = iota
	// DirectionIncoming is used when decrypting a sender's message.
	DirectionIncoming
)

// String returns a short name for logs.
func (d Direction) String() string {
	if d == DirectionIncoming {
		return "incoming"
	}
	return "outgoing"
}

// KeyChangeNotification tells the user that a peer presented a new key.
type KeyChangeNotification struct {
	ID        uint64    `json:"id"`
	Peer      Username  `json:"peer"`
	Direction Direction `json:"direction"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
