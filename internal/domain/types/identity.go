package types

// Identity holds the device's long-term X25519 key pair.
type Identity struct {
	XPub  X25519Public  `json:"xpub"`
	XPriv X25519Private `json:"xpriv"`
}
