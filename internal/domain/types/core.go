package types

import (
	"sort"
	"strings"
)

// Username represents a relay-registered identity.
type Username string

// String returns the string form of the username.
func (u Username) String() string { return string(u) }

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// ConversationKey identifies the conversation between two users.
type ConversationKey string

// String returns the string form of the conversation key.
func (k ConversationKey) String() string { return string(k) }

// conversationSeparator joins the sorted participants of a conversation.
const conversationSeparator = "|"

// NewConversationKey returns the key shared by both participants: the two
// usernames sorted and joined, so a and b may be given in either order.
func NewConversationKey(a, b Username) ConversationKey {
	pair := []string{a.String(), b.String()}
	sort.Strings(pair)
	return ConversationKey(strings.Join(pair, conversationSeparator))
}

// Participants splits a conversation key back into its two usernames.
func (k ConversationKey) Participants() []Username {
	parts := strings.SplitN(string(k), conversationSeparator, 2)
	out := make([]Username, 0, len(parts))
	for _, p := range parts {
		out = append(out, Username(p))
	}
	return out
}
