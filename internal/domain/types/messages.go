package types

import "time"

// UndecryptablePlaceholder is shown in place of a message body that failed
// authentication or whose key could not be derived.
const UndecryptablePlaceholder = "[Decryption failed - possible key mismatch]"

// Message is one entry of a conversation log.
//
// Before the server acknowledges an outbound message it is known only by
// TempID; afterwards ID is set, TempID is kept for reference and Pending is
// cleared.
type Message struct {
	ID            string          `json:"id,omitempty"`
	TempID        string          `json:"temp_id,omitempty"`
	Conversation  ConversationKey `json:"conversation"`
	Sender        Username        `json:"sender"`
	Recipient     Username        `json:"recipient"`
	Ciphertext    string          `json:"ciphertext"`
	Plaintext     string          `json:"plaintext,omitempty"`
	Undecryptable bool            `json:"undecryptable,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	Pending       bool            `json:"pending"`
	Delivered     bool            `json:"delivered,omitempty"`
}

// DedupKey returns the key the store indexes this message under.
func (m Message) DedupKey() string {
	if m.ID != "" {
		return m.ID
	}
	return m.TempID
}

// Peer returns the other participant from local's point of view.
func (m Message) Peer(local Username) Username {
	if m.Sender == local {
		return m.Recipient
	}
	return m.Sender
}

// Body returns the text to display: the plaintext, or the placeholder for
// undecryptable messages.
func (m Message) Body() string {
	if m.Undecryptable {
		return UndecryptablePlaceholder
	}
	return m.Plaintext
}

// ConversationSummary describes a conversation for listing.
type ConversationSummary struct {
	Key             ConversationKey `json:"key"`
	Participants    []Username      `json:"participants"`
	LastMessageTime time.Time       `json:"last_message_time"`
}
