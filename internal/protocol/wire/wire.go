package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Type is the envelope discriminant.
type Type string

const (
	TypeRegister    Type = "register"
	TypeSendMessage Type = "send_message"
	TypeMessageAck  Type = "message_ack"
	TypePresence    Type = "presence"
	TypeGetMessages Type = "get_messages"

	TypeRegistrationSuccess Type = "registration_success"
	TypeNewMessage          Type = "new_message"
	TypeMessagesHistory     Type = "messages_history"
	TypeMessageSent         Type = "message_sent"
	TypeUserPresence        Type = "user_presence"
	TypeError               Type = "error"
)

var (
	// ErrUnknownType is returned by Decode for an unrecognised discriminant.
	ErrUnknownType = errors.New("wire: unknown envelope type")
	// ErrMalformed is returned by Decode when the frame is not a JSON object
	// with a string "type".
	ErrMalformed = errors.New("wire: malformed envelope")
)

// Envelope is implemented by every wire message variant.
type Envelope interface {
	Type() Type
}

// ID is a relay-assigned message id. It decodes from a JSON string or number.
type ID string

// String returns the id as a string.
func (id ID) String() string { return string(id) }

// UnmarshalJSON accepts "123", 123 and null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("wire: message id: %w", err)
		}
		*id = ID(n.String())
		return nil
	}
}

// Register binds the connection to a username.
type Register struct {
	Username string `json:"username"`
}

// SendMessage carries an outbound ciphertext.
type SendMessage struct {
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
	TempID    string `json:"tempId"`
}

// MessageAck acknowledges receipt of an inbound message.
type MessageAck struct {
	MessageID ID `json:"messageId"`
}

// Presence is passed through untouched by the messaging core.
type Presence struct {
	Online bool `json:"online"`
}

// GetMessages asks the relay to replay the backlog as MessagesHistory.
type GetMessages struct{}

// RegistrationSuccess confirms Register.
type RegistrationSuccess struct {
	Username string `json:"username"`
}

// NewMessage is an inbound ciphertext envelope.
type NewMessage struct {
	ID        ID     `json:"id"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Time parses Timestamp as RFC 3339; a missing or unparsable timestamp
// yields the zero time and an error.
func (m NewMessage) Time() (time.Time, error) {
	if m.Timestamp == "" {
		return time.Time{}, errors.New("wire: missing timestamp")
	}
	return time.Parse(time.RFC3339Nano, m.Timestamp)
}

// MessagesHistory replays a backlog of inbound envelopes.
type MessagesHistory struct {
	Messages []NewMessage `json:"messages"`
}

// MessageSent reconciles an outbound tempId with the relay's id.
type MessageSent struct {
	TempID    string `json:"tempId"`
	MessageID ID     `json:"messageId"`
	Delivered bool   `json:"delivered"`
}

// UserPresence is passed through untouched by the messaging core.
type UserPresence struct {
	Username string `json:"username"`
	Online   bool   `json:"online"`
	LastSeen int64  `json:"lastSeen"`
}

// Error is a non-fatal protocol error reported by the relay.
type Error struct {
	Message string `json:"message"`
}

func (Register) Type() Type            { return TypeRegister }
func (SendMessage) Type() Type         { return TypeSendMessage }
func (MessageAck) Type() Type          { return TypeMessageAck }
func (Presence) Type() Type            { return TypePresence }
func (GetMessages) Type() Type         { return TypeGetMessages }
func (RegistrationSuccess) Type() Type { return TypeRegistrationSuccess }
func (NewMessage) Type() Type          { return TypeNewMessage }
func (MessagesHistory) Type() Type     { return TypeMessagesHistory }
func (MessageSent) Type() Type         { return TypeMessageSent }
func (UserPresence) Type() Type        { return TypeUserPresence }
func (Error) Type() Type               { return TypeError }

// Encode marshals env as a JSON object with its "type" discriminant first.
func Encode(env Envelope) ([]byte, error) {
	if env == nil {
		return nil, errors.New("wire: nil envelope")
	}
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("wire: encode %s: %w", env.Type(), err)
	}
	typ, err := json.Marshal(env.Type())
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(body)+len(typ)+10)
	out = append(out, `{"type":`...)
	out = append(out, typ...)
	if len(body) > 2 { // more than "{}"
		out = append(out, ',')
	}
	out = append(out, body[1:]...)
	return out, nil
}

// Decode parses a frame into the variant named by its "type" field.
func Decode(data []byte) (Envelope, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch head.Type {
	case TypeRegister:
		return decodeAs[Register](data)
	case TypeSendMessage:
		return decodeAs[SendMessage](data)
	case TypeMessageAck:
		return decodeAs[MessageAck](data)
	case TypePresence:
		return decodeAs[Presence](data)
	case TypeGetMessages:
		return decodeAs[GetMessages](data)
	case TypeRegistrationSuccess:
		return decodeAs[RegistrationSuccess](data)
	case TypeNewMessage:
		return decodeAs[NewMessage](data)
	case TypeMessagesHistory:
		return decodeAs[MessagesHistory](data)
	case TypeMessageSent:
		return decodeAs[MessageSent](data)
	case TypeUserPresence:
		return decodeAs[UserPresence](data)
	case TypeError:
		return decodeAs[Error](data)
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
	}
}

func decodeAs[T Envelope](data []byte) (Envelope, error) {
	var m T
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return m, nil
}
