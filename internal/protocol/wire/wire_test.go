package wire_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4abishai/secura/internal/protocol/wire"
)

func TestEncode_PutsTypeDiscriminant(t *testing.T) {
	b, err := wire.Encode(wire.SendMessage{Recipient: "bob", Content: "ct", TempID: "t-1"})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, "send_message", raw["type"])
	assert.Equal(t, "bob", raw["recipient"])
	assert.Equal(t, "ct", raw["content"])
	assert.Equal(t, "t-1", raw["tempId"])
}

func TestEncode_EmptyVariant(t *testing.T) {
	b, err := wire.Encode(wire.GetMessages{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"get_messages"}`, string(b))
}

func TestDecode_ServerVariants(t *testing.T) {
	env, err := wire.Decode([]byte(`{"type":"new_message","id":42,"sender":"alice","recipient":"bob","content":"x","timestamp":"2024-05-01T10:00:00.123Z"}`))
	require.NoError(t, err)
	nm, ok := env.(wire.NewMessage)
	require.True(t, ok, "got %T", env)
	assert.Equal(t, wire.ID("42"), nm.ID)
	ts, err := nm.Time()
	require.NoError(t, err)
	assert.Equal(t, 123000000, ts.Nanosecond())

	env, err = wire.Decode([]byte(`{"type":"message_sent","tempId":"t-1","messageId":"m-9","delivered":true}`))
	require.NoError(t, err)
	assert.Equal(t, wire.MessageSent{TempID: "t-1", MessageID: "m-9", Delivered: true}, env)

	env, err = wire.Decode([]byte(`{"type":"messages_history","messages":[{"id":"1","sender":"a"},{"id":2,"sender":"b"}]}`))
	require.NoError(t, err)
	hist := env.(wire.MessagesHistory)
	require.Len(t, hist.Messages, 2)
	assert.Equal(t, wire.ID("2"), hist.Messages[1].ID)
}

func TestDecode_RoundTripsEveryVariant(t *testing.T) {
	all := []wire.Envelope{
		wire.Register{Username: "alice"},
		wire.SendMessage{Recipient: "bob", Content: "c", TempID: "t"},
		wire.MessageAck{MessageID: "7"},
		wire.Presence{Online: true},
		wire.GetMessages{},
		wire.RegistrationSuccess{Username: "alice"},
		wire.NewMessage{ID: "1", Sender: "a", Recipient: "b", Content: "c", Timestamp: "2024-01-01T00:00:00Z"},
		wire.MessagesHistory{Messages: []wire.NewMessage{{ID: "1"}}},
		wire.MessageSent{TempID: "t", MessageID: "1"},
		wire.UserPresence{Username: "a", Online: true, LastSeen: 5},
		wire.Error{Message: "boom"},
	}
	for _, env := range all {
		b, err := wire.Encode(env)
		require.NoError(t, err, env.Type())
		got, err := wire.Decode(b)
		require.NoError(t, err, env.Type())
		assert.Equal(t, env, got)
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := wire.Decode([]byte(`{"type":"telepathy"}`))
	assert.True(t, errors.Is(err, wire.ErrUnknownType))

	_, err = wire.Decode([]byte(`{"online":true}`))
	assert.True(t, errors.Is(err, wire.ErrMalformed))

	_, err = wire.Decode([]byte(`not json`))
	assert.True(t, errors.Is(err, wire.ErrMalformed))
}
