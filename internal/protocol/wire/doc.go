// Package wire defines the JSON envelopes exchanged with the relay over the
// persistent connection.
//
// Every envelope is a JSON object whose "type" field selects the variant.
// Each variant is a Go struct implementing Envelope; Decode switches on the
// discriminant and returns the matching struct by value, so receivers route
// with a type switch:
//
//	switch m := env.(type) {
//	case wire.NewMessage:
//	    ...
//	case wire.MessageSent:
//	    ...
//	}
//
// Client to server: Register, SendMessage, MessageAck, Presence, GetMessages.
// Server to client: RegistrationSuccess, NewMessage, MessagesHistory,
// MessageSent, UserPresence, Error.
//
// Message ids are carried as strings but accept JSON numbers on input, since
// relays commonly assign numeric database ids.
package wire
