// Package message sends and receives encrypted messages.
//
// Outbound messages are encrypted under the recipient's current key, stored
// as pending under a client-generated temp id, then handed to the transport;
// the relay's message_sent reconciles the temp id with the relay id.
// Inbound envelopes are deduplicated by relay id, decrypted (or marked
// undecryptable), stored and acknowledged.
package message
