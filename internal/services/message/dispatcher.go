package message

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/4abishai/secura/internal/crypto"
	"github.com/4abishai/secura/internal/domain"
	"github.com/4abishai/secura/internal/protocol/wire"
)

// DefaultHistoryWorkers bounds parallel decryption of a history replay.
const DefaultHistoryWorkers = 4

var (
	// ErrNotPending is returned by Retry for a message that is unknown or
	// already acknowledged.
	ErrNotPending = errors.New("message is not pending")
)

// Dispatcher drives the outbound and inbound message lifecycles for one local
// user.
type Dispatcher struct {
	local     domain.Username
	keys      domain.KeyDeriver
	store     domain.MessageStore
	transport domain.Transport
	log       logrus.FieldLogger

	now            func() time.Time
	newTempID      func() string
	historyWorkers int
}

// New constructs a Dispatcher acting as local.
func New(
	local domain.Username,
	keys domain.KeyDeriver,
	store domain.MessageStore,
	transport domain.Transport,
	log logrus.FieldLogger,
) *Dispatcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dispatcher{
		local:          local,
		keys:           keys,
		store:          store,
		transport:      transport,
		log:            log.WithFields(logrus.Fields{"component": "dispatcher", "user": local}),
		now:            time.Now,
		newTempID:      uuid.NewString,
		historyWorkers: DefaultHistoryWorkers,
	}
}

// SetHistoryWorkers changes the history decryption parallelism.
func (d *Dispatcher) SetHistoryWorkers(n int) {
	if n > 0 {
		d.historyWorkers = n
	}
}

// Send encrypts plaintext for peer, stores it as pending and transmits it.
//
// Steps:
//  1. Resolve the peer's current key (directory lookup, rotation check).
//  2. Seal the plaintext under a fresh nonce.
//  3. Append a pending record keyed by a new temp id.
//  4. Hand send_message to the transport.
//
// A transport failure is returned together with the temp id: the pending
// record stays in the store for Retry.
func (d *Dispatcher) Send(ctx context.Context, peer domain.Username, plaintext string) (string, error) {
	key, err := d.keys.Resolve(ctx, peer, domain.DirectionOutgoing)
	if err != nil {
		return "", fmt.Errorf("send to %s: %w", peer, err)
	}
	payload, err := crypto.SealMessage(key, plaintext)
	if err != nil {
		return "", fmt.Errorf("send to %s: %w", peer, err)
	}

	msg := domain.Message{
		TempID:       d.newTempID(),
		Conversation: domain.NewConversationKey(d.local, peer),
		Sender:       d.local,
		Recipient:    peer,
		Ciphertext:   payload,
		Plaintext:    plaintext,
		Timestamp:    d.now(),
		Pending:      true,
	}
	if err := d.store.Append(msg); err != nil {
		return "", fmt.Errorf("store pending message: %w", err)
	}

	entry := d.log.WithFields(logrus.Fields{"peer": peer, "temp_id": msg.TempID})
	if err := d.transmit(msg); err != nil {
		entry.WithError(err).Warn("message left pending")
		return msg.TempID, err
	}
	entry.Debug("message sent")
	return msg.TempID, nil
}

// Retry re-transmits a still-pending message under its original temp id.
func (d *Dispatcher) Retry(_ context.Context, tempID string) error {
	msg, ok, err := d.store.Get(tempID)
	if err != nil {
		return err
	}
	if !ok || !msg.Pending {
		return fmt.Errorf("retry %s: %w", tempID, ErrNotPending)
	}
	return d.transmit(msg)
}

func (d *Dispatcher) transmit(msg domain.Message) error {
	return d.transport.Send(wire.SendMessage{
		Recipient: msg.Recipient.String(),
		Content:   msg.Ciphertext,
		TempID:    msg.TempID,
	})
}

// OnAck reconciles the pending record tempID with the relay-assigned id.
func (d *Dispatcher) OnAck(tempID, id string, delivered bool) error {
	if tempID == "" || id == "" {
		return fmt.Errorf("ack: %w: empty temp id or message id", wire.ErrMalformed)
	}
	if err := d.store.ReconcileID(tempID, id, delivered); err != nil {
		return fmt.Errorf("reconcile %s: %w", tempID, err)
	}
	return nil
}

// OnInboundEnvelope stores and acknowledges one inbound message.
//
// Duplicates are dropped (and re-acknowledged so the relay stops replaying
// them). Key agreement and decryption failures are contained: the message is
// stored as undecryptable and acknowledged. Directory failures are returned
// without storing or acknowledging, leaving the relay to redeliver.
func (d *Dispatcher) OnInboundEnvelope(ctx context.Context, env wire.NewMessage) error {
	id := env.ID.String()
	if id == "" {
		return fmt.Errorf("inbound: %w: missing id", wire.ErrMalformed)
	}
	entry := d.log.WithFields(logrus.Fields{"message_id": id, "peer": env.Sender})

	dup, err := d.store.Exists(id)
	if err != nil {
		return err
	}
	if dup {
		entry.WithError(domain.ErrDuplicateMessage).Debug("dropping")
		d.ack(id, entry)
		return nil
	}

	msg := domain.Message{
		ID:         id,
		Sender:     domain.Username(env.Sender),
		Recipient:  domain.Username(env.Recipient),
		Ciphertext: env.Content,
	}
	msg.Conversation = domain.NewConversationKey(msg.Sender, msg.Recipient)
	if msg.Timestamp, err = env.Time(); err != nil {
		entry.WithError(err).Debug("bad timestamp; using receive time")
		msg.Timestamp = d.now()
	}

	peer, dir := msg.Peer(d.local), domain.DirectionIncoming
	if msg.Sender == d.local {
		dir = domain.DirectionOutgoing
	}

	key, err := d.keys.Resolve(ctx, peer, dir)
	switch {
	case errors.Is(err, domain.ErrKeyExchange):
		entry.WithError(err).Warn("storing undecryptable message")
		msg.Undecryptable = true
	case err != nil:
		return fmt.Errorf("inbound %s: %w", id, err)
	default:
		pt, err := crypto.OpenMessage(key, env.Content)
		if err != nil {
			entry.WithError(err).Warn("storing undecryptable message")
			msg.Undecryptable = true
		} else {
			msg.Plaintext = pt
		}
	}

	if err := d.store.Append(msg); err != nil {
		return fmt.Errorf("store inbound %s: %w", id, err)
	}
	d.ack(id, entry)
	return nil
}

// ack is best effort: an unacknowledged message is replayed by the relay and
// dropped here as a duplicate.
func (d *Dispatcher) ack(id string, entry logrus.FieldLogger) {
	if err := d.transport.Send(wire.MessageAck{MessageID: wire.ID(id)}); err != nil {
		entry.WithError(err).Debug("ack not sent")
	}
}

// OnHistory processes a backlog replay with bounded parallelism. Every
// envelope is attempted; the first error is returned.
func (d *Dispatcher) OnHistory(ctx context.Context, h wire.MessagesHistory) error {
	var g errgroup.Group
	g.SetLimit(d.historyWorkers)
	for _, env := range h.Messages {
		g.Go(func() error { return d.OnInboundEnvelope(ctx, env) })
	}
	return g.Wait()
}

// RetryUndecryptable attempts to decrypt peer's undecryptable messages again
// with the key currently resolved for them and returns how many succeeded.
func (d *Dispatcher) RetryUndecryptable(ctx context.Context, peer domain.Username) (int, error) {
	msgs, err := d.store.Query(domain.NewConversationKey(d.local, peer))
	if err != nil {
		return 0, err
	}
	var key *[32]byte
	recovered := 0
	for _, m := range msgs {
		if !m.Undecryptable {
			continue
		}
		if key == nil {
			k, err := d.keys.Resolve(ctx, peer, domain.DirectionIncoming)
			if err != nil {
				return recovered, fmt.Errorf("retry undecryptable: %w", err)
			}
			key = &k
		}
		pt, err := crypto.OpenMessage(*key, m.Ciphertext)
		if err != nil {
			continue
		}
		if err := d.store.SetPlaintext(m.DedupKey(), pt); err != nil {
			return recovered, err
		}
		recovered++
	}
	return recovered, nil
}

// Handle routes a server envelope to its lifecycle step.
func (d *Dispatcher) Handle(ctx context.Context, env wire.Envelope) error {
	switch m := env.(type) {
	case wire.NewMessage:
		return d.OnInboundEnvelope(ctx, m)
	case wire.MessagesHistory:
		return d.OnHistory(ctx, m)
	case wire.MessageSent:
		return d.OnAck(m.TempID, m.MessageID.String(), m.Delivered)
	case wire.RegistrationSuccess:
		d.log.WithField("registered_as", m.Username).Info("registered with relay")
		return nil
	case wire.UserPresence:
		d.log.WithFields(logrus.Fields{"peer": m.Username, "online": m.Online}).Debug("presence")
		return nil
	case wire.Error:
		d.log.WithField("relay_error", m.Message).Warn("relay reported error")
		return nil
	case wire.Register, wire.SendMessage, wire.MessageAck, wire.Presence, wire.GetMessages:
		return fmt.Errorf("unexpected client envelope %s", env.Type())
	default:
		return fmt.Errorf("%w: %T", wire.ErrUnknownType, env)
	}
}
