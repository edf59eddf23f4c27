package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/4abishai/secura/internal/domain"
	"github.com/4abishai/secura/internal/protocol/wire"
	"github.com/4abishai/secura/internal/relay"
	"github.com/4abishai/secura/internal/services/message"
)

// serverTypes are the envelopes the dispatcher consumes from the hub.
var serverTypes = []wire.Type{
	wire.TypeNewMessage,
	wire.TypeMessageSent,
	wire.TypeMessagesHistory,
	wire.TypeUserPresence,
	wire.TypeRegistrationSuccess,
	wire.TypeError,
}

// Session is the signed-in context for one local user: it owns the hub
// connection and the dispatcher bound to it. Build one per user with
// NewSession; several may share a process.
type Session struct {
	wire      *Wire
	user      domain.Username
	transport *relay.WebSocketSession
	dispatch  *message.Dispatcher
	log       logrus.FieldLogger

	ready       atomic.Bool
	unsubscribe []func()
}

// NewSession binds w to the hub at w.Config.ServerURL as w.Config.Username.
func NewSession(w *Wire) (*Session, error) {
	user := domain.Username(w.Config.Username)
	if user == "" {
		return nil, errors.New("session: username not set")
	}
	log := w.Log.WithField("user", user)
	tr := relay.NewWebSocketSession(relay.SessionOptions{
		URL:            w.Config.ServerURL,
		ReconnectDelay: w.Config.ReconnectDelay,
		MaxAttempts:    w.Config.MaxReconnectAttempts,
		Logger:         log,
	})
	d := message.New(user, w.Keys, w.Messages, tr, log)
	d.SetHistoryWorkers(w.Config.HistoryWorkers)
	return &Session{wire: w, user: user, transport: tr, dispatch: d, log: log}, nil
}

// Start wires the transport handlers and connects. Every (re)connect
// registers the user before the first frame is read.
//
// Steps:
//  1. Load (or create) the identity so sends never race key generation.
//  2. Register on every transition to connected; Ready reports true once
//     the hub confirms.
//  3. Route server envelopes into the dispatcher.
//  4. Dial the hub.
func (s *Session) Start(ctx context.Context) error {
	s.wire.Identity.LoadOrCreate()

	s.unsubscribe = append(s.unsubscribe, s.transport.OnStatus(func(st domain.TransportStatus) {
		s.log.WithField("status", st).Debug("transport status")
		s.ready.Store(false)
		if st != domain.StatusConnected {
			return
		}
		if err := s.transport.Send(wire.Register{Username: s.user.String()}); err != nil {
			s.log.WithError(err).Warn("register failed")
		}
	}))
	s.unsubscribe = append(s.unsubscribe, s.transport.OnMessage(wire.TypeRegistrationSuccess, func(wire.Envelope) {
		s.ready.Store(true)
	}))
	for _, t := range serverTypes {
		s.unsubscribe = append(s.unsubscribe, s.transport.OnMessage(t, func(env wire.Envelope) {
			if err := s.dispatch.Handle(ctx, env); err != nil {
				s.log.WithError(err).WithField("type", env.Type()).Warn("handle envelope")
			}
		}))
	}
	return s.transport.Connect(ctx)
}

// Stop disconnects and removes the handlers installed by Start.
func (s *Session) Stop() {
	s.transport.Disconnect()
	for _, u := range s.unsubscribe {
		u()
	}
	s.unsubscribe = nil
}

// Ready reports whether the hub has confirmed registration on the current
// connection.
func (s *Session) Ready() bool { return s.ready.Load() }

// User returns the local username.
func (s *Session) User() domain.Username { return s.user }

// Transport exposes the hub connection for additional handlers.
func (s *Session) Transport() domain.Transport { return s.transport }

// Messages returns the local message store.
func (s *Session) Messages() domain.MessageStore { return s.wire.Messages }

// Send encrypts and transmits plaintext to peer; see message.Dispatcher.Send.
func (s *Session) Send(ctx context.Context, peer domain.Username, plaintext string) (string, error) {
	return s.dispatch.Send(ctx, peer, plaintext)
}

// Retry retransmits a pending message.
func (s *Session) Retry(ctx context.Context, tempID string) error {
	return s.dispatch.Retry(ctx, tempID)
}

// RetryPending retransmits every pending message, returning how many were
// sent. It stops at the first transport failure.
func (s *Session) RetryPending(ctx context.Context) (int, error) {
	pending, err := s.wire.Messages.Pending()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range pending {
		if err := s.dispatch.Retry(ctx, m.TempID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// RetryUndecryptable re-attempts decryption of peer's undecryptable messages.
func (s *Session) RetryUndecryptable(ctx context.Context, peer domain.Username) (int, error) {
	return s.dispatch.RetryUndecryptable(ctx, peer)
}

// RequestHistory asks the hub to replay stored messages.
func (s *Session) RequestHistory() error {
	return s.transport.Send(wire.GetMessages{})
}

// SetPresence announces the user's presence to other clients.
func (s *Session) SetPresence(online bool) error {
	return s.transport.Send(wire.Presence{Online: online})
}

// Notifications returns the queued key-change notices.
func (s *Session) Notifications() []domain.KeyChangeNotification {
	return s.wire.Notifications.Pending()
}

// Dismiss removes the notification with id, reporting whether it was queued.
func (s *Session) Dismiss(id uint64) bool {
	return s.wire.Notifications.Dismiss(id)
}

// PublishKey uploads the local public key to the directory.
func PublishKey(ctx context.Context, w *Wire) error {
	user := domain.Username(w.Config.Username)
	if user == "" {
		return errors.New("publish: username not set")
	}
	id := w.Identity.LoadOrCreate()
	if err := w.Directory.PublishPublicKey(ctx, user, id.XPub); err != nil {
		return fmt.Errorf("publish key: %w", err)
	}
	w.Log.WithFields(logrus.Fields{"user": user, "fingerprint": w.Identity.Fingerprint()}).Info("published public key")
	return nil
}

// RotateIdentity replaces the local key pair, drops derived keys and
// publishes the new public key.
func RotateIdentity(ctx context.Context, w *Wire) (domain.Identity, error) {
	id, err := w.Identity.Rotate()
	if err != nil {
		return id, err
	}
	w.Keys.Forget()
	return id, PublishKey(ctx, w)
}

// Logout clears local history, pinned peer keys and derived keys. The
// identity itself is kept.
func Logout(w *Wire) error {
	if err := w.Messages.ClearAll(); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if err := w.Peers.Reset(); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	w.Keys.Forget()
	w.Notifications.Drain()
	return nil
}

// RotateIdentity is the Session form of RotateIdentity.
func (s *Session) RotateIdentity(ctx context.Context) (domain.Identity, error) {
	return RotateIdentity(ctx, s.wire)
}

// Logout disconnects and clears local state.
func (s *Session) Logout() error {
	s.Stop()
	return Logout(s.wire)
}
