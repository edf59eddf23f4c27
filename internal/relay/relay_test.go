package relay_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4abishai/secura/internal/domain"
	"github.com/4abishai/secura/internal/protocol/wire"
	"github.com/4abishai/secura/internal/relay"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func startRelay(t *testing.T) (*relay.Server, *httptest.Server) {
	t.Helper()
	srv := relay.NewServer(quietLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/chat"
}

// client wires a session that registers as user on every connect and
// forwards envelopes and statuses to channels.
type client struct {
	*relay.WebSocketSession
	envs     chan wire.Envelope
	statuses chan domain.TransportStatus
}

func newClient(t *testing.T, ts *httptest.Server, user string, attempts int) *client {
	t.Helper()
	s := relay.NewWebSocketSession(relay.SessionOptions{
		URL:            wsURL(ts),
		ReconnectDelay: 20 * time.Millisecond,
		MaxAttempts:    attempts,
		Logger:         quietLogger(),
	})
	c := &client{
		WebSocketSession: s,
		envs:             make(chan wire.Envelope, 32),
		statuses:         make(chan domain.TransportStatus, 32),
	}
	s.OnStatus(func(st domain.TransportStatus) {
		if st == domain.StatusConnected {
			_ = s.Send(wire.Register{Username: user})
		}
		c.statuses <- st
	})
	for _, typ := range []wire.Type{
		wire.TypeRegistrationSuccess, wire.TypeNewMessage, wire.TypeMessageSent,
		wire.TypeMessagesHistory, wire.TypeError,
	} {
		s.OnMessage(typ, func(env wire.Envelope) { c.envs <- env })
	}
	t.Cleanup(s.Disconnect)
	return c
}

func (c *client) next(t *testing.T) wire.Envelope {
	t.Helper()
	select {
	case env := <-c.envs:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for envelope")
		return nil
	}
}

func (c *client) waitStatus(t *testing.T, want domain.TransportStatus) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case st := <-c.statuses:
			if st == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for status %s", want)
		}
	}
}

func TestDirectory_PublishAndFetch(t *testing.T) {
	_, ts := startRelay(t)
	dir := relay.NewHTTP(ts.URL, time.Second)
	ctx := context.Background()

	_, err := dir.FetchPublicKey(ctx, "bob")
	assert.True(t, errors.Is(err, domain.ErrUnknownPeer))

	pub := domain.X25519Public{1, 2, 3}
	require.NoError(t, dir.PublishPublicKey(ctx, "bob", pub))

	got, err := dir.FetchPublicKey(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, pub, got)
}

func TestSession_SendWhileDisconnected(t *testing.T) {
	s := relay.NewWebSocketSession(relay.SessionOptions{URL: "ws://127.0.0.1:1/chat", Logger: quietLogger()})
	assert.Equal(t, domain.StatusDisconnected, s.Status())

	err := s.Send(wire.Presence{Online: true})
	assert.True(t, errors.Is(err, domain.ErrTransportUnavailable))
}

func TestSession_RelayRoundTrip(t *testing.T) {
	srv, ts := startRelay(t)
	ctx := context.Background()

	alice := newClient(t, ts, "alice", 1)
	bob := newClient(t, ts, "bob", 1)
	require.NoError(t, alice.Connect(ctx))
	require.NoError(t, bob.Connect(ctx))
	assert.Equal(t, wire.RegistrationSuccess{Username: "alice"}, alice.next(t))
	assert.Equal(t, wire.RegistrationSuccess{Username: "bob"}, bob.next(t))

	require.NoError(t, alice.Send(wire.SendMessage{Recipient: "bob", Content: "ct", TempID: "t1"}))

	in, ok := bob.next(t).(wire.NewMessage)
	require.True(t, ok)
	assert.Equal(t, "alice", in.Sender)
	assert.Equal(t, "ct", in.Content)
	_, err := in.Time()
	assert.NoError(t, err)

	sent, ok := alice.next(t).(wire.MessageSent)
	require.True(t, ok)
	assert.Equal(t, "t1", sent.TempID)
	assert.Equal(t, in.ID, sent.MessageID)
	assert.True(t, sent.Delivered)

	require.Equal(t, 1, srv.Pending())
	require.NoError(t, bob.Send(wire.GetMessages{}))
	hist, ok := bob.next(t).(wire.MessagesHistory)
	require.True(t, ok)
	require.Len(t, hist.Messages, 1)

	require.NoError(t, bob.Send(wire.MessageAck{MessageID: in.ID}))
	assert.Eventually(t, func() bool { return srv.Pending() == 0 }, time.Second, 10*time.Millisecond)
}

func TestSession_OfflineRecipientGetsBacklogOnRegister(t *testing.T) {
	_, ts := startRelay(t)
	ctx := context.Background()

	alice := newClient(t, ts, "alice", 1)
	require.NoError(t, alice.Connect(ctx))
	alice.next(t)

	require.NoError(t, alice.Send(wire.SendMessage{Recipient: "bob", Content: "later", TempID: "t1"}))
	sent := alice.next(t).(wire.MessageSent)
	assert.False(t, sent.Delivered)

	bob := newClient(t, ts, "bob", 1)
	require.NoError(t, bob.Connect(ctx))
	assert.Equal(t, wire.RegistrationSuccess{Username: "bob"}, bob.next(t))
	in := bob.next(t).(wire.NewMessage)
	assert.Equal(t, sent.MessageID, in.ID)
	assert.Equal(t, "later", in.Content)
}

func TestSession_UnsubscribeRemovesOneHandler(t *testing.T) {
	_, ts := startRelay(t)
	s := relay.NewWebSocketSession(relay.SessionOptions{URL: wsURL(ts), Logger: quietLogger()})
	t.Cleanup(s.Disconnect)

	calls := make(chan string, 4)
	s.OnMessage(wire.TypeRegistrationSuccess, func(wire.Envelope) { calls <- "first" })
	unsub := s.OnMessage(wire.TypeRegistrationSuccess, func(wire.Envelope) { calls <- "second" })
	s.OnMessage(wire.TypeRegistrationSuccess, func(wire.Envelope) { calls <- "third" })
	unsub()
	unsub()

	require.NoError(t, s.Connect(context.Background()))
	require.NoError(t, s.Send(wire.Register{Username: "carol"}))

	var got []string
	for len(got) < 2 {
		select {
		case c := <-calls:
			got = append(got, c)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out")
		}
	}
	assert.Equal(t, []string{"first", "third"}, got)
}

func TestSession_UnknownTypeYieldsError(t *testing.T) {
	_, ts := startRelay(t)
	c := newClient(t, ts, "dave", 1)
	require.NoError(t, c.Connect(context.Background()))
	c.next(t)

	require.NoError(t, c.Send(wire.RegistrationSuccess{Username: "dave"}))
	e, ok := c.next(t).(wire.Error)
	require.True(t, ok)
	assert.Contains(t, e.Message, "Unknown message type")
}

func TestSession_ReconnectsAndReregisters(t *testing.T) {
	srv, ts := startRelay(t)
	c := newClient(t, ts, "erin", 3)
	require.NoError(t, c.Connect(context.Background()))
	c.waitStatus(t, domain.StatusConnected)
	assert.Equal(t, wire.RegistrationSuccess{Username: "erin"}, c.next(t))

	require.True(t, srv.Drop("erin"))
	c.waitStatus(t, domain.StatusReconnecting)
	c.waitStatus(t, domain.StatusConnected)
	assert.Equal(t, wire.RegistrationSuccess{Username: "erin"}, c.next(t))
}

func TestSession_FailsAfterMaxAttempts(t *testing.T) {
	srv, ts := startRelay(t)
	c := newClient(t, ts, "frank", 2)
	require.NoError(t, c.Connect(context.Background()))
	c.waitStatus(t, domain.StatusConnected)
	assert.Equal(t, wire.RegistrationSuccess{Username: "frank"}, c.next(t))

	ts.Close()
	require.True(t, srv.Drop("frank"))
	c.waitStatus(t, domain.StatusFailed)
	assert.Equal(t, domain.StatusFailed, c.Status())
}

func TestServer_DropAcksStillRelays(t *testing.T) {
	srv, ts := startRelay(t)
	ctx := context.Background()
	alice := newClient(t, ts, "alice", 1)
	bob := newClient(t, ts, "bob", 1)
	require.NoError(t, alice.Connect(ctx))
	require.NoError(t, bob.Connect(ctx))
	alice.next(t)
	bob.next(t)

	srv.DropAcks(true)
	require.NoError(t, alice.Send(wire.SendMessage{Recipient: "bob", Content: "ct", TempID: "t1"}))
	_, ok := bob.next(t).(wire.NewMessage)
	require.True(t, ok)

	srv.DropAcks(false)
	require.NoError(t, alice.Send(wire.SendMessage{Recipient: "bob", Content: "ct", TempID: "t2"}))
	sent, ok := alice.next(t).(wire.MessageSent)
	require.True(t, ok)
	assert.Equal(t, "t2", sent.TempID)
}

func TestSession_ManualDisconnectDoesNotReconnect(t *testing.T) {
	_, ts := startRelay(t)
	c := newClient(t, ts, "gina", 3)
	require.NoError(t, c.Connect(context.Background()))
	c.waitStatus(t, domain.StatusConnected)

	c.Disconnect()
	c.waitStatus(t, domain.StatusDisconnected)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, domain.StatusDisconnected, c.Status())
}
