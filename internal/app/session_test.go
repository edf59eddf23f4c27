package app_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4abishai/secura/internal/app"
	"github.com/4abishai/secura/internal/domain"
	"github.com/4abishai/secura/internal/relay"
	"github.com/4abishai/secura/internal/services/notify"
)

func quiet() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

func startRelay(t *testing.T) (*relay.Server, *httptest.Server) {
	t.Helper()
	srv := relay.NewServer(quiet())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func newUser(t *testing.T, ts *httptest.Server, name string) (*app.Wire, *app.Session) {
	t.Helper()
	cfg := app.DefaultConfig(t.TempDir())
	cfg.Username = name
	cfg.ServerURL = "ws" + strings.TrimPrefix(ts.URL, "http") + "/chat"
	cfg.DirectoryURL = ts.URL
	cfg.ReconnectDelay = 20 * time.Millisecond
	cfg.MaxReconnectAttempts = 2

	w, err := app.NewWire(cfg, quiet())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	require.NoError(t, app.PublishKey(context.Background(), w))

	s, err := app.NewSession(w)
	require.NoError(t, err)
	t.Cleanup(s.Stop)
	return w, s
}

func start(t *testing.T, s *app.Session) {
	t.Helper()
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, s.Ready, 2*time.Second, 10*time.Millisecond)
}

// bodies polls until conv holds n messages in w's store and returns their
// bodies.
func bodies(t *testing.T, w *app.Wire, conv domain.ConversationKey, n int) []string {
	t.Helper()
	var out []string
	require.Eventually(t, func() bool {
		msgs, err := w.Messages.Query(conv)
		if err != nil || len(msgs) != n {
			return false
		}
		out = out[:0]
		for _, m := range msgs {
			out = append(out, m.Body())
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
	return out
}

func noPending(w *app.Wire) func() bool {
	return func() bool {
		p, err := w.Messages.Pending()
		return err == nil && len(p) == 0
	}
}

func TestSession_EndToEnd(t *testing.T) {
	srv, ts := startRelay(t)
	ctx := context.Background()
	aliceW, alice := newUser(t, ts, "alice")
	bobW, bob := newUser(t, ts, "bob")
	start(t, alice)
	start(t, bob)
	conv := domain.NewConversationKey("alice", "bob")

	_, err := alice.Send(ctx, "bob", "hello")
	require.NoError(t, err)

	assert.Equal(t, []string{"hello"}, bodies(t, bobW, conv, 1))
	assert.Equal(t, []string{"hello"}, bodies(t, aliceW, conv, 1))
	assert.Eventually(t, noPending(aliceW), 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return srv.Pending() == 0 }, 2*time.Second, 10*time.Millisecond)

	// Bob rotates; Alice's next send picks up the new key and notifies once.
	_, err = bob.RotateIdentity(ctx)
	require.NoError(t, err)
	_, err = alice.Send(ctx, "bob", "hi again")
	require.NoError(t, err)

	assert.Equal(t, []string{"hello", "hi again"}, bodies(t, bobW, conv, 2))
	notes := alice.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, domain.Username("bob"), notes[0].Peer)
	assert.Equal(t, notify.Text("bob", domain.DirectionOutgoing), notes[0].Message)

	assert.True(t, alice.Dismiss(notes[0].ID))
	assert.False(t, alice.Dismiss(notes[0].ID))
	assert.Empty(t, alice.Notifications())
}

func TestSession_AckLostToDisconnectReconcilesAfterRetry(t *testing.T) {
	srv, ts := startRelay(t)
	ctx := context.Background()
	aliceW, alice := newUser(t, ts, "alice")
	bobW, bob := newUser(t, ts, "bob")
	start(t, alice)
	start(t, bob)
	conv := domain.NewConversationKey("alice", "bob")

	reconnecting := make(chan struct{}, 4)
	alice.Transport().OnStatus(func(st domain.TransportStatus) {
		if st == domain.StatusReconnecting {
			reconnecting <- struct{}{}
		}
	})

	srv.DropAcks(true)
	tempID, err := alice.Send(ctx, "bob", "in flight")
	require.NoError(t, err)
	assert.Equal(t, []string{"in flight"}, bodies(t, bobW, conv, 1))

	require.True(t, srv.Drop("alice"))
	select {
	case <-reconnecting:
	case <-time.After(2 * time.Second):
		t.Fatal("transport did not notice the drop")
	}
	srv.DropAcks(false)
	require.Eventually(t, alice.Ready, 2*time.Second, 10*time.Millisecond)

	pending, err := aliceW.Messages.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, tempID, pending[0].TempID)

	n, err := alice.RetryPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Eventually(t, noPending(aliceW), 2*time.Second, 10*time.Millisecond)

	msgs, err := aliceW.Messages.Query(conv)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "in flight", msgs[0].Body())
	assert.Equal(t, tempID, msgs[0].TempID)
	assert.NotEmpty(t, msgs[0].ID)
	assert.False(t, msgs[0].Pending)
}

func TestSession_OfflineSendThenRetry(t *testing.T) {
	_, ts := startRelay(t)
	ctx := context.Background()
	aliceW, alice := newUser(t, ts, "alice")
	bobW, bob := newUser(t, ts, "bob")

	tempID, err := alice.Send(ctx, "bob", "queued")
	assert.True(t, errors.Is(err, domain.ErrTransportUnavailable))
	require.NotEmpty(t, tempID)
	pending, err := aliceW.Messages.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)

	start(t, alice)
	n, err := alice.RetryPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Eventually(t, noPending(aliceW), 2*time.Second, 10*time.Millisecond)

	// Bob was offline; the relay replays the backlog when he registers.
	start(t, bob)
	conv := domain.NewConversationKey("alice", "bob")
	assert.Equal(t, []string{"queued"}, bodies(t, bobW, conv, 1))
}

func TestLogout_ClearsLocalState(t *testing.T) {
	_, ts := startRelay(t)
	ctx := context.Background()
	aliceW, alice := newUser(t, ts, "alice")
	_, _ = newUser(t, ts, "bob")

	_, err := alice.Send(ctx, "bob", "draft")
	require.Error(t, err)
	_, err = aliceW.Peers.Get("bob")
	require.NoError(t, err)

	require.NoError(t, alice.Logout())
	pending, err := aliceW.Messages.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
	_, err = aliceW.Peers.Get("bob")
	assert.True(t, errors.Is(err, domain.ErrUnknownPeer))
	assert.Equal(t, domain.StatusDisconnected, alice.Transport().Status())
}

func TestNewSession_RequiresUsername(t *testing.T) {
	w, err := app.NewWire(app.DefaultConfig(t.TempDir()), quiet())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	_, err = app.NewSession(w)
	assert.Error(t, err)
}
