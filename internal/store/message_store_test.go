package store_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4abishai/secura/internal/domain"
	"github.com/4abishai/secura/internal/store"
)

func openMessages(t *testing.T) *store.MessageStore {
	t.Helper()
	ms, err := store.OpenMessageStore("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ms.Close() })
	return ms
}

func at(sec int64) time.Time { return time.Unix(1700000000+sec, 0).UTC() }

func TestMessageStore_AppendIsIdempotent(t *testing.T) {
	ms := openMessages(t)
	m := domain.Message{ID: "1", Sender: "alice", Recipient: "bob", Ciphertext: "c", Plaintext: "hi", Timestamp: at(0)}

	require.NoError(t, ms.Append(m))
	dup := m
	dup.Plaintext = "changed"
	require.NoError(t, ms.Append(dup))

	got, err := ms.Query(domain.NewConversationKey("bob", "alice"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hi", got[0].Plaintext)
	assert.Equal(t, domain.ConversationKey("alice|bob"), got[0].Conversation)

	ok, err := ms.Exists("1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = ms.Exists("2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMessageStore_RejectsKeyless(t *testing.T) {
	ms := openMessages(t)
	assert.Error(t, ms.Append(domain.Message{Sender: "a", Recipient: "b"}))
}

func TestMessageStore_QueryOrdersByTimestamp(t *testing.T) {
	ms := openMessages(t)
	for i, sec := range []int64{30, 10, 20} {
		require.NoError(t, ms.Append(domain.Message{
			ID:        string(rune('a' + i)),
			Sender:    "alice",
			Recipient: "bob",
			Timestamp: at(sec),
		}))
	}
	require.NoError(t, ms.Append(domain.Message{ID: "x", Sender: "alice", Recipient: "carol", Timestamp: at(5)}))

	got, err := ms.Query("alice|bob")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestMessageStore_ReconcileID(t *testing.T) {
	ms := openMessages(t)
	pending := domain.Message{TempID: "tmp-1", Sender: "alice", Recipient: "bob", Plaintext: "hi", Timestamp: at(0), Pending: true}
	require.NoError(t, ms.Append(pending))

	left, err := ms.Pending()
	require.NoError(t, err)
	require.Len(t, left, 1)

	require.NoError(t, ms.ReconcileID("tmp-1", "42", true))

	ok, err := ms.Exists("tmp-1")
	require.NoError(t, err)
	assert.False(t, ok)

	got, ok, err := ms.Get("42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, got.Pending)
	assert.True(t, got.Delivered)
	assert.Equal(t, "tmp-1", got.TempID)
	assert.Equal(t, "hi", got.Plaintext)

	all, err := ms.Query("alice|bob")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "42", all[0].ID)

	left, err = ms.Pending()
	require.NoError(t, err)
	assert.Empty(t, left)

	// A second ack for the same temp id is a logged no-op.
	require.NoError(t, ms.ReconcileID("tmp-1", "42", true))
	require.NoError(t, ms.ReconcileID("never-sent", "7", false))
}

func TestMessageStore_ReconcileID_ExistingServerCopy(t *testing.T) {
	ms := openMessages(t)
	require.NoError(t, ms.Append(domain.Message{TempID: "tmp", Sender: "alice", Recipient: "bob", Timestamp: at(0), Pending: true}))
	require.NoError(t, ms.Append(domain.Message{ID: "9", Sender: "alice", Recipient: "bob", Timestamp: at(1)}))

	require.NoError(t, ms.ReconcileID("tmp", "9", false))

	all, err := ms.Query("alice|bob")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "9", all[0].ID)
	assert.Equal(t, "tmp", all[0].TempID)
}

func TestMessageStore_SetPlaintext(t *testing.T) {
	ms := openMessages(t)
	require.NoError(t, ms.Append(domain.Message{ID: "1", Sender: "bob", Recipient: "alice", Undecryptable: true, Timestamp: at(0)}))

	got, _, err := ms.Get("1")
	require.NoError(t, err)
	assert.Equal(t, domain.UndecryptablePlaceholder, got.Body())

	require.NoError(t, ms.SetPlaintext("1", "recovered"))
	got, _, err = ms.Get("1")
	require.NoError(t, err)
	assert.False(t, got.Undecryptable)
	assert.Equal(t, "recovered", got.Body())

	assert.Error(t, ms.SetPlaintext("missing", "x"))
}

func TestMessageStore_ConversationsAndClear(t *testing.T) {
	ms := openMessages(t)
	require.NoError(t, ms.Append(domain.Message{ID: "1", Sender: "alice", Recipient: "bob", Timestamp: at(10)}))
	require.NoError(t, ms.Append(domain.Message{ID: "2", Sender: "carol", Recipient: "alice", Timestamp: at(20)}))
	require.NoError(t, ms.Append(domain.Message{ID: "3", Sender: "bob", Recipient: "alice", Timestamp: at(5)}))
	require.NoError(t, ms.Append(domain.Message{ID: "4", Sender: "bob", Recipient: "carol", Timestamp: at(1)}))

	convs, err := ms.Conversations("alice")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, domain.ConversationKey("alice|carol"), convs[0].Key)
	assert.Equal(t, domain.ConversationKey("alice|bob"), convs[1].Key)
	assert.True(t, convs[1].LastMessageTime.Equal(at(10)))
	assert.Equal(t, []domain.Username{"alice", "bob"}, convs[1].Participants)

	require.NoError(t, ms.ClearAll())
	convs, err = ms.Conversations("alice")
	require.NoError(t, err)
	assert.Empty(t, convs)
	ok, err := ms.Exists("1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMessageStore_ConcurrentAppendsToOneConversation(t *testing.T) {
	ms := openMessages(t)
	const n = 200

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = ms.Append(domain.Message{
				ID:         fmt.Sprint(i),
				Sender:     "alice",
				Recipient:  "bob",
				Ciphertext: "c",
				Timestamp:  at(int64(i)),
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "append %d", i)
	}
	got, err := ms.Query("alice|bob")
	require.NoError(t, err)
	require.Len(t, got, n)
	for i, m := range got {
		assert.Equal(t, fmt.Sprint(i), m.ID)
	}

	convs, err := ms.Conversations("alice")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.True(t, convs[0].LastMessageTime.Equal(at(n-1)))
}

func TestMessageStore_ReconcileWhileAppendingAndQuerying(t *testing.T) {
	ms := openMessages(t)
	const n = 50
	for i := 0; i < n; i++ {
		require.NoError(t, ms.Append(domain.Message{
			TempID:    fmt.Sprintf("t%d", i),
			Sender:    "alice",
			Recipient: "bob",
			Timestamp: at(int64(i)),
			Pending:   true,
		}))
	}

	var wg sync.WaitGroup
	errs := make(chan error, 3*n)
	for i := 0; i < n; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			errs <- ms.ReconcileID(fmt.Sprintf("t%d", i), fmt.Sprintf("s%d", i), true)
		}(i)
		go func(i int) {
			defer wg.Done()
			errs <- ms.Append(domain.Message{
				ID:        fmt.Sprintf("in%d", i),
				Sender:    "bob",
				Recipient: "alice",
				Timestamp: at(int64(n + i)),
			})
		}(i)
		go func() {
			defer wg.Done()
			msgs, err := ms.Query("alice|bob")
			if err == nil && len(msgs) < n {
				err = fmt.Errorf("query saw %d messages, want at least %d", len(msgs), n)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	pending, err := ms.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
	got, err := ms.Query("alice|bob")
	require.NoError(t, err)
	assert.Len(t, got, 2*n)
}

func TestMessageStore_QueryOrdersTimestampsBefore1970(t *testing.T) {
	ms := openMessages(t)
	stamps := map[string]time.Time{
		"oldest": time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC),
		"old":    time.Date(1969, 12, 31, 23, 59, 59, 0, time.UTC),
		"modern": at(0),
	}
	for id, ts := range stamps {
		require.NoError(t, ms.Append(domain.Message{ID: id, Sender: "alice", Recipient: "bob", Timestamp: ts}))
	}

	got, err := ms.Query("alice|bob")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"oldest", "old", "modern"}, []string{got[0].ID, got[1].ID, got[2].ID})
}
