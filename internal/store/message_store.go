package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/4abishai/secura/internal/domain"
)

// MessagesDirname is the badger directory under the home directory.
const MessagesDirname = "messages"

const (
	prefixMsg  = "msg:"
	prefixIdx  = "idx:"
	prefixConv = "conv:"
)

// MessageStore is the badger-backed message log.
//
// Layout:
//
//	msg:<dedupKey>                          -> JSON domain.Message
//	idx:<conversation>\x00<ts><dedupKey>    -> dedupKey (ts is big-endian unix nanos, sign bit flipped)
//	conv:<conversation>                     -> JSON domain.ConversationSummary
//
// Writers are serialised: every append touches the shared conv: key, and
// concurrent read-modify-write transactions on it would fail with
// badger.ErrConflict.
type MessageStore struct {
	db  *badger.DB
	log logrus.FieldLogger

	writeMu sync.Mutex
}

// OpenMessageStore opens (or creates) the log at dir. An empty dir opens an
// in-memory database.
func OpenMessageStore(dir string, log logrus.FieldLogger) (*MessageStore, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open message store: %w", err)
	}
	return &MessageStore{
		db:  db,
		log: log.WithField("component", "message_store"),
	}, nil
}

// Close releases the database.
func (s *MessageStore) Close() error { return s.db.Close() }

// update runs fn in a read-write transaction, one writer at a time.
func (s *MessageStore) update(fn func(txn *badger.Txn) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.db.Update(fn)
}

func msgKey(key string) []byte { return []byte(prefixMsg + key) }

func convKey(ck domain.ConversationKey) []byte { return []byte(prefixConv + ck.String()) }

func idxPrefix(ck domain.ConversationKey) []byte {
	return append([]byte(prefixIdx+ck.String()), 0)
}

func idxKey(m domain.Message) []byte {
	k := idxPrefix(m.Conversation)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], sortableNanos(m.Timestamp.UnixNano()))
	k = append(k, ts[:]...)
	return append(k, m.DedupKey()...)
}

// sortableNanos maps signed nanoseconds onto uint64 so that byte order
// matches time order, including before 1970.
func sortableNanos(ns int64) uint64 { return uint64(ns) ^ 1<<63 }

func getMessage(txn *badger.Txn, key string) (domain.Message, bool, error) {
	var m domain.Message
	item, err := txn.Get(msgKey(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return m, false, nil
	}
	if err != nil {
		return m, false, err
	}
	err = item.Value(func(val []byte) error { return json.Unmarshal(val, &m) })
	return m, err == nil, err
}

func putMessage(txn *badger.Txn, m domain.Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := txn.Set(msgKey(m.DedupKey()), b); err != nil {
		return err
	}
	return txn.Set(idxKey(m), []byte(m.DedupKey()))
}

func deleteMessage(txn *badger.Txn, m domain.Message) error {
	if err := txn.Delete(msgKey(m.DedupKey())); err != nil {
		return err
	}
	return txn.Delete(idxKey(m))
}

func touchConversation(txn *badger.Txn, m domain.Message) error {
	var sum domain.ConversationSummary
	item, err := txn.Get(convKey(m.Conversation))
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		sum = domain.ConversationSummary{
			Key:          m.Conversation,
			Participants: m.Conversation.Participants(),
		}
	case err != nil:
		return err
	default:
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &sum) }); err != nil {
			return err
		}
	}
	if !m.Timestamp.After(sum.LastMessageTime) {
		return nil
	}
	sum.LastMessageTime = m.Timestamp
	b, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	return txn.Set(convKey(m.Conversation), b)
}

// Append stores msg under its dedup key. Appending a key that already exists
// leaves the stored record untouched.
func (s *MessageStore) Append(msg domain.Message) error {
	key := msg.DedupKey()
	if key == "" {
		return errors.New("append message: missing id and temp id")
	}
	if msg.Conversation == "" {
		msg.Conversation = domain.NewConversationKey(msg.Sender, msg.Recipient)
	}
	return s.update(func(txn *badger.Txn) error {
		_, ok, err := getMessage(txn, key)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if err := putMessage(txn, msg); err != nil {
			return err
		}
		return touchConversation(txn, msg)
	})
}

// ReconcileID moves the pending record stored under tempID to id in one
// transaction. If a record already exists under id (for example replayed by
// history first), the pending copy is dropped. A missing pending record is
// logged and ignored.
func (s *MessageStore) ReconcileID(tempID, id string, delivered bool) error {
	return s.update(func(txn *badger.Txn) error {
		pending, ok, err := getMessage(txn, tempID)
		if err != nil {
			return err
		}
		if !ok || !pending.Pending {
			s.log.WithFields(logrus.Fields{"temp_id": tempID, "message_id": id}).
				Warn("ack for unknown pending message")
			return nil
		}
		if err := deleteMessage(txn, pending); err != nil {
			return err
		}

		existing, ok, err := getMessage(txn, id)
		if err != nil {
			return err
		}
		if ok {
			if existing.TempID == "" {
				existing.TempID = tempID
				b, err := json.Marshal(existing)
				if err != nil {
					return err
				}
				return txn.Set(msgKey(id), b)
			}
			return nil
		}

		pending.ID = id
		pending.Pending = false
		pending.Delivered = delivered
		return putMessage(txn, pending)
	})
}

// Query returns the conversation's messages ordered by timestamp ascending.
func (s *MessageStore) Query(conversation domain.ConversationKey) ([]domain.Message, error) {
	var out []domain.Message
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := idxPrefix(conversation)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			m, ok, err := getMessage(txn, string(key))
			if err != nil {
				return err
			}
			if ok {
				out = append(out, m)
			}
		}
		return nil
	})
	return out, err
}

// Exists reports whether a record is stored under key.
func (s *MessageStore) Exists(key string) (bool, error) {
	_, ok, err := s.Get(key)
	return ok, err
}

// Get returns the record stored under key.
func (s *MessageStore) Get(key string) (domain.Message, bool, error) {
	var (
		m  domain.Message
		ok bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		m, ok, err = getMessage(txn, key)
		return err
	})
	return m, ok, err
}

// Pending lists records still awaiting a server id, oldest first.
func (s *MessageStore) Pending() ([]domain.Message, error) {
	var out []domain.Message
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixMsg)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var m domain.Message
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &m) }); err != nil {
				return err
			}
			if m.Pending {
				out = append(out, m)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, err
}

// SetPlaintext attaches decrypted text to the record under key.
func (s *MessageStore) SetPlaintext(key, plaintext string) error {
	return s.update(func(txn *badger.Txn) error {
		m, ok, err := getMessage(txn, key)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("set plaintext: no message %q", key)
		}
		m.Plaintext = plaintext
		m.Undecryptable = false
		b, err := json.Marshal(m)
		if err != nil {
			return err
		}
		return txn.Set(msgKey(key), b)
	})
}

// Conversations lists the conversations user takes part in, most recent
// first.
func (s *MessageStore) Conversations(user domain.Username) ([]domain.ConversationSummary, error) {
	var out []domain.ConversationSummary
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixConv)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var sum domain.ConversationSummary
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &sum) }); err != nil {
				return err
			}
			for _, p := range sum.Participants {
				if p == user {
					out = append(out, sum)
					break
				}
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastMessageTime.After(out[j].LastMessageTime) })
	return out, err
}

// ClearAll removes every message and conversation.
func (s *MessageStore) ClearAll() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.db.DropAll()
}

// Compile-time assertion that MessageStore implements domain.MessageStore.
var _ domain.MessageStore = (*MessageStore)(nil)
