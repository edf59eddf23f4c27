package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/4abishai/secura/internal/domain"
)

// DefaultCapacity bounds the queue when New is given a non-positive size.
const DefaultCapacity = 64

// Text returns the user-facing message for a key change seen in dir.
func Text(peer domain.Username, dir domain.Direction) string {
	if dir == domain.DirectionIncoming {
		return fmt.Sprintf("%s logged in from a new device. Their security key has been updated.", peer)
	}
	return fmt.Sprintf("%s's security key has been updated. Messages will use the new key.", peer)
}

// Queue is a bounded FIFO of notifications. When full, the oldest entry is
// dropped.
type Queue struct {
	mu     sync.Mutex
	limit  int
	nextID uint64
	items  []domain.KeyChangeNotification
	now    func() time.Time
	onPush []func(domain.KeyChangeNotification)
}

// New returns an empty queue holding at most capacity entries.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{limit: capacity, now: time.Now}
}

// Push assigns an id and timestamp to n, fills in its text when empty and
// enqueues it.
func (q *Queue) Push(n domain.KeyChangeNotification) domain.KeyChangeNotification {
	q.mu.Lock()
	q.nextID++
	n.ID = q.nextID
	if n.Timestamp.IsZero() {
		n.Timestamp = q.now()
	}
	if n.Message == "" {
		n.Message = Text(n.Peer, n.Direction)
	}
	if len(q.items) == q.limit {
		q.items = q.items[1:]
	}
	q.items = append(q.items, n)
	subs := append([]func(domain.KeyChangeNotification){}, q.onPush...)
	q.mu.Unlock()

	for _, fn := range subs {
		fn(n)
	}
	return n
}

// Subscribe calls fn for every later Push, outside the queue lock.
func (q *Queue) Subscribe(fn func(domain.KeyChangeNotification)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onPush = append(q.onPush, fn)
}

// Pending returns the queued notifications, oldest first.
func (q *Queue) Pending() []domain.KeyChangeNotification {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.KeyChangeNotification(nil), q.items...)
}

// Dismiss removes the notification with id and reports whether it was queued.
func (q *Queue) Dismiss(id uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, n := range q.items {
		if n.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Drain returns and removes every queued notification.
func (q *Queue) Drain() []domain.KeyChangeNotification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// Compile-time assertion that Queue implements domain.Notifier.
var _ domain.Notifier = (*Queue)(nil)
