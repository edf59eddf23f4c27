package peers

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/4abishai/secura/internal/crypto"
	"github.com/4abishai/secura/internal/domain"
)

// Cache holds one PeerKeyRecord per peer. Records are never evicted; they
// are only replaced when a peer presents a different key.
type Cache struct {
	store domain.PeerStore
	log   logrus.FieldLogger
	now   func() time.Time

	mu      sync.RWMutex
	records map[domain.Username]domain.PeerKeyRecord
}

// New returns a Cache seeded from store. A nil store keeps records in memory
// only.
func New(store domain.PeerStore, log logrus.FieldLogger) (*Cache, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &Cache{
		store:   store,
		log:     log.WithField("component", "peers"),
		now:     time.Now,
		records: map[domain.Username]domain.PeerKeyRecord{},
	}
	if store == nil {
		return c, nil
	}
	recs, err := store.LoadPeerRecords()
	if err != nil {
		return nil, fmt.Errorf("load peer records: %w", err)
	}
	for _, r := range recs {
		c.records[r.Peer] = r
	}
	return c, nil
}

// Get returns the cached record for peer, or domain.ErrUnknownPeer.
func (c *Cache) Get(peer domain.Username) (domain.PeerKeyRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.records[peer]
	if !ok {
		return domain.PeerKeyRecord{}, fmt.Errorf("%w: %s", domain.ErrUnknownPeer, peer)
	}
	return r, nil
}

// Refresh records current as peer's key and reports whether it replaced a
// different one. The first sighting of a peer is not a rotation.
func (c *Cache) Refresh(peer domain.Username, current domain.X25519Public) (domain.PeerKeyRecord, bool) {
	fp := crypto.FingerprintX25519(current)

	c.mu.Lock()
	defer c.mu.Unlock()

	prev, known := c.records[peer]
	if known && prev.Fingerprint == fp {
		return prev, false
	}
	rec := domain.PeerKeyRecord{
		Peer:        peer,
		PublicKey:   current,
		Fingerprint: fp,
		UpdatedAt:   c.now(),
	}
	c.records[peer] = rec

	entry := c.log.WithFields(logrus.Fields{"peer": peer, "fingerprint": fp})
	if known {
		entry.WithField("previous", prev.Fingerprint).Info("peer key changed")
	} else {
		entry.Debug("first key for peer")
	}
	if c.store != nil {
		if err := c.store.SavePeerRecord(rec); err != nil {
			entry.WithError(err).Warn("persist peer record")
		}
	}
	return rec, known
}

// Reset forgets every peer, in memory and on disk.
func (c *Cache) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = map[domain.Username]domain.PeerKeyRecord{}
	if c.store == nil {
		return nil
	}
	return c.store.ClearPeerRecords()
}

// Compile-time assertion that Cache implements domain.PeerKeyCache.
var _ domain.PeerKeyCache = (*Cache)(nil)
