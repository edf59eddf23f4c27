package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/4abishai/secura/internal/crypto"
	"github.com/4abishai/secura/internal/domain"
)

type entry struct {
	domain.DerivedKey
	local domain.X25519Public
}

// Deriver yields per-peer message keys.
type Deriver struct {
	identity  domain.IdentityService
	peers     domain.PeerKeyCache
	directory domain.Directory
	notifier  domain.Notifier
	log       logrus.FieldLogger

	flight singleflight.Group

	mu   sync.Mutex
	keys map[domain.Username]entry
}

// New constructs a Deriver. directory may be nil when only DeriveFor is used;
// notifier may be nil to discard key-change notifications.
func New(
	identity domain.IdentityService,
	peers domain.PeerKeyCache,
	directory domain.Directory,
	notifier domain.Notifier,
	log logrus.FieldLogger,
) *Deriver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Deriver{
		identity:  identity,
		peers:     peers,
		directory: directory,
		notifier:  notifier,
		log:       log.WithField("component", "session"),
		keys:      map[domain.Username]entry{},
	}
}

// DeriveFor returns the key shared with peer under its current public key.
//
// Steps:
//  1. Refresh the peer cache with current; a changed fingerprint is a rotation
//     and queues a notification worded for dir.
//  2. Reuse the cached key when it was derived for the same peer key and the
//     same local identity.
//  3. Otherwise agree and expand a new key, replacing the cached one.
func (d *Deriver) DeriveFor(
	ctx context.Context,
	peer domain.Username,
	current domain.X25519Public,
	dir domain.Direction,
) ([32]byte, error) {
	flightKey := peer.String() + "|" + crypto.Fingerprint(current[:])
	v, err, _ := d.flight.Do(flightKey, func() (any, error) {
		return d.derive(peer, current, dir)
	})
	if err != nil {
		return [32]byte{}, err
	}
	return v.([32]byte), nil
}

// Resolve looks peer up in the directory and derives the key for the key it
// returns. Concurrent resolutions of one peer share a single lookup.
func (d *Deriver) Resolve(
	ctx context.Context,
	peer domain.Username,
	dir domain.Direction,
) ([32]byte, error) {
	if d.directory == nil {
		return [32]byte{}, fmt.Errorf("resolve %s: no directory configured", peer)
	}
	v, err, _ := d.flight.Do("resolve|"+peer.String(), func() (any, error) {
		pub, err := d.directory.FetchPublicKey(ctx, peer)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", peer, err)
		}
		return d.derive(peer, pub, dir)
	})
	if err != nil {
		return [32]byte{}, err
	}
	return v.([32]byte), nil
}

func (d *Deriver) derive(
	peer domain.Username,
	current domain.X25519Public,
	dir domain.Direction,
) ([32]byte, error) {
	rec, rotated := d.peers.Refresh(peer, current)
	if rotated && d.notifier != nil {
		d.notifier.Push(domain.KeyChangeNotification{Peer: peer, Direction: dir})
	}

	id := d.identity.LoadOrCreate()

	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.keys[peer]; ok && !rotated && e.Fingerprint == rec.Fingerprint && e.local == id.XPub {
		return e.Key, nil
	}
	key, err := crypto.DeriveMessageKey(id.XPriv, id.XPub, current)
	if err != nil {
		d.log.WithFields(logrus.Fields{"peer": peer, "fingerprint": rec.Fingerprint}).
			WithError(err).Warn("key agreement failed")
		return [32]byte{}, fmt.Errorf("derive key for %s: %w", peer, err)
	}
	d.keys[peer] = entry{
		DerivedKey: domain.DerivedKey{Peer: peer, Fingerprint: rec.Fingerprint, Key: key},
		local:      id.XPub,
	}
	d.log.WithFields(logrus.Fields{
		"peer":        peer,
		"fingerprint": rec.Fingerprint,
		"direction":   dir,
	}).Debug("derived message key")
	return key, nil
}

// Forget drops every cached key.
func (d *Deriver) Forget() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys = map[domain.Username]entry{}
}

// Compile-time assertion that Deriver implements domain.KeyDeriver.
var _ domain.KeyDeriver = (*Deriver)(nil)
