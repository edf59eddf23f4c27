package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/4abishai/secura/internal/relay"
	"github.com/4abishai/secura/internal/services/identity"
	"github.com/4abishai/secura/internal/services/notify"
	"github.com/4abishai/secura/internal/services/peers"
	"github.com/4abishai/secura/internal/services/session"
	"github.com/4abishai/secura/internal/store"
)

// Wire bundles all stores, services and clients for the CLI.
type Wire struct {
	Config Config
	Log    logrus.FieldLogger

	Identity      *identity.Manager
	Peers         *peers.Cache
	Notifications *notify.Queue
	Directory     *relay.HTTP
	Keys          *session.Deriver
	Messages      *store.MessageStore
}

// NewWire constructs the dependency graph from cfg. Callers must Close it to
// release the message store.
func NewWire(cfg Config, log logrus.FieldLogger) (*Wire, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return nil, err
	}

	// File-based stores
	identityStore := store.NewIdentityFileStore(cfg.Home)
	peerStore := store.NewPeerFileStore(cfg.Home)

	messages, err := store.OpenMessageStore(filepath.Join(cfg.Home, store.MessagesDirname), log)
	if err != nil {
		return nil, err
	}

	// High-level services
	ids := identity.New(identityStore, cfg.Passphrase, log)
	cache, err := peers.New(peerStore, log)
	if err != nil {
		_ = messages.Close()
		return nil, fmt.Errorf("wire peers: %w", err)
	}
	notes := notify.New(cfg.NotificationCapacity)
	dir := relay.NewHTTP(cfg.DirectoryURL, cfg.HTTPTimeout)
	keys := session.New(ids, cache, dir, notes, log)

	return &Wire{
		Config:        cfg,
		Log:           log,
		Identity:      ids,
		Peers:         cache,
		Notifications: notes,
		Directory:     dir,
		Keys:          keys,
		Messages:      messages,
	}, nil
}

// Close releases the message store.
func (w *Wire) Close() error {
	return w.Messages.Close()
}
