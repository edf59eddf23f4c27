package store

import (
	"path/filepath"
	"sort"
	"sync"

	"github.com/4abishai/secura/internal/domain"
)

const peersFilename = "peers.json"

// PeerFileStore persists the last-known public key of each peer.
type PeerFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewPeerFileStore returns a PeerFileStore rooted at dir.
func NewPeerFileStore(dir string) *PeerFileStore {
	return &PeerFileStore{dir: dir}
}

// SavePeerRecord writes or replaces the record for record.Peer.
func (s *PeerFileStore) SavePeerRecord(record domain.PeerKeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, peersFilename)
	records := map[domain.Username]domain.PeerKeyRecord{}
	if _, err := loadJSON(path, &records); err != nil {
		return err
	}
	records[record.Peer] = record
	return saveJSON(path, records)
}

// LoadPeerRecords returns every stored record ordered by peer name.
func (s *PeerFileStore) LoadPeerRecords() ([]domain.PeerKeyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := map[domain.Username]domain.PeerKeyRecord{}
	if _, err := loadJSON(filepath.Join(s.dir, peersFilename), &records); err != nil {
		return nil, err
	}
	out := make([]domain.PeerKeyRecord, 0, len(records))
	for _, r := range records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Peer < out[j].Peer })
	return out, nil
}

// ClearPeerRecords forgets every peer.
func (s *PeerFileStore) ClearPeerRecords() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return removeFile(filepath.Join(s.dir, peersFilename))
}

// Compile-time assertion that PeerFileStore implements domain.PeerStore.
var _ domain.PeerStore = (*PeerFileStore)(nil)
