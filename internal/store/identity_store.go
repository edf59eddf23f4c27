package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/4abishai/secura/internal/domain"
)

const (
	idFilename       = "identity.json"
	sealedIDFilename = "identity.json.enc"
)

// IdentityFileStore persists the local identity to disk.
//
// With a non-empty passphrase the keypair is sealed (see crypto_envelope.go)
// and written to identity.json.enc; otherwise it is stored as plain JSON.
type IdentityFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewIdentityFileStore returns an IdentityFileStore rooted at dir.
func NewIdentityFileStore(dir string) *IdentityFileStore {
	return &IdentityFileStore{dir: dir}
}

func (s *IdentityFileStore) path(passphrase string) string {
	if passphrase == "" {
		return filepath.Join(s.dir, idFilename)
	}
	return filepath.Join(s.dir, sealedIDFilename)
}

// SaveIdentity writes the identity to disk, sealing it when a passphrase is
// given.
func (s *IdentityFileStore) SaveIdentity(passphrase string, id domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	if passphrase != "" {
		N, r, p := scryptParamsDefault()
		if raw, err = encrypt(passphrase, raw, N, r, p); err != nil {
			return err
		}
	}
	return replaceFile(s.path(passphrase), raw)
}

// LoadIdentity reads the identity. Every failure, including a missing file,
// wraps domain.ErrKeyImport.
func (s *IdentityFileStore) LoadIdentity(passphrase string) (domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path(passphrase))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %w", domain.ErrKeyImport, err)
	}
	if passphrase != "" {
		if b, err = decrypt(passphrase, b); err != nil {
			return domain.Identity{}, fmt.Errorf("%w: %w", domain.ErrKeyImport, err)
		}
	}
	var id domain.Identity
	if err := json.Unmarshal(b, &id); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %w", domain.ErrKeyImport, err)
	}
	return id, nil
}

// Compile-time assertion that IdentityFileStore implements domain.IdentityStore.
var _ domain.IdentityStore = (*IdentityFileStore)(nil)
