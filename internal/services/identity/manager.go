package identity

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/4abishai/secura/internal/crypto"
	"github.com/4abishai/secura/internal/domain"
)

const (
	// minPassphraseLength defines the minimum number of characters required for a passphrase.
	minPassphraseLength = 12
)

var (
	// ErrWeakPassphrase is returned when the passphrase fails the strength policy.
	ErrWeakPassphrase = fmt.Errorf(
		"passphrase is too weak (must be at least %d characters and include upper, lower, "+
			"number, and symbol)",
		minPassphraseLength,
	)
)

// Manager owns the device identity and its persistence.
type Manager struct {
	store      domain.IdentityStore
	passphrase string
	log        logrus.FieldLogger

	mu  sync.Mutex
	cur *domain.Identity
}

// New returns a Manager backed by s. An empty passphrase stores the identity
// unsealed.
func New(s domain.IdentityStore, passphrase string, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		store:      s,
		passphrase: passphrase,
		log:        log.WithField("component", "identity"),
	}
}

// LoadOrCreate returns the persisted identity, generating and saving a new
// one when none is stored or the stored one cannot be used. It never fails:
// if persisting fails the fresh identity is still returned for this run.
func (m *Manager) LoadOrCreate() domain.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cur != nil {
		return *m.cur
	}
	id, err := m.load()
	if err == nil {
		m.cur = &id
		return id
	}
	if errors.Is(err, os.ErrNotExist) {
		m.log.Info("no identity stored; generating")
	} else {
		m.log.WithError(err).Warn("stored identity unusable; regenerating")
	}
	id, err = m.generate()
	if err != nil {
		// Only the system RNG can fail here.
		m.log.WithError(err).Panic("generate identity")
	}
	return id
}

// Rotate discards the current identity and persists a fresh one, as a new
// device would.
func (m *Manager) Rotate() (domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.generate()
	if err != nil {
		return domain.Identity{}, err
	}
	m.log.WithField("fingerprint", crypto.FingerprintX25519(id.XPub)).Info("identity rotated")
	return id, nil
}

// Fingerprint returns a short fingerprint of the local public key.
func (m *Manager) Fingerprint() domain.Fingerprint {
	return crypto.FingerprintX25519(m.LoadOrCreate().XPub)
}

func (m *Manager) load() (domain.Identity, error) {
	id, err := m.store.LoadIdentity(m.passphrase)
	if err != nil {
		return domain.Identity{}, err
	}
	pub, err := crypto.PublicFromPrivate(id.XPriv)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrKeyImport, err)
	}
	if pub != id.XPub {
		return domain.Identity{}, fmt.Errorf("%w: public key does not match private key", domain.ErrKeyImport)
	}
	return id, nil
}

// generate creates a key pair, caches it and saves it. A save failure is
// logged, not returned.
func (m *Manager) generate() (domain.Identity, error) {
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.Identity{}, err
	}
	id := domain.Identity{XPub: pub, XPriv: priv}
	if err := m.store.SaveIdentity(m.passphrase, id); err != nil {
		m.log.WithError(err).Error("persist identity")
	}
	m.cur = &id
	return id, nil
}

// CheckPassphrase enforces a basic strength policy on passphrases used to
// seal the identity. The empty passphrase (unsealed storage) is accepted.
func CheckPassphrase(passphrase string) error {
	if passphrase == "" || isSecurePassphrase(passphrase) {
		return nil
	}
	return ErrWeakPassphrase
}

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}

// Compile-time assertion that Manager implements domain.IdentityService.
var _ domain.IdentityService = (*Manager)(nil)
