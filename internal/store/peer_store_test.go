package store_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4abishai/secura/internal/domain"
	"github.com/4abishai/secura/internal/store"
)

func TestPeerStore_SaveLoadClear(t *testing.T) {
	ps := store.NewPeerFileStore(t.TempDir())

	recs, err := ps.LoadPeerRecords()
	require.NoError(t, err)
	assert.Empty(t, recs)

	now := time.Unix(1700000000, 0).UTC()
	bob := domain.PeerKeyRecord{Peer: "bob", PublicKey: domain.X25519Public{1}, Fingerprint: "aa", UpdatedAt: now}
	alice := domain.PeerKeyRecord{Peer: "alice", PublicKey: domain.X25519Public{2}, Fingerprint: "bb", UpdatedAt: now}
	require.NoError(t, ps.SavePeerRecord(bob))
	require.NoError(t, ps.SavePeerRecord(alice))

	bob.PublicKey = domain.X25519Public{9}
	bob.Fingerprint = "cc"
	require.NoError(t, ps.SavePeerRecord(bob))

	recs, err = ps.LoadPeerRecords()
	require.NoError(t, err)
	assert.Equal(t, []domain.PeerKeyRecord{alice, bob}, recs)

	require.NoError(t, ps.ClearPeerRecords())
	require.NoError(t, ps.ClearPeerRecords())
	recs, err = ps.LoadPeerRecords()
	require.NoError(t, err)
	assert.Empty(t, recs)
}
