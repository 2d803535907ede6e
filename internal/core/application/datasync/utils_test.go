package datasync_test

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/tdex-p2p/internal/core/domain"
	"github.com/tdex-network/tdex-p2p/pkg/wire"
)

const (
	localAddr = "/ip4/127.0.0.1/tcp/9945"
	seedAddr  = "/ip4/127.0.0.1/tcp/9946"
	otherAddr = "/ip4/127.0.0.1/tcp/9947"
)

var ctx = context.Background()

func newKey(t *testing.T) ed25519.PrivateKey {
	_, key, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return key
}

func newEntry(
	t *testing.T, key ed25519.PrivateKey, data string, creationTime int64,
	caps ...domain.Capability,
) domain.ProtectedStorageEntry {
	entry := domain.ProtectedStorageEntry{
		Kind: domain.EntryKindPlain,
		Payload: domain.StoragePayload{
			Type:                 domain.PayloadTypeOffer,
			Data:                 []byte(data),
			RequiredCapabilities: caps,
		},
		SequenceNumber: 1,
		TTL:            time.Hour,
		CreationTime:   creationTime,
	}
	entry.Sign(key)
	return entry
}

func newPayload(
	data string, creationTime int64, caps ...domain.Capability,
) domain.PersistableNetworkPayload {
	return domain.PersistableNetworkPayload{
		Type:                 "trade_statistics",
		Data:                 []byte(data),
		RequiredCapabilities: caps,
		CreationTime:         creationTime,
	}
}

func addEntries(
	t *testing.T, store domain.PayloadStore,
	entries []domain.ProtectedStorageEntry,
	payloads []domain.PersistableNetworkPayload,
) {
	for _, e := range entries {
		stored, err := store.AddProtectedEntry(ctx, e)
		require.NoError(t, err)
		require.True(t, stored)
	}
	for _, p := range payloads {
		stored, err := store.AddPersistablePayload(ctx, p)
		require.NoError(t, err)
		require.True(t, stored)
	}
}

func storeKeys(t *testing.T, store domain.PayloadStore) map[domain.StorageKey]bool {
	keys, err := store.GetKeys(ctx)
	require.NoError(t, err)
	set := make(map[domain.StorageKey]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

func responseOverhead(t *testing.T) int {
	overhead, err := wire.GetDataResponseOverhead(
		domain.NodeCapabilities, wire.ProtocolVersion,
	)
	require.NoError(t, err)
	return overhead
}
