package datasync_test

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/tdex-p2p/internal/core/application/datasync"
	"github.com/tdex-network/tdex-p2p/internal/core/domain"
	"github.com/tdex-network/tdex-p2p/internal/infrastructure/storage/db/inmemory"
	"github.com/tdex-network/tdex-p2p/pkg/wire"
)

func TestNewRequestHandler(t *testing.T) {
	store := inmemory.NewPayloadStoreImpl()

	_, err := datasync.NewRequestHandler(nil, 1024, 0)
	require.EqualError(t, err, "missing payload store")

	for _, size := range []int{0, responseOverhead(t), wire.MaxPayloadSize + 1} {
		_, err = datasync.NewRequestHandler(store, size, 0)
		require.ErrorIs(t, err, datasync.ErrInvalidMaxResponseSize)
	}

	handler, err := datasync.NewRequestHandler(store, 1024, 10)
	require.NoError(t, err)
	require.NotNil(t, handler)
}

func TestHandleGetDataRequest(t *testing.T) {
	key := newKey(t)
	now := time.Now().UnixMilli()

	plain := newEntry(t, key, "plain", now)
	mediation := newEntry(t, key, "mediation", now, domain.CapabilityMediation)
	mailbox := newEntry(t, key, "mailbox", now)
	mailbox.Kind = domain.EntryKindMailbox
	mailbox.ReceiverPubKey = newKey(t).Public().(ed25519.PublicKey)
	mailbox.Sign(key)
	expired := newEntry(t, key, "expired", time.Now().Add(-2*time.Hour).UnixMilli())

	stats := newPayload("stats", now)
	witness := newPayload("witness", now, domain.CapabilityAccountAgeWitness)

	store := inmemory.NewPayloadStoreImpl()
	addEntries(
		t, store,
		[]domain.ProtectedStorageEntry{plain, mediation, mailbox, expired},
		[]domain.PersistableNetworkPayload{stats, witness},
	)
	handler, err := datasync.NewRequestHandler(store, 1<<20, 0)
	require.NoError(t, err)

	tests := []struct {
		name             string
		req              wire.GetDataRequest
		expectedEntries  []domain.ProtectedStorageEntry
		expectedPayloads []domain.PersistableNetworkPayload
	}{
		{
			name: "all_capabilities",
			req: wire.GetDataRequest{
				Nonce:        1,
				Capabilities: domain.NodeCapabilities,
			},
			expectedEntries:  []domain.ProtectedStorageEntry{plain, mediation, mailbox},
			expectedPayloads: []domain.PersistableNetworkPayload{stats, witness},
		},
		{
			name: "no_capabilities",
			req: wire.GetDataRequest{
				Nonce:        2,
				Capabilities: domain.NewCapabilities(),
			},
			expectedEntries:  []domain.ProtectedStorageEntry{plain},
			expectedPayloads: []domain.PersistableNetworkPayload{stats},
		},
		{
			name: "some_capabilities",
			req: wire.GetDataRequest{
				Nonce:                   3,
				IsGetUpdatedDataRequest: true,
				Capabilities: domain.NewCapabilities(
					domain.CapabilityMediation, domain.CapabilityAccountAgeWitness,
				),
			},
			expectedEntries:  []domain.ProtectedStorageEntry{plain, mediation},
			expectedPayloads: []domain.PersistableNetworkPayload{stats, witness},
		},
		{
			name: "excluded_keys",
			req: wire.GetDataRequest{
				Nonce:                   4,
				IsGetUpdatedDataRequest: true,
				Capabilities:            domain.NodeCapabilities,
				ExcludedKeys:            []domain.StorageKey{plain.Key(), stats.Key()},
			},
			expectedEntries:  []domain.ProtectedStorageEntry{mediation, mailbox},
			expectedPayloads: []domain.PersistableNetworkPayload{witness},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := handler.HandleGetDataRequest(ctx, tt.req)
			require.NoError(t, err)
			require.Equal(t, tt.req.Nonce, res.Nonce)
			require.Equal(t, tt.req.IsGetUpdatedDataRequest, res.IsGetUpdatedDataResponse)
			require.False(t, res.WasTruncated)
			require.Equal(t, wire.ProtocolVersion, res.Version)
			require.True(t, domain.NodeCapabilities.Equal(res.Capabilities))

			require.ElementsMatch(t, keysOfEntries(tt.expectedEntries), keysOfEntries(res.ProtectedEntries))
			require.ElementsMatch(t, keysOfPayloads(tt.expectedPayloads), keysOfPayloads(res.PersistablePayloads))
		})
	}
}

func TestHandleGetDataRequestTruncation(t *testing.T) {
	key := newKey(t)
	now := time.Now().UnixMilli()

	oldest := newEntry(t, key, "oldest", now-2000)
	older := newEntry(t, key, "older", now-1000)
	newest := newEntry(t, key, "newest", now)
	payload := newPayload("payload", now)

	store := inmemory.NewPayloadStoreImpl()
	addEntries(
		t, store,
		[]domain.ProtectedStorageEntry{oldest, newest, older},
		[]domain.PersistableNetworkPayload{payload},
	)

	newestSize, err := wire.ProtectedEntrySize(newest)
	require.NoError(t, err)
	olderSize, err := wire.ProtectedEntrySize(older)
	require.NoError(t, err)

	t.Run("truncated", func(t *testing.T) {
		maxSize := responseOverhead(t) + newestSize + olderSize
		handler, err := datasync.NewRequestHandler(store, maxSize, 0)
		require.NoError(t, err)

		res, err := handler.HandleGetDataRequest(ctx, wire.GetDataRequest{
			Nonce:        1,
			Capabilities: domain.NodeCapabilities,
		})
		require.NoError(t, err)
		require.True(t, res.WasTruncated)
		require.Equal(
			t, []domain.StorageKey{newest.Key(), older.Key()},
			keysOfEntries(res.ProtectedEntries),
		)
		require.Empty(t, res.PersistablePayloads)
	})

	t.Run("encoded_size", func(t *testing.T) {
		minSize := responseOverhead(t) + 1
		for maxSize := minSize; maxSize < minSize+4*newestSize; maxSize += 7 {
			handler, err := datasync.NewRequestHandler(store, maxSize, 0)
			require.NoError(t, err)

			res, err := handler.HandleGetDataRequest(ctx, wire.GetDataRequest{
				Nonce:                   0xfffffff0,
				IsGetUpdatedDataRequest: true,
				Capabilities:            domain.NodeCapabilities,
			})
			require.NoError(t, err)

			buf, err := wire.EncodeGetDataResponse(*res)
			require.NoError(t, err)
			require.LessOrEqual(t, len(buf), maxSize)
		}
	})

	t.Run("not_truncated", func(t *testing.T) {
		handler, err := datasync.NewRequestHandler(store, 1<<20, 0)
		require.NoError(t, err)

		res, err := handler.HandleGetDataRequest(ctx, wire.GetDataRequest{
			Nonce:        2,
			Capabilities: domain.NodeCapabilities,
		})
		require.NoError(t, err)
		require.False(t, res.WasTruncated)
		require.Len(t, res.ProtectedEntries, 3)
		require.Len(t, res.PersistablePayloads, 1)
	})
}

func keysOfEntries(entries []domain.ProtectedStorageEntry) []domain.StorageKey {
	keys := make([]domain.StorageKey, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key())
	}
	return keys
}

func keysOfPayloads(payloads []domain.PersistableNetworkPayload) []domain.StorageKey {
	keys := make([]domain.StorageKey, 0, len(payloads))
	for _, p := range payloads {
		keys = append(keys, p.Key())
	}
	return keys
}
