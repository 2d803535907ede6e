package datasync_test

import (
	"context"
	"crypto/ed25519"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/tdex-p2p/internal/core/application/datasync"
	"github.com/tdex-network/tdex-p2p/internal/core/domain"
	"github.com/tdex-network/tdex-p2p/internal/infrastructure/storage/db/inmemory"
	"github.com/tdex-network/tdex-p2p/pkg/wire"
)

func TestNewRequestManager(t *testing.T) {
	store := inmemory.NewPayloadStoreImpl()
	messenger := newMockMessenger()

	_, err := datasync.NewRequestManager(nil, messenger, time.Second)
	require.EqualError(t, err, "missing payload store")

	_, err = datasync.NewRequestManager(store, nil, time.Second)
	require.EqualError(t, err, "missing messenger")

	_, err = datasync.NewRequestManager(store, messenger, 0)
	require.ErrorIs(t, err, datasync.ErrInvalidRequestTimeout)
}

func TestNonceCorrelation(t *testing.T) {
	key := newKey(t)
	store := inmemory.NewPayloadStoreImpl()
	messenger := newMockMessenger()
	messenger.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	manager, err := datasync.NewRequestManager(store, messenger, time.Minute)
	require.NoError(t, err)

	nonce1, err := manager.RequestData(ctx, seedAddr, false, nil)
	require.NoError(t, err)
	nonce2, err := manager.RequestData(ctx, otherAddr, false, nil)
	require.NoError(t, err)
	require.NotEqual(t, nonce1, nonce2)
	require.Equal(t, 2, manager.NumOfPendingRequests())

	entry := newEntry(t, key, "data", time.Now().UnixMilli())
	newResponse := func(nonce uint32, isUpdate bool) wire.GetDataResponse {
		return wire.GetDataResponse{
			ProtectedEntries:         []domain.ProtectedStorageEntry{entry},
			Nonce:                    nonce,
			IsGetUpdatedDataResponse: isUpdate,
			Capabilities:             domain.NewCapabilities(domain.CapabilitySeedNode),
			Version:                  wire.ProtocolVersion,
		}
	}

	t.Run("unknown_nonce", func(t *testing.T) {
		err := manager.HandleGetDataResponse(
			ctx, seedAddr, newResponse(nonce1+nonce2, false),
		)
		require.NoError(t, err)
		requireState(t, manager, nonce1, datasync.RequestStateRequested)
		requireState(t, manager, nonce2, datasync.RequestStateRequested)
		require.Empty(t, storeKeys(t, store))
	})

	t.Run("wrong_kind", func(t *testing.T) {
		err := manager.HandleGetDataResponse(ctx, seedAddr, newResponse(nonce1, true))
		require.NoError(t, err)
		requireState(t, manager, nonce1, datasync.RequestStateRequested)
		require.Empty(t, storeKeys(t, store))
	})

	t.Run("wrong_sender", func(t *testing.T) {
		err := manager.HandleGetDataResponse(ctx, otherAddr, newResponse(nonce1, false))
		require.NoError(t, err)
		requireState(t, manager, nonce1, datasync.RequestStateRequested)
		requireState(t, manager, nonce2, datasync.RequestStateRequested)
		require.Empty(t, storeKeys(t, store))
	})

	t.Run("matching_nonce", func(t *testing.T) {
		done := make(chan datasync.RequestState, 1)
		go func() {
			state, _ := manager.WaitForRequest(
				context.Background(), wire.KindPreliminaryGetDataRequest, nonce1,
			)
			done <- state
		}()
		// Let the waiter find the request pending.
		time.Sleep(50 * time.Millisecond)

		err := manager.HandleGetDataResponse(ctx, seedAddr, newResponse(nonce1, false))
		require.NoError(t, err)
		require.Equal(t, datasync.RequestStateResponded, <-done)

		_, ok := manager.RequestState(wire.KindPreliminaryGetDataRequest, nonce1)
		require.False(t, ok)
		requireState(t, manager, nonce2, datasync.RequestStateRequested)
		require.True(t, storeKeys(t, store)[entry.Key()])

		caps, ok := manager.PeerCapabilities(seedAddr)
		require.True(t, ok)
		require.True(t, caps.Contains(domain.CapabilitySeedNode))
	})

	t.Run("duplicated_response", func(t *testing.T) {
		err := manager.HandleGetDataResponse(ctx, seedAddr, newResponse(nonce1, false))
		require.NoError(t, err)
		requireState(t, manager, nonce2, datasync.RequestStateRequested)
		require.Equal(t, 1, manager.NumOfPendingRequests())
	})
}

func TestTruncatedResponseTriggersFollowUp(t *testing.T) {
	key := newKey(t)
	now := time.Now().UnixMilli()

	t.Run("truncated", func(t *testing.T) {
		store := inmemory.NewPayloadStoreImpl()
		messenger := newMockMessenger()
		messenger.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		manager, err := datasync.NewRequestManager(store, messenger, time.Minute)
		require.NoError(t, err)

		local := newEntry(t, key, "local", now)
		addEntries(t, store, []domain.ProtectedStorageEntry{local}, nil)

		nonce, err := manager.RequestData(ctx, seedAddr, false, nil)
		require.NoError(t, err)

		received := newEntry(t, key, "received", now)
		payload := newPayload("payload", now)
		err = manager.HandleGetDataResponse(ctx, seedAddr, wire.GetDataResponse{
			ProtectedEntries:    []domain.ProtectedStorageEntry{received},
			PersistablePayloads: []domain.PersistableNetworkPayload{payload},
			Nonce:               nonce,
			WasTruncated:        true,
			Capabilities:        domain.NodeCapabilities,
			Version:             wire.ProtocolVersion,
		})
		require.NoError(t, err)

		reqs := messenger.sentRequests()
		require.Len(t, reqs, 2)
		followUp := reqs[1]
		require.Equal(t, seedAddr, followUp.peer)
		require.Equal(t, wire.KindGetUpdatedDataRequest, followUp.kind)
		require.True(t, followUp.req.IsGetUpdatedDataRequest)
		require.ElementsMatch(
			t,
			[]domain.StorageKey{local.Key(), received.Key(), payload.Key()},
			followUp.req.ExcludedKeys,
		)
		requireStateOfKind(
			t, manager, wire.KindGetUpdatedDataRequest, followUp.req.Nonce,
			datasync.RequestStateRequested,
		)
	})

	t.Run("truncated_empty", func(t *testing.T) {
		store := inmemory.NewPayloadStoreImpl()
		messenger := newMockMessenger()
		messenger.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		manager, err := datasync.NewRequestManager(store, messenger, time.Minute)
		require.NoError(t, err)

		nonce, err := manager.RequestData(ctx, seedAddr, false, nil)
		require.NoError(t, err)

		err = manager.HandleGetDataResponse(ctx, seedAddr, wire.GetDataResponse{
			Nonce:        nonce,
			WasTruncated: true,
			Capabilities: domain.NodeCapabilities,
		})
		require.NoError(t, err)
		require.Len(t, messenger.sentRequests(), 1)
		require.Zero(t, manager.NumOfPendingRequests())
	})

	t.Run("not_truncated", func(t *testing.T) {
		store := inmemory.NewPayloadStoreImpl()
		messenger := newMockMessenger()
		messenger.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		manager, err := datasync.NewRequestManager(store, messenger, time.Minute)
		require.NoError(t, err)

		nonce, err := manager.RequestData(ctx, seedAddr, false, nil)
		require.NoError(t, err)

		err = manager.HandleGetDataResponse(ctx, seedAddr, wire.GetDataResponse{
			ProtectedEntries: []domain.ProtectedStorageEntry{newEntry(t, key, "data", now)},
			Nonce:            nonce,
			Capabilities:     domain.NodeCapabilities,
		})
		require.NoError(t, err)
		require.Len(t, messenger.sentRequests(), 1)
		require.Zero(t, manager.NumOfPendingRequests())
	})
}

// TestSyncWithTruncation syncs two stores through a responder whose max
// response size forces one truncated response and one follow-up.
func TestSyncWithTruncation(t *testing.T) {
	key := newKey(t)
	now := time.Now().UnixMilli()

	entries := []domain.ProtectedStorageEntry{
		newEntry(t, key, "entry1", now-3000),
		newEntry(t, key, "entry2", now-2000),
		newEntry(t, key, "entry3", now-1000),
		newEntry(t, key, "entry4", now),
	}
	payloads := []domain.PersistableNetworkPayload{
		newPayload("payload1", now-1000),
		newPayload("payload2", now),
	}

	size := 0
	for _, e := range entries[2:] {
		s, err := wire.ProtectedEntrySize(e)
		require.NoError(t, err)
		size += s
	}
	for _, p := range payloads {
		s, err := wire.PersistablePayloadSize(p)
		require.NoError(t, err)
		if s > size {
			size = s
		}
	}

	seedStore := inmemory.NewPayloadStoreImpl()
	addEntries(t, seedStore, entries, payloads)
	handler, err := datasync.NewRequestHandler(
		seedStore, responseOverhead(t)+size, 0,
	)
	require.NoError(t, err)

	store := inmemory.NewPayloadStoreImpl()
	messenger := newMockMessenger()
	messenger.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	manager, err := datasync.NewRequestManager(store, messenger, time.Minute)
	require.NoError(t, err)

	_, err = manager.RequestData(ctx, seedAddr, false, nil)
	require.NoError(t, err)

	// Serve every request sent by the manager until no more are sent.
	truncatedCount := 0
	for served := 0; served < 10; served++ {
		reqs := messenger.sentRequests()
		if served >= len(reqs) {
			break
		}
		res, err := handler.HandleGetDataRequest(ctx, reqs[served].req)
		require.NoError(t, err)
		if res.WasTruncated {
			truncatedCount++
		}
		require.NoError(t, manager.HandleGetDataResponse(ctx, seedAddr, *res))
	}

	require.Greater(t, truncatedCount, 0)
	require.Len(t, messenger.sentRequests(), truncatedCount+1)
	require.Equal(t, storeKeys(t, seedStore), storeKeys(t, store))
	require.Zero(t, manager.NumOfPendingRequests())
}

func TestRequestTimeout(t *testing.T) {
	store := inmemory.NewPayloadStoreImpl()
	messenger := newMockMessenger()
	messenger.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	manager, err := datasync.NewRequestManager(store, messenger, 50*time.Millisecond)
	require.NoError(t, err)

	nonce, err := manager.RequestData(ctx, seedAddr, false, nil)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	state, err := manager.WaitForRequest(waitCtx, wire.KindPreliminaryGetDataRequest, nonce)
	require.NoError(t, err)
	require.Equal(t, datasync.RequestStateTimedOut, state)
	require.Zero(t, manager.NumOfPendingRequests())

	// A late response is discarded.
	err = manager.HandleGetDataResponse(ctx, seedAddr, wire.GetDataResponse{
		ProtectedEntries: []domain.ProtectedStorageEntry{
			newEntry(t, newKey(t), "late", time.Now().UnixMilli()),
		},
		Nonce: nonce,
	})
	require.NoError(t, err)
	require.Empty(t, storeKeys(t, store))
}

func TestInvalidSignatureIsDropped(t *testing.T) {
	key := newKey(t)
	now := time.Now().UnixMilli()
	store := inmemory.NewPayloadStoreImpl()
	messenger := newMockMessenger()
	messenger.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	manager, err := datasync.NewRequestManager(store, messenger, time.Minute)
	require.NoError(t, err)

	valid := newEntry(t, key, "valid", now)
	tampered := newEntry(t, key, "tampered", now)
	tampered.SequenceNumber = 10
	forged := newEntry(t, key, "forged", now)
	forged.OwnerPubKey = newKey(t).Public().(ed25519.PublicKey)
	// Expired entry requiring mediation, relayed with TTL and
	// requirements stripped.
	stripped := newEntry(
		t, key, "stripped", time.Now().Add(-2*time.Hour).UnixMilli(),
		domain.CapabilityMediation,
	)
	stripped.TTL = 0
	stripped.Payload.RequiredCapabilities = nil

	nonce, err := manager.RequestData(ctx, seedAddr, false, nil)
	require.NoError(t, err)
	err = manager.HandleGetDataResponse(ctx, seedAddr, wire.GetDataResponse{
		ProtectedEntries: []domain.ProtectedStorageEntry{
			valid, tampered, forged, stripped,
		},
		Nonce:            nonce,
	})
	require.NoError(t, err)

	keys := storeKeys(t, store)
	require.Len(t, keys, 1)
	require.True(t, keys[valid.Key()])
}

func TestRequestDataSendFailure(t *testing.T) {
	store := inmemory.NewPayloadStoreImpl()
	messenger := newMockMessenger()
	messenger.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("connection refused"))
	manager, err := datasync.NewRequestManager(store, messenger, time.Minute)
	require.NoError(t, err)

	_, err = manager.RequestData(ctx, seedAddr, false, nil)
	require.Error(t, err)
	require.Zero(t, manager.NumOfPendingRequests())
}

func TestRequestInitialData(t *testing.T) {
	t.Run("no_seed_nodes", func(t *testing.T) {
		manager, err := datasync.NewRequestManager(
			inmemory.NewPayloadStoreImpl(), newMockMessenger(), time.Minute,
		)
		require.NoError(t, err)

		_, err = manager.RequestInitialData(ctx, nil)
		require.ErrorIs(t, err, datasync.ErrNoSeedNodes)
	})

	t.Run("unreachable", func(t *testing.T) {
		messenger := newMockMessenger()
		messenger.On("Send", mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("connection refused"))
		manager, err := datasync.NewRequestManager(
			inmemory.NewPayloadStoreImpl(), messenger, time.Minute,
		)
		require.NoError(t, err)

		_, err = manager.RequestInitialData(ctx, []string{seedAddr, otherAddr})
		require.ErrorIs(t, err, datasync.ErrSeedNodesUnreachable)
	})

	t.Run("partially_reachable", func(t *testing.T) {
		messenger := newMockMessenger()
		messenger.On("Send", mock.Anything, seedAddr, mock.Anything).Return(nil)
		messenger.On("Send", mock.Anything, otherAddr, mock.Anything).
			Return(errors.New("connection refused"))
		manager, err := datasync.NewRequestManager(
			inmemory.NewPayloadStoreImpl(), messenger, time.Minute,
		)
		require.NoError(t, err)

		nonces, err := manager.RequestInitialData(ctx, []string{seedAddr, otherAddr})
		require.NoError(t, err)
		require.Len(t, nonces, 1)
		requireState(t, manager, nonces[0], datasync.RequestStateRequested)
		require.Equal(t, 1, manager.NumOfPendingRequests())
	})
}

func requireState(
	t *testing.T, manager *datasync.RequestManager, nonce uint32,
	expected datasync.RequestState,
) {
	requireStateOfKind(t, manager, wire.KindPreliminaryGetDataRequest, nonce, expected)
}

func requireStateOfKind(
	t *testing.T, manager *datasync.RequestManager, kind wire.Kind,
	nonce uint32, expected datasync.RequestState,
) {
	t.Helper()
	state, ok := manager.RequestState(kind, nonce)
	require.True(t, ok)
	require.Equal(t, expected, state)
}
