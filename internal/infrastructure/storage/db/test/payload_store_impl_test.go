package db_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/tdex-p2p/internal/core/domain"
	"github.com/thanhpk/randstr"
)

func TestPayloadStoreImplementations(t *testing.T) {
	repoManagers := createRepoManagers(t)

	for i := range repoManagers {
		repo := repoManagers[i]

		t.Run(repo.Name, func(t *testing.T) {
			t.Run("testSupersede", func(t *testing.T) {
				testSupersede(t, repo.PayloadStore())
			})

			t.Run("testConcurrentSupersede", func(t *testing.T) {
				testConcurrentSupersede(t, repo.PayloadStore())
			})

			t.Run("testPersistablePayloadDedup", func(t *testing.T) {
				testPersistablePayloadDedup(t, repo.PayloadStore())
			})

			t.Run("testRemoveEntries", func(t *testing.T) {
				testRemoveEntries(t, repo.PayloadStore())
			})
		})
	}
}

func testSupersede(t *testing.T, store domain.PayloadStore) {
	ctx := context.Background()
	orders := []struct {
		name string
		seqs []uint32
	}{
		{"ascending", []uint32{1, 2}},
		{"descending", []uint32{2, 1}},
		{"duplicated", []uint32{2, 2, 1}},
	}

	for _, order := range orders {
		key := newKey(t)
		data := []byte(randstr.String(20))

		for _, seq := range order.seqs {
			_, err := store.AddProtectedEntry(ctx, makeSignedEntry(t, key, data, seq))
			require.NoError(t, err, order.name)
		}

		entries, err := store.GetProtectedEntries(ctx)
		require.NoError(t, err)

		matching := make([]domain.ProtectedStorageEntry, 0)
		expectedKey := makeSignedEntry(t, key, data, 1).Key()
		for _, e := range entries {
			if e.Key() == expectedKey {
				matching = append(matching, e)
			}
		}
		require.Len(t, matching, 1, order.name)
		require.Equal(t, uint32(2), matching[0].SequenceNumber, order.name)
	}
}

func testConcurrentSupersede(t *testing.T, store domain.PayloadStore) {
	ctx := context.Background()
	key := newKey(t)
	data := []byte(randstr.String(20))

	wg := &sync.WaitGroup{}
	for seq := uint32(1); seq <= 20; seq++ {
		wg.Add(1)
		go func(seq uint32) {
			defer wg.Done()
			_, err := store.AddProtectedEntry(ctx, makeSignedEntry(t, key, data, seq))
			require.NoError(t, err)
		}(seq)
	}
	wg.Wait()

	entries, err := store.GetProtectedEntriesByType(ctx, domain.PayloadTypeOffer)
	require.NoError(t, err)

	expectedKey := makeSignedEntry(t, key, data, 1).Key()
	found := false
	for _, e := range entries {
		if e.Key() == expectedKey {
			require.False(t, found)
			require.Equal(t, uint32(20), e.SequenceNumber)
			found = true
		}
	}
	require.True(t, found)
}

func testPersistablePayloadDedup(t *testing.T, store domain.PayloadStore) {
	ctx := context.Background()
	payload := domain.PersistableNetworkPayload{
		Type:         "witness",
		Data:         []byte(randstr.String(32)),
		CreationTime: time.Now().UnixMilli(),
	}

	stored, err := store.AddPersistablePayload(ctx, payload)
	require.NoError(t, err)
	require.True(t, stored)

	stored, err = store.AddPersistablePayload(ctx, payload)
	require.NoError(t, err)
	require.False(t, stored)

	payloads, err := store.GetPersistablePayloads(ctx)
	require.NoError(t, err)
	count := 0
	for _, p := range payloads {
		if p.Key() == payload.Key() {
			count++
		}
	}
	require.Equal(t, 1, count)

	keys, err := store.GetKeys(ctx)
	require.NoError(t, err)
	require.Contains(t, keys, payload.Key())
}

func testRemoveEntries(t *testing.T, store domain.PayloadStore) {
	ctx := context.Background()
	key := newKey(t)

	expired := domain.ProtectedStorageEntry{
		Payload: domain.StoragePayload{
			Type: "expiring",
			Data: []byte(randstr.String(20)),
		},
		SequenceNumber: 1,
		TTL:            time.Minute,
		CreationTime:   time.Now().Add(-time.Hour).UnixMilli(),
	}
	expired.Sign(key)
	live := makeSignedEntry(t, key, []byte(randstr.String(20)), 1)
	removable := makeSignedEntry(t, key, []byte(randstr.String(20)), 1)

	for _, e := range []domain.ProtectedStorageEntry{expired, live, removable} {
		stored, err := store.AddProtectedEntry(ctx, e)
		require.NoError(t, err)
		require.True(t, stored)
	}

	count, err := store.RemoveExpiredEntries(ctx, time.Now())
	require.NoError(t, err)
	require.GreaterOrEqual(t, count, 1)

	require.NoError(t, store.RemoveProtectedEntry(ctx, removable.Key()))
	require.NoError(t, store.RemoveProtectedEntry(ctx, removable.Key()))

	keys, err := store.GetKeys(ctx)
	require.NoError(t, err)
	require.NotContains(t, keys, expired.Key())
	require.NotContains(t, keys, removable.Key())
	require.Contains(t, keys, live.Key())
}
