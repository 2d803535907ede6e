package dbbadger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/tdex-network/tdex-p2p/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

const maxTxRetries = 10

type payloadStoreImpl struct {
	store *badgerhold.Store
}

func NewPayloadStoreImpl(store *badgerhold.Store) domain.PayloadStore {
	return &payloadStoreImpl{store}
}

// AddProtectedEntry reads the stored entry and writes the new one within the
// same read-write transaction. A concurrent write of the same key makes the
// transaction conflict and the whole check is retried.
func (s *payloadStoreImpl) AddProtectedEntry(
	_ context.Context, entry domain.ProtectedStorageEntry,
) (bool, error) {
	key := string(entry.Key())

	var stored bool
	err := s.update(func(tx *badger.Txn) error {
		stored = false

		var current domain.ProtectedStorageEntry
		err := s.store.TxGet(tx, key, &current)
		if err != nil && err != badgerhold.ErrNotFound {
			return err
		}
		if err == nil && !entry.Supersedes(current) {
			return nil
		}

		if err := s.store.TxUpsert(tx, key, entry); err != nil {
			return err
		}
		stored = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return stored, nil
}

func (s *payloadStoreImpl) RemoveProtectedEntry(
	_ context.Context, key domain.StorageKey,
) error {
	err := s.store.Delete(string(key), domain.ProtectedStorageEntry{})
	if err != nil && err != badgerhold.ErrNotFound {
		return err
	}
	return nil
}

func (s *payloadStoreImpl) GetProtectedEntries(
	_ context.Context,
) ([]domain.ProtectedStorageEntry, error) {
	var entries []domain.ProtectedStorageEntry
	if err := s.store.Find(&entries, nil); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *payloadStoreImpl) GetProtectedEntriesByType(
	_ context.Context, payloadType string,
) ([]domain.ProtectedStorageEntry, error) {
	var entries []domain.ProtectedStorageEntry
	query := badgerhold.Where("Payload.Type").Eq(payloadType)
	if err := s.store.Find(&entries, query); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *payloadStoreImpl) AddPersistablePayload(
	_ context.Context, payload domain.PersistableNetworkPayload,
) (bool, error) {
	if err := s.store.Insert(string(payload.Key()), payload); err != nil {
		if err == badgerhold.ErrKeyExists {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *payloadStoreImpl) GetPersistablePayloads(
	_ context.Context,
) ([]domain.PersistableNetworkPayload, error) {
	var payloads []domain.PersistableNetworkPayload
	if err := s.store.Find(&payloads, nil); err != nil {
		return nil, err
	}
	return payloads, nil
}

func (s *payloadStoreImpl) GetKeys(ctx context.Context) ([]domain.StorageKey, error) {
	entries, err := s.GetProtectedEntries(ctx)
	if err != nil {
		return nil, err
	}
	payloads, err := s.GetPersistablePayloads(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]domain.StorageKey, 0, len(entries)+len(payloads))
	for _, e := range entries {
		keys = append(keys, e.Key())
	}
	for _, p := range payloads {
		keys = append(keys, p.Key())
	}
	return keys, nil
}

func (s *payloadStoreImpl) RemoveExpiredEntries(
	_ context.Context, now time.Time,
) (int, error) {
	var count int
	err := s.update(func(tx *badger.Txn) error {
		count = 0

		var entries []domain.ProtectedStorageEntry
		if err := s.store.TxFind(tx, &entries, nil); err != nil {
			return err
		}
		for _, e := range entries {
			if !e.IsExpired(now) {
				continue
			}
			err := s.store.TxDelete(tx, string(e.Key()), domain.ProtectedStorageEntry{})
			if err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Close is a no-op, the store is closed by the repo manager.
func (s *payloadStoreImpl) Close() {}

func (s *payloadStoreImpl) update(fn func(tx *badger.Txn) error) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.store.Badger().Update(fn)
		if err != badger.ErrConflict {
			return err
		}
	}
	return ErrTooManyConflicts
}
