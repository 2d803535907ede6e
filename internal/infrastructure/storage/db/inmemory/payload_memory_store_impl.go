package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/tdex-network/tdex-p2p/internal/core/domain"
)

type payloadStoreImpl struct {
	locker   *sync.RWMutex
	entries  map[domain.StorageKey]domain.ProtectedStorageEntry
	payloads map[domain.StorageKey]domain.PersistableNetworkPayload
}

// NewPayloadStoreImpl returns a new inmemory PayloadStore implementation.
func NewPayloadStoreImpl() domain.PayloadStore {
	return &payloadStoreImpl{
		locker:   &sync.RWMutex{},
		entries:  make(map[domain.StorageKey]domain.ProtectedStorageEntry),
		payloads: make(map[domain.StorageKey]domain.PersistableNetworkPayload),
	}
}

func (s *payloadStoreImpl) AddProtectedEntry(
	_ context.Context, entry domain.ProtectedStorageEntry,
) (bool, error) {
	s.locker.Lock()
	defer s.locker.Unlock()

	key := entry.Key()
	if current, ok := s.entries[key]; ok && !entry.Supersedes(current) {
		return false, nil
	}
	s.entries[key] = entry
	return true, nil
}

func (s *payloadStoreImpl) RemoveProtectedEntry(
	_ context.Context, key domain.StorageKey,
) error {
	s.locker.Lock()
	defer s.locker.Unlock()

	delete(s.entries, key)
	return nil
}

func (s *payloadStoreImpl) GetProtectedEntries(
	_ context.Context,
) ([]domain.ProtectedStorageEntry, error) {
	return s.protectedEntries(func(domain.ProtectedStorageEntry) bool {
		return true
	}), nil
}

func (s *payloadStoreImpl) GetProtectedEntriesByType(
	_ context.Context, payloadType string,
) ([]domain.ProtectedStorageEntry, error) {
	return s.protectedEntries(func(e domain.ProtectedStorageEntry) bool {
		return e.Payload.Type == payloadType
	}), nil
}

func (s *payloadStoreImpl) AddPersistablePayload(
	_ context.Context, payload domain.PersistableNetworkPayload,
) (bool, error) {
	s.locker.Lock()
	defer s.locker.Unlock()

	key := payload.Key()
	if _, ok := s.payloads[key]; ok {
		return false, nil
	}
	s.payloads[key] = payload
	return true, nil
}

func (s *payloadStoreImpl) GetPersistablePayloads(
	_ context.Context,
) ([]domain.PersistableNetworkPayload, error) {
	s.locker.RLock()
	defer s.locker.RUnlock()

	payloads := make([]domain.PersistableNetworkPayload, 0, len(s.payloads))
	for _, p := range s.payloads {
		payloads = append(payloads, p)
	}
	return payloads, nil
}

func (s *payloadStoreImpl) GetKeys(_ context.Context) ([]domain.StorageKey, error) {
	s.locker.RLock()
	defer s.locker.RUnlock()

	keys := make([]domain.StorageKey, 0, len(s.entries)+len(s.payloads))
	for k := range s.entries {
		keys = append(keys, k)
	}
	for k := range s.payloads {
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *payloadStoreImpl) RemoveExpiredEntries(
	_ context.Context, now time.Time,
) (int, error) {
	s.locker.Lock()
	defer s.locker.Unlock()

	count := 0
	for k, e := range s.entries {
		if e.IsExpired(now) {
			delete(s.entries, k)
			count++
		}
	}
	return count, nil
}

func (s *payloadStoreImpl) Close() {}

func (s *payloadStoreImpl) protectedEntries(
	keep func(domain.ProtectedStorageEntry) bool,
) []domain.ProtectedStorageEntry {
	s.locker.RLock()
	defer s.locker.RUnlock()

	entries := make([]domain.ProtectedStorageEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if keep(e) {
			entries = append(entries, e)
		}
	}
	return entries
}
