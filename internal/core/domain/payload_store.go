package domain

import (
	"context"
	"time"
)

// PayloadStore is the abstraction for any kind of storage holding the
// shared network payloads, both protected entries and persistable payloads.
type PayloadStore interface {
	// AddProtectedEntry stores the entry only if no entry with the same key
	// exists, or if the stored one has a lower sequence number. The check and
	// the write happen atomically. It returns whether the entry was stored.
	AddProtectedEntry(ctx context.Context, entry ProtectedStorageEntry) (bool, error)
	// RemoveProtectedEntry removes the entry with the given key, if any.
	RemoveProtectedEntry(ctx context.Context, key StorageKey) error
	// GetProtectedEntries returns all the protected entries.
	GetProtectedEntries(ctx context.Context) ([]ProtectedStorageEntry, error)
	// GetProtectedEntriesByType returns the protected entries whose payload
	// has the given type.
	GetProtectedEntriesByType(
		ctx context.Context, payloadType string,
	) ([]ProtectedStorageEntry, error)
	// AddPersistablePayload stores the payload if not already present and
	// returns whether it was stored.
	AddPersistablePayload(ctx context.Context, payload PersistableNetworkPayload) (bool, error)
	// GetPersistablePayloads returns all the persistable payloads.
	GetPersistablePayloads(ctx context.Context) ([]PersistableNetworkPayload, error)
	// GetKeys returns the keys of every item in the store.
	GetKeys(ctx context.Context) ([]StorageKey, error)
	// RemoveExpiredEntries drops the protected entries expired at the given
	// time and returns how many were removed.
	RemoveExpiredEntries(ctx context.Context, now time.Time) (int, error)
	Close()
}
