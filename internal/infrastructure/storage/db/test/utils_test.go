package db_test

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/tdex-p2p/internal/core/domain"
	"github.com/tdex-network/tdex-p2p/internal/core/ports"
	dbbadger "github.com/tdex-network/tdex-p2p/internal/infrastructure/storage/db/badger"
	"github.com/tdex-network/tdex-p2p/internal/infrastructure/storage/db/inmemory"
	"github.com/thanhpk/randstr"
)

type repoManager struct {
	Name string
	ports.RepoManager
}

func createRepoManagers(t *testing.T) []repoManager {
	badgerRepoManager, err := dbbadger.NewRepoManager("", nil)
	require.NoError(t, err)
	t.Cleanup(badgerRepoManager.Close)

	return []repoManager{
		{Name: "inmemory", RepoManager: inmemory.NewRepoManager()},
		{Name: "badger", RepoManager: badgerRepoManager},
	}
}

func makeRandomOffer() domain.Offer {
	offer, _ := domain.NewOffer(
		"/dns4/"+randstr.Hex(8)+".onion/tcp/9999", domain.OfferDirectionSell,
		randstr.Hex(32), randstr.Hex(32),
		decimal.NewFromInt(10), decimal.NewFromInt(1), decimal.NewFromFloat(0.5),
		"SEPA",
	)
	return *offer
}

func makeRandomTrade(role domain.Role) *domain.Trade {
	trade, _ := domain.NewTrade(
		role, makeRandomOffer(), "/ip4/10.0.0.1/tcp/"+randstr.Dec(4),
	)
	return trade
}

func makeSignedEntry(
	t *testing.T, key ed25519.PrivateKey, data []byte, seq uint32,
) domain.ProtectedStorageEntry {
	entry := domain.ProtectedStorageEntry{
		Kind: domain.EntryKindPlain,
		Payload: domain.StoragePayload{
			Type: domain.PayloadTypeOffer,
			Data: data,
		},
		SequenceNumber: seq,
		TTL:            time.Hour,
		CreationTime:   time.Now().UnixMilli(),
	}
	entry.Sign(key)
	require.True(t, entry.VerifySignature())
	return entry
}

func newKey(t *testing.T) ed25519.PrivateKey {
	_, key, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return key
}
