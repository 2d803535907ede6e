package dbbadger

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-p2p/internal/core/domain"
	"github.com/tdex-network/tdex-p2p/internal/core/ports"
	"github.com/timshannon/badgerhold/v4"
)

const (
	mainDir    = "main"
	payloadDir = "payloads"
)

type repoManager struct {
	store        *badgerhold.Store
	payloadDb    *badgerhold.Store
	tradeRepo    domain.TradeRepository
	offerRepo    domain.OpenOfferRepository
	payloadStore domain.PayloadStore
}

// NewRepoManager opens (or creates if not exists) the badger stores on disk.
// Trades and open offers share the main store, the network payloads have a
// dedicated one. If baseDbDir is empty the stores are kept in memory.
func NewRepoManager(baseDbDir string, logger badger.Logger) (ports.RepoManager, error) {
	var mainDbDir, payloadDbDir string
	if len(baseDbDir) > 0 {
		mainDbDir = filepath.Join(baseDbDir, mainDir)
		payloadDbDir = filepath.Join(baseDbDir, payloadDir)
	}

	store, err := createDb(mainDbDir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening main db: %w", err)
	}
	payloadDb, err := createDb(payloadDbDir, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("opening payload db: %w", err)
	}

	return &repoManager{
		store:        store,
		payloadDb:    payloadDb,
		tradeRepo:    NewTradeRepositoryImpl(store),
		offerRepo:    NewOpenOfferRepositoryImpl(store),
		payloadStore: NewPayloadStoreImpl(payloadDb),
	}, nil
}

func (d *repoManager) TradeRepository() domain.TradeRepository {
	return d.tradeRepo
}

func (d *repoManager) OpenOfferRepository() domain.OpenOfferRepository {
	return d.offerRepo
}

func (d *repoManager) PayloadStore() domain.PayloadStore {
	return d.payloadStore
}

func (d *repoManager) Close() {
	d.store.Close()
	d.payloadDb.Close()
}

func createDb(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, err
	}

	if !isInMemory {
		ticker := time.NewTicker(30 * time.Minute)

		go func() {
			for {
				<-ticker.C
				if err := db.Badger().RunValueLogGC(0.5); err != nil &&
					err != badger.ErrNoRewrite {
					log.Error(err)
				}
			}
		}()
	}

	return db, nil
}
