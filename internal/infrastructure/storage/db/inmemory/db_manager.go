package inmemory

import (
	"github.com/tdex-network/tdex-p2p/internal/core/domain"
	"github.com/tdex-network/tdex-p2p/internal/core/ports"
)

type RepoManager struct {
	tradeRepository     domain.TradeRepository
	openOfferRepository domain.OpenOfferRepository
	payloadStore        domain.PayloadStore
}

func NewRepoManager() ports.RepoManager {
	return &RepoManager{
		tradeRepository:     NewTradeRepositoryImpl(),
		openOfferRepository: NewOpenOfferRepositoryImpl(),
		payloadStore:        NewPayloadStoreImpl(),
	}
}

func (d *RepoManager) TradeRepository() domain.TradeRepository {
	return d.tradeRepository
}

func (d *RepoManager) OpenOfferRepository() domain.OpenOfferRepository {
	return d.openOfferRepository
}

func (d *RepoManager) PayloadStore() domain.PayloadStore {
	return d.payloadStore
}

func (d *RepoManager) Close() {}
