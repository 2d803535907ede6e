package ports

import "github.com/tdex-network/tdex-p2p/internal/core/domain"

// RepoManager interface defines the methods to access the repositories and
// the shared payload store.
type RepoManager interface {
	TradeRepository() domain.TradeRepository
	OpenOfferRepository() domain.OpenOfferRepository
	PayloadStore() domain.PayloadStore

	Close()
}
