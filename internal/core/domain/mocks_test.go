package domain_test

import (
	"github.com/stretchr/testify/mock"
	"github.com/tdex-network/tdex-p2p/internal/core/domain"
)

/*
 * OfferCloser
 */
type mockOfferCloser struct {
	mock.Mock
}

func (m *mockOfferCloser) CloseOpenOffer(offer domain.Offer) error {
	args := m.Called(offer)
	return args.Error(0)
}

/*
 * FailedTradeRemover
 */
type mockTradeRemover struct {
	mock.Mock
}

func (m *mockTradeRemover) RemoveFailedTrade(trade *domain.Trade) error {
	args := m.Called(trade)
	return args.Error(0)
}

/*
 * Disposable
 */
type mockProtocol struct {
	mock.Mock
}

func (m *mockProtocol) Dispose() {
	m.Called()
}
