package httpinterface_test

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/tdex-network/tdex-p2p/internal/core/application/offer"
	"github.com/tdex-network/tdex-p2p/internal/core/domain"
)

type mockTradeService struct {
	mock.Mock
}

func (m *mockTradeService) TakeOffer(
	ctx context.Context, o domain.Offer, amount decimal.Decimal,
) (*domain.Trade, error) {
	args := m.Called(ctx, o, amount)
	var res *domain.Trade
	if a := args.Get(0); a != nil {
		res = a.(*domain.Trade)
	}
	return res, args.Error(1)
}

func (m *mockTradeService) GetTrade(
	ctx context.Context, tradeID string,
) (*domain.Trade, error) {
	args := m.Called(ctx, tradeID)
	var res *domain.Trade
	if a := args.Get(0); a != nil {
		res = a.(*domain.Trade)
	}
	return res, args.Error(1)
}

func (m *mockTradeService) ListTrades(ctx context.Context) ([]domain.Trade, error) {
	args := m.Called(ctx)
	var res []domain.Trade
	if a := args.Get(0); a != nil {
		res = a.([]domain.Trade)
	}
	return res, args.Error(1)
}

func (m *mockTradeService) NumOfActiveTrades() int {
	args := m.Called()
	return args.Int(0)
}

func (m *mockTradeService) OnDepositPublished(
	ctx context.Context, tradeID, txid string,
) error {
	args := m.Called(ctx, tradeID, txid)
	return args.Error(0)
}

func (m *mockTradeService) OnPayoutPublished(
	ctx context.Context, tradeID, txid string,
) error {
	args := m.Called(ctx, tradeID, txid)
	return args.Error(0)
}

func (m *mockTradeService) FiatPaymentStarted(ctx context.Context, tradeID string) error {
	args := m.Called(ctx, tradeID)
	return args.Error(0)
}

func (m *mockTradeService) FiatPaymentReceived(ctx context.Context, tradeID string) error {
	args := m.Called(ctx, tradeID)
	return args.Error(0)
}

type mockOfferService struct {
	mock.Mock
}

func (m *mockOfferService) PlaceOffer(
	ctx context.Context, a offer.PlaceOfferArgs,
) (*domain.OpenOffer, error) {
	args := m.Called(ctx, a)
	var res *domain.OpenOffer
	if a := args.Get(0); a != nil {
		res = a.(*domain.OpenOffer)
	}
	return res, args.Error(1)
}

func (m *mockOfferService) ListOpenOffers(
	ctx context.Context,
) ([]domain.OpenOffer, error) {
	args := m.Called(ctx)
	var res []domain.OpenOffer
	if a := args.Get(0); a != nil {
		res = a.([]domain.OpenOffer)
	}
	return res, args.Error(1)
}

func (m *mockOfferService) CancelOffer(ctx context.Context, offerID string) error {
	args := m.Called(ctx, offerID)
	return args.Error(0)
}

func (m *mockOfferService) GetOfferBook(ctx context.Context) ([]domain.Offer, error) {
	args := m.Called(ctx)
	var res []domain.Offer
	if a := args.Get(0); a != nil {
		res = a.([]domain.Offer)
	}
	return res, args.Error(1)
}

func (m *mockOfferService) GetOfferFromBook(
	ctx context.Context, offerID string,
) (*domain.Offer, error) {
	args := m.Called(ctx, offerID)
	var res *domain.Offer
	if a := args.Get(0); a != nil {
		res = a.(*domain.Offer)
	}
	return res, args.Error(1)
}

type syncStatus int

func (s syncStatus) NumOfPendingRequests() int {
	return int(s)
}
