package db_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/tdex-p2p/internal/core/domain"
)

func TestTradeRepositoryImplementations(t *testing.T) {
	repoManagers := createRepoManagers(t)

	for i := range repoManagers {
		repo := repoManagers[i]

		t.Run(repo.Name, func(t *testing.T) {
			t.Parallel()

			t.Run("testAddAndGetTrade", func(t *testing.T) {
				t.Parallel()
				testAddAndGetTrade(t, repo.TradeRepository())
			})

			t.Run("testGetActiveTrades", func(t *testing.T) {
				t.Parallel()
				testGetActiveTrades(t, repo.TradeRepository())
			})

			t.Run("testUpdateTrade", func(t *testing.T) {
				t.Parallel()
				testUpdateTrade(t, repo.TradeRepository())
			})
		})
	}
}

func testAddAndGetTrade(t *testing.T, repo domain.TradeRepository) {
	ctx := context.Background()
	trade := makeRandomTrade(domain.RoleBuyerAsTaker)
	require.NoError(t, trade.SetTradeAmount(decimal.NewFromInt(5)))
	require.NoError(t, trade.SetProcessState(domain.BuyerNegotiating))

	err := repo.AddTrade(ctx, *trade)
	require.NoError(t, err)

	err = repo.AddTrade(ctx, *trade)
	require.ErrorIs(t, err, domain.ErrTradeAlreadyExists)

	got, err := repo.GetTrade(ctx, trade.ID)
	require.NoError(t, err)
	require.Equal(t, trade.ID, got.ID)
	require.Equal(t, trade.Role, got.Role)
	require.Equal(t, domain.BuyerNegotiating, got.ProcessState)
	require.Equal(t, domain.BuyerUndefined, got.PreviousProcessState)
	require.True(t, got.TradeAmount.Valid)
	require.True(t, trade.TradeAmount.Decimal.Equal(got.TradeAmount.Decimal))
	require.True(t, trade.Offer.Price.Equal(got.Offer.Price))

	byOffer, err := repo.GetTradesByOffer(ctx, trade.Offer.ID)
	require.NoError(t, err)
	require.Len(t, byOffer, 1)

	_, err = repo.GetTrade(ctx, "unknown")
	require.ErrorIs(t, err, domain.ErrTradeNotFound)
}

func testGetActiveTrades(t *testing.T, repo domain.TradeRepository) {
	ctx := context.Background()

	active := makeRandomTrade(domain.RoleSellerAsOfferer)
	failed := makeRandomTrade(domain.RoleSellerAsTaker)
	require.NoError(t, failed.Timeout())
	completed := makeRandomTrade(domain.RoleBuyerAsOfferer)
	require.NoError(t, completed.SetProcessState(domain.BuyerPayoutPublished))

	for _, tr := range []*domain.Trade{active, failed, completed} {
		require.NoError(t, repo.AddTrade(ctx, *tr))
	}

	trades, err := repo.GetActiveTrades(ctx)
	require.NoError(t, err)

	ids := make(map[string]bool)
	for _, tr := range trades {
		require.False(t, tr.LifeCycleState.IsTerminal())
		ids[tr.ID] = true
	}
	require.True(t, ids[active.ID])
	require.False(t, ids[failed.ID])
	require.False(t, ids[completed.ID])

	all, err := repo.GetAllTrades(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(all), 3)
}

func testUpdateTrade(t *testing.T, repo domain.TradeRepository) {
	ctx := context.Background()
	trade := makeRandomTrade(domain.RoleSellerAsOfferer)
	require.NoError(t, repo.AddTrade(ctx, *trade))

	require.NoError(t, trade.SetProcessState(domain.SellerDepositPublished))
	trade.SetDepositTxID("deposit")

	err := repo.UpdateTrade(ctx, trade.ID, func(_ *domain.Trade) (*domain.Trade, error) {
		return trade, nil
	})
	require.NoError(t, err)

	got, err := repo.GetTrade(ctx, trade.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SellerDepositPublished, got.ProcessState)
	require.Equal(t, domain.LifeCyclePending, got.LifeCycleState)
	require.Equal(t, "deposit", got.DepositTxID)
	require.Equal(t, trade.TakeOfferDate, got.TakeOfferDate)

	err = repo.UpdateTrade(ctx, trade.ID, func(_ *domain.Trade) (*domain.Trade, error) {
		return nil, fmt.Errorf("something went wrong")
	})
	require.Error(t, err)

	got, err = repo.GetTrade(ctx, trade.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SellerDepositPublished, got.ProcessState)

	err = repo.UpdateTrade(ctx, "unknown", func(t *domain.Trade) (*domain.Trade, error) {
		return t, nil
	})
	require.ErrorIs(t, err, domain.ErrTradeNotFound)
}
