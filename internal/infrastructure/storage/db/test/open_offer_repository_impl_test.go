package db_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/tdex-p2p/internal/core/domain"
)

func TestOpenOfferRepositoryImplementations(t *testing.T) {
	repoManagers := createRepoManagers(t)

	for i := range repoManagers {
		repo := repoManagers[i]

		t.Run(repo.Name, func(t *testing.T) {
			t.Parallel()
			testOpenOfferRepository(t, repo.OpenOfferRepository())
		})
	}
}

func testOpenOfferRepository(t *testing.T, repo domain.OpenOfferRepository) {
	ctx := context.Background()
	offer := domain.NewOpenOffer(makeRandomOffer())

	require.NoError(t, repo.AddOpenOffer(ctx, *offer))
	err := repo.AddOpenOffer(ctx, *offer)
	require.ErrorIs(t, err, domain.ErrOpenOfferAlreadyExists)

	err = repo.UpdateOpenOffer(
		ctx, offer.Offer.ID,
		func(o *domain.OpenOffer) (*domain.OpenOffer, error) {
			if err := o.Reserve("trade"); err != nil {
				return nil, err
			}
			return o, nil
		},
	)
	require.NoError(t, err)

	got, err := repo.GetOpenOffer(ctx, offer.Offer.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OpenOfferStatusReserved, got.Status)
	require.Equal(t, "trade", got.TradeID)
	require.True(t, offer.Offer.Amount.Equal(got.Offer.Amount))

	offers, err := repo.GetAllOpenOffers(ctx)
	require.NoError(t, err)
	require.Len(t, offers, 1)

	_, err = repo.GetOpenOffer(ctx, "unknown")
	require.ErrorIs(t, err, domain.ErrOpenOfferNotFound)
}
