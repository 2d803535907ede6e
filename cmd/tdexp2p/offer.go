package main

import (
	"net/http"

	"github.com/urfave/cli/v2"
)

var (
	directionFlag = cli.StringFlag{
		Name:     "direction",
		Usage:    "BUY or SELL the base asset",
		Required: true,
	}
	baseAssetFlag = cli.StringFlag{
		Name:     "base_asset",
		Usage:    "the asset being traded",
		Required: true,
	}
	quoteAssetFlag = cli.StringFlag{
		Name:     "quote_asset",
		Usage:    "the asset the base asset is paid with",
		Required: true,
	}
	amountFlag = cli.StringFlag{
		Name:     "amount",
		Usage:    "the amount of base asset",
		Required: true,
	}
	minAmountFlag = cli.StringFlag{
		Name:  "min_amount",
		Usage: "the min amount of base asset a taker can trade, defaults to amount",
	}
	priceFlag = cli.StringFlag{
		Name:     "price",
		Usage:    "the price of the base asset in quote asset",
		Required: true,
	}
	paymentMethodFlag = cli.StringFlag{
		Name:  "payment_method",
		Usage: "the fiat payment method",
	}
	offerIDFlag = cli.StringFlag{
		Name:     "id",
		Usage:    "the id of the offer",
		Required: true,
	}
)

var offers = cli.Command{
	Name:   "offers",
	Usage:  "manage the offers of this node",
	Action: listOffersAction,
	Subcommands: []*cli.Command{
		{
			Name:   "place",
			Usage:  "place a new offer",
			Action: placeOfferAction,
			Flags: []cli.Flag{
				&directionFlag, &baseAssetFlag, &quoteAssetFlag, &amountFlag,
				&minAmountFlag, &priceFlag, &paymentMethodFlag,
			},
		},
		{
			Name:   "cancel",
			Usage:  "cancel an offer not yet taken",
			Action: cancelOfferAction,
			Flags:  []cli.Flag{&offerIDFlag},
		},
	},
}

func listOffersAction(ctx *cli.Context) error {
	return call(ctx, http.MethodGet, "/v1/offers", nil)
}

func placeOfferAction(ctx *cli.Context) error {
	minAmount := ctx.String(minAmountFlag.Name)
	if minAmount == "" {
		minAmount = ctx.String(amountFlag.Name)
	}
	return call(ctx, http.MethodPost, "/v1/offers", map[string]string{
		"direction":      ctx.String(directionFlag.Name),
		"base_asset":     ctx.String(baseAssetFlag.Name),
		"quote_asset":    ctx.String(quoteAssetFlag.Name),
		"amount":         ctx.String(amountFlag.Name),
		"min_amount":     minAmount,
		"price":          ctx.String(priceFlag.Name),
		"payment_method": ctx.String(paymentMethodFlag.Name),
	})
}

func cancelOfferAction(ctx *cli.Context) error {
	return call(ctx, http.MethodDelete, "/v1/offers/"+ctx.String(offerIDFlag.Name), nil)
}
