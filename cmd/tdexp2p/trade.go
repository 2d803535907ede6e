package main

import (
	"fmt"
	"net/http"

	"github.com/urfave/cli/v2"
)

var (
	tradeIDFlag = cli.StringFlag{
		Name:     "id",
		Usage:    "the id of the trade",
		Required: true,
	}
	takeOfferIDFlag = cli.StringFlag{
		Name:     "offer_id",
		Usage:    "the id of the offer to take",
		Required: true,
	}
	takeAmountFlag = cli.StringFlag{
		Name:     "amount",
		Usage:    "the amount of base asset to trade",
		Required: true,
	}
	txidFlag = cli.StringFlag{
		Name:     "txid",
		Usage:    "the hash of the published transaction",
		Required: true,
	}
)

var trades = cli.Command{
	Name:   "trades",
	Usage:  "manage the trades of this node",
	Action: listTradesAction,
	Subcommands: []*cli.Command{
		{
			Name:   "get",
			Usage:  "get the status of a trade",
			Action: getTradeAction,
			Flags:  []cli.Flag{&tradeIDFlag},
		},
		{
			Name:   "take",
			Usage:  "take an offer of the offer book",
			Action: takeOfferAction,
			Flags:  []cli.Flag{&takeOfferIDFlag, &takeAmountFlag},
		},
		{
			Name:   "deposit",
			Usage:  "notify the publication of the deposit transaction",
			Action: txAction("deposit"),
			Flags:  []cli.Flag{&tradeIDFlag, &txidFlag},
		},
		{
			Name:   "payout",
			Usage:  "notify the publication of the payout transaction",
			Action: txAction("payout"),
			Flags:  []cli.Flag{&tradeIDFlag, &txidFlag},
		},
		{
			Name:   "fiatsent",
			Usage:  "confirm the fiat payment was sent, buyer only",
			Action: fiatAction("started"),
			Flags:  []cli.Flag{&tradeIDFlag},
		},
		{
			Name:   "fiatreceived",
			Usage:  "confirm the fiat payment was received, seller only",
			Action: fiatAction("received"),
			Flags:  []cli.Flag{&tradeIDFlag},
		},
	},
}

func listTradesAction(ctx *cli.Context) error {
	return call(ctx, http.MethodGet, "/v1/trades", nil)
}

func getTradeAction(ctx *cli.Context) error {
	return call(ctx, http.MethodGet, "/v1/trades/"+ctx.String(tradeIDFlag.Name), nil)
}

func takeOfferAction(ctx *cli.Context) error {
	return call(ctx, http.MethodPost, "/v1/trades", map[string]string{
		"offer_id": ctx.String(takeOfferIDFlag.Name),
		"amount":   ctx.String(takeAmountFlag.Name),
	})
}

func txAction(tx string) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		path := fmt.Sprintf("/v1/trades/%s/%s", ctx.String(tradeIDFlag.Name), tx)
		return call(ctx, http.MethodPost, path, map[string]string{
			"txid": ctx.String(txidFlag.Name),
		})
	}
}

func fiatAction(step string) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		path := fmt.Sprintf("/v1/trades/%s/fiat/%s", ctx.String(tradeIDFlag.Name), step)
		return call(ctx, http.MethodPost, path, nil)
	}
}
