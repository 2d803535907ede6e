package main

import (
	"net/http"

	"github.com/urfave/cli/v2"
)

var info = cli.Command{
	Name:   "info",
	Usage:  "get info about the daemon",
	Action: infoAction,
}

var book = cli.Command{
	Name:   "book",
	Usage:  "list the offers of the network offer book",
	Action: bookAction,
}

func infoAction(ctx *cli.Context) error {
	return call(ctx, http.MethodGet, "/v1/info", nil)
}

func bookAction(ctx *cli.Context) error {
	return call(ctx, http.MethodGet, "/v1/book", nil)
}
