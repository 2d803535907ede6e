package main

import (
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"
)

var (
	rpcFlag = cli.StringFlag{
		Name:  "rpcserver",
		Usage: "tdexp2pd operator interface address host:port",
		Value: "localhost:9000",
	}
)

var config = cli.Command{
	Name:   "config",
	Usage:  "Print local configuration of the tdexp2p CLI",
	Action: configAction,
	Subcommands: []*cli.Command{
		{
			Name:      "set",
			Usage:     "set a <key> <value> in the local state",
			ArgsUsage: "<key> <value>",
			Action:    configSetAction,
		},
		{
			Name:   "init",
			Usage:  "initialize the local state with flags",
			Action: configInitAction,
			Flags: []cli.Flag{
				&rpcFlag,
			},
		},
	},
}

func configAction(ctx *cli.Context) error {
	state, err := getState(ctx)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(state))
	for key := range state {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintln(ctx.App.Writer, key+": "+state[key])
	}

	return nil
}

func configInitAction(ctx *cli.Context) error {
	return setState(ctx, map[string]string{
		"rpcserver": ctx.String(rpcFlag.Name),
	})
}

func configSetAction(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return &invalidUsageError{ctx, "set"}
	}
	return setState(ctx, map[string]string{
		ctx.Args().Get(0): ctx.Args().Get(1),
	})
}
