package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"
)

var httpServerFlag = cli.StringFlag{
	Name:  httpServerKey,
	Usage: "fiatlnd daemon http address",
	Value: defaultServerURL,
}

var config = cli.Command{
	Name:   "config",
	Usage:  "Print local configuration of the fiatln CLI",
	Action: configAction,
	Subcommands: []*cli.Command{
		{
			Name:   "set",
			Usage:  "set a <key> <value> in the local state",
			Action: configSetAction,
		},
		{
			Name:   "init",
			Usage:  "initialize the local state with flags",
			Action: configInitAction,
			Flags: []cli.Flag{
				&httpServerFlag,
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
		fmt.Println(key + ": " + state[key])
	}

	return nil
}

func configInitAction(ctx *cli.Context) error {
	return setState(ctx, map[string]string{
		httpServerKey: ctx.String(httpServerKey),
	})
}

func configSetAction(ctx *cli.Context) error {
	if ctx.NArg() < 2 {
		return errors.New("key and value are missing")
	}

	key := ctx.Args().Get(0)
	value := ctx.Args().Get(1)

	if err := setState(ctx, map[string]string{key: value}); err != nil {
		return err
	}

	fmt.Printf("%s %s has been set\n", key, value)
	return nil
}
