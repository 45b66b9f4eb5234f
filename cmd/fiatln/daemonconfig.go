package main

import (
	"errors"
	"net/http"

	"github.com/urfave/cli/v2"
)

var daemonconfig = cli.Command{
	Name:   "daemonconfig",
	Usage:  "Print the runtime configuration of the daemon",
	Action: daemonConfigAction,
	Subcommands: []*cli.Command{
		{
			Name:      "set",
			Usage:     "set one or more <key> <value> pairs, eg. the exchange url and credentials",
			ArgsUsage: "<key> <value> [<key> <value>...]",
			Action:    daemonConfigSetAction,
		},
	},
}

func daemonConfigAction(ctx *cli.Context) error {
	reply, err := doRequest(ctx, http.MethodGet, "/v1/config", nil)
	if err != nil {
		return err
	}

	printRespJSON(reply)
	return nil
}

func daemonConfigSetAction(ctx *cli.Context) error {
	if ctx.NArg() < 2 || ctx.NArg()%2 != 0 {
		return errors.New("key and value are missing")
	}

	args := ctx.Args().Slice()
	values := make(map[string]string, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		values[args[i]] = args[i+1]
	}

	reply, err := doRequest(ctx, http.MethodPut, "/v1/config", map[string]interface{}{
		"values": values,
	})
	if err != nil {
		return err
	}

	printRespJSON(reply)
	return nil
}
