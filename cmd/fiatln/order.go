package main

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

var orderFlags = []cli.Flag{
	&cli.StringFlag{
		Name:     "rate",
		Usage:    "the limit rate, in fiat per crypto unless --inverted is set",
		Required: true,
	},
	&cli.BoolFlag{
		Name:  "inverted",
		Usage: "express the limit rate in crypto per fiat",
	},
	&cli.StringFlag{
		Name:     "amount",
		Usage:    "the amount of the given asset, fiat for buy orders, crypto for sell ones",
		Required: true,
	},
	&cli.StringFlag{
		Name:  "per-tx-max",
		Usage: "the max amount traded in a single transaction, unlimited if not set",
	},
}

var buy = cli.Command{
	Name:   "buy",
	Usage:  "place an order giving fiat in exchange for crypto",
	Flags:  orderFlags,
	Action: buyAction,
}

var sell = cli.Command{
	Name:   "sell",
	Usage:  "place an order giving crypto in exchange for fiat",
	Flags:  orderFlags,
	Action: sellAction,
}

var listorders = cli.Command{
	Name:   "listorders",
	Usage:  "list all orders with their transactions",
	Action: listOrdersAction,
}

var cancelorder = cli.Command{
	Name:      "cancel",
	Usage:     "cancel the order with the given id",
	ArgsUsage: "<order_id>",
	Action:    cancelOrderAction,
}

func buyAction(ctx *cli.Context) error {
	return placeOrder(ctx, "/v1/orders/buy")
}

func sellAction(ctx *cli.Context) error {
	return placeOrder(ctx, "/v1/orders/sell")
}

func placeOrder(ctx *cli.Context, path string) error {
	body := map[string]interface{}{
		"limit_rate_inverted": ctx.Bool("inverted"),
	}
	for flag, field := range map[string]string{
		"rate":       "limit_rate",
		"amount":     "amount",
		"per-tx-max": "per_tx_max_amount",
	} {
		value := ctx.String(flag)
		if len(value) <= 0 {
			continue
		}
		if _, err := decimal.NewFromString(value); err != nil {
			return fmt.Errorf("invalid %s: %s", flag, value)
		}
		body[field] = value
	}

	reply, err := doRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("order id:", reply["order_id"])
	return nil
}

func listOrdersAction(ctx *cli.Context) error {
	reply, err := doRequest(ctx, http.MethodGet, "/v1/orders", nil)
	if err != nil {
		return err
	}

	printRespJSON(reply)
	return nil
}

func cancelOrderAction(ctx *cli.Context) error {
	if ctx.NArg() < 1 {
		return &invalidUsageError{ctx, ctx.Command.Name}
	}
	orderID, err := strconv.ParseInt(ctx.Args().First(), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid order id %s", ctx.Args().First())
	}

	if _, err := doRequest(
		ctx, http.MethodDelete, fmt.Sprintf("/v1/orders/%d", orderID), nil,
	); err != nil {
		return err
	}

	fmt.Printf("order %d is being canceled\n", orderID)
	return nil
}
