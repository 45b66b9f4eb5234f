package main

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/urfave/cli/v2"
)

var addwebhook = cli.Command{
	Name:  "addwebhook",
	Usage: "add a webhook registered for some event",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "endpoint",
			Usage:    "the endpoint where to notify the webhook",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "secret",
			Usage: "the eventual secret to authenticate requests",
			Value: "",
		},
		&cli.StringFlag{
			Name:  "event",
			Usage: "the event for which the webhook gets notified, * for all",
			Value: "*",
		},
	},
	Action: addWebhookAction,
}

var removewebhook = cli.Command{
	Name:      "removewebhook",
	Usage:     "remove the webhook with the given id",
	ArgsUsage: "<webhook_id>",
	Action:    removeWebhookAction,
}

var listwebhooks = cli.Command{
	Name:  "listwebhooks",
	Usage: "list all webhook registered for some event",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "event",
			Usage: "the event to filter hooks by",
		},
	},
	Action: listWebhooksAction,
}

func addWebhookAction(ctx *cli.Context) error {
	reply, err := doRequest(ctx, http.MethodPost, "/v1/webhooks", map[string]string{
		"event":    ctx.String("event"),
		"endpoint": ctx.String("endpoint"),
		"secret":   ctx.String("secret"),
	})
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("hook id:", reply["id"])
	return nil
}

func removeWebhookAction(ctx *cli.Context) error {
	if ctx.NArg() < 1 {
		return &invalidUsageError{ctx, ctx.Command.Name}
	}
	id := ctx.Args().First()

	if _, err := doRequest(
		ctx, http.MethodDelete, "/v1/webhooks/"+url.PathEscape(id), nil,
	); err != nil {
		return err
	}

	fmt.Printf("webhook %s removed\n", id)
	return nil
}

func listWebhooksAction(ctx *cli.Context) error {
	path := "/v1/webhooks"
	if event := ctx.String("event"); len(event) > 0 {
		path += "?event=" + url.QueryEscape(event)
	}

	reply, err := doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	printRespJSON(reply)
	return nil
}
