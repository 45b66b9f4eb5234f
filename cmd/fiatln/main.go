package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/go-resty/resty/v2"
	"github.com/urfave/cli/v2"
)

const (
	stateFile        = "state.json"
	httpServerKey    = "httpserver"
	defaultServerURL = "http://localhost:9000"
)

var defaultDatadir = btcutil.AppDataDir("fiatln-cli", false)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fatal(err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()

	app.Version = "0.0.1"
	app.Name = "fiatln CLI"
	app.Usage = "Command line interface for fiatlnd daemon operators"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "datadir",
			Usage:   "the directory where the CLI state is stored",
			EnvVars: []string{"FIATLN_CLI_DATADIR"},
			Value:   defaultDatadir,
		},
	}
	app.Commands = append(
		app.Commands,
		&config,
		&buy,
		&sell,
		&listorders,
		&cancelorder,
		&daemonconfig,
		&addwebhook,
		&removewebhook,
		&listwebhooks,
	)
	return app
}

func statePath(ctx *cli.Context) string {
	return filepath.Join(ctx.String("datadir"), stateFile)
}

func getState(ctx *cli.Context) (map[string]string, error) {
	data := map[string]string{}

	file, err := os.ReadFile(statePath(ctx))
	if err != nil {
		return nil, errors.New("get config state error: try 'config init'")
	}
	if err := json.Unmarshal(file, &data); err != nil {
		return nil, fmt.Errorf("invalid config state: %w", err)
	}

	return data, nil
}

func setState(ctx *cli.Context, data map[string]string) error {
	datadir := ctx.String("datadir")
	if _, err := os.Stat(datadir); os.IsNotExist(err) {
		if err := os.MkdirAll(datadir, os.ModeDir|0755); err != nil {
			return err
		}
	}

	currentData, err := getState(ctx)
	if err != nil {
		currentData = map[string]string{}
	}

	jsonString, err := json.Marshal(merge(currentData, data))
	if err != nil {
		return err
	}
	if err := os.WriteFile(statePath(ctx), jsonString, 0644); err != nil {
		return fmt.Errorf("writing to file: %w", err)
	}

	return nil
}

func merge(maps ...map[string]string) map[string]string {
	merge := make(map[string]string, 0)
	for _, m := range maps {
		for k, v := range m {
			merge[k] = v
		}
	}
	return merge
}

func printRespJSON(resp interface{}) {
	jsonStr, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		fmt.Println("unable to decode response: ", err)
		return
	}

	fmt.Println(string(jsonStr))
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func getClient(ctx *cli.Context) (*resty.Client, error) {
	state, err := getState(ctx)
	if err != nil {
		return nil, err
	}
	address, ok := state[httpServerKey]
	if !ok {
		return nil, errors.New("set httpserver with `config set httpserver`")
	}

	return resty.New().
		SetBaseURL(address).
		SetHeader("Content-Type", "application/json"), nil
}

// doRequest sends a request to the daemon and returns the decoded JSON
// response.
func doRequest(
	ctx *cli.Context, method, path string, body interface{},
) (map[string]interface{}, error) {
	client, err := getClient(ctx)
	if err != nil {
		return nil, err
	}

	var result map[string]interface{}
	req := client.R().SetResult(&result).SetError(&apiError{})
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to daemon: %w", err)
	}
	if resp.IsError() {
		if e, ok := resp.Error().(*apiError); ok && len(e.Error) > 0 {
			return nil, fmt.Errorf("%s", e.Error)
		}
		return nil, fmt.Errorf("request failed with status %s", resp.Status())
	}

	return result, nil
}

type invalidUsageError struct {
	ctx     *cli.Context
	command string
}

func (e *invalidUsageError) Error() string {
	return fmt.Sprintf("invalid usage of command %s", e.command)
}

func fatal(err error) {
	var e *invalidUsageError
	if errors.As(err, &e) {
		_ = cli.ShowCommandHelp(e.ctx, e.command)
	} else {
		_, _ = fmt.Fprintf(os.Stderr, "[fiatln] %v\n", err)
	}
	os.Exit(1)
}
