package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/tdex-network/tdex-p2p/pkg/util"
	"github.com/urfave/cli/v2"
)

const stateFile = "state.json"

var (
	defaultDatadir = btcutil.AppDataDir("tdex-p2p-operator", false)

	datadirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "directory of the local state of the CLI",
		Value: defaultDatadir,
	}
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fatal(err)
	}
}

func newApp(out io.Writer) *cli.App {
	app := cli.NewApp()

	app.Version = "0.0.1"
	app.Name = "tdexp2p"
	app.Usage = "Command line interface for tdexp2pd operators"
	app.Writer = out
	app.Flags = []cli.Flag{&datadirFlag}
	app.Commands = append(
		app.Commands,
		&config,
		&info,
		&book,
		&offers,
		&trades,
	)
	return app
}

func statePath(ctx *cli.Context) string {
	return filepath.Join(ctx.String(datadirFlag.Name), stateFile)
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
	datadir := ctx.String(datadirFlag.Name)
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
	merge := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			merge[k] = v
		}
	}
	return merge
}

// call sends the request to the operator interface of the daemon and
// prints the JSON response.
func call(ctx *cli.Context, method, path string, body interface{}) error {
	state, err := getState(ctx)
	if err != nil {
		return err
	}
	url, ok := state["rpcserver"]
	if !ok {
		return errors.New("set rpcserver with `config set rpcserver`")
	}

	var reqBody string
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = string(buf)
	}

	status, resp, err := util.NewHTTPRequest(
		method, fmt.Sprintf("http://%s%s", url, path), reqBody,
		map[string]string{"Content-Type": "application/json"},
	)
	if err != nil {
		return fmt.Errorf("unable to connect to daemon: %w", err)
	}
	if status >= http.StatusBadRequest {
		errResp := struct {
			Error string `json:"error"`
		}{}
		if json.Unmarshal([]byte(resp), &errResp) == nil && errResp.Error != "" {
			return errors.New(errResp.Error)
		}
		return fmt.Errorf("%d %s", status, resp)
	}

	printRespJSON(ctx.App.Writer, resp)
	return nil
}

func printRespJSON(out io.Writer, resp string) {
	if resp == "" {
		return
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(resp), "", "\t"); err != nil {
		fmt.Fprintln(out, resp)
		return
	}
	fmt.Fprintln(out, buf.String())
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
		_, _ = fmt.Fprintf(os.Stderr, "[tdexp2p] %v\n", err)
	}
	os.Exit(1)
}
