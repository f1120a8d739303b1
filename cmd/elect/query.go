package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/spf13/cobra"

	"github.com/calehh/hac-election/agent"
)

type queryArguments struct {
	Url    string
	Params []string
}

var queryArgs queryArguments

var queryCmd = &cobra.Command{
	Use:   "query <path>",
	Short: "Read live state, e.g. query elections/g1/balances/alice",
	Args:  cobra.ExactArgs(1),
	RunE:  queryRun,
}

func init() {
	urlFlag(queryCmd, &queryArgs.Url)
	queryCmd.Flags().StringSliceVarP(&queryArgs.Params, "param", "p", nil, "query parameter as key=value")
}

func queryRun(cmd *cobra.Command, args []string) error {
	values := url.Values{}
	for _, p := range queryArgs.Params {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return fmt.Errorf("parameter %q is not key=value", p)
		}
		values.Add(k, v)
	}
	cli := agent.NewClient(queryArgs.Url, cmtlog.NewNopLogger())
	dat, err := cli.Get(context.Background(), values, strings.Split(strings.Trim(args[0], "/"), "/")...)
	if err != nil {
		return err
	}
	return printJSON(dat)
}

func printJSON(dat []byte) error {
	var out bytes.Buffer
	if err := json.Indent(&out, dat, "", "  "); err != nil {
		return err
	}
	fmt.Println(out.String())
	return nil
}
