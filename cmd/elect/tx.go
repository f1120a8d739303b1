package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/spf13/cobra"

	"github.com/calehh/hac-election/agent"
	"github.com/calehh/hac-election/tx"
)

type txArguments struct {
	Url     string
	Guild   string
	User    string
	Admin   bool
	Payload string
}

var txArgs txArguments

var txCmd = &cobra.Command{
	Use:   "tx <command>",
	Short: "Submit a command, e.g. tx buy --payload '{\"party\":\"Green\",\"coinSpend\":1000000}'",
	Long: `Submits one command to the api. The command name is one of:
` + strings.Join(commandNames(), ", "),
	Args: cobra.ExactArgs(1),
	RunE: txRun,
}

func init() {
	urlFlag(txCmd, &txArgs.Url)
	txCmd.Flags().StringVarP(&txArgs.Guild, "guild", "g", "", "guild id")
	txCmd.Flags().StringVar(&txArgs.User, "user", "", "acting user id")
	txCmd.Flags().BoolVar(&txArgs.Admin, "admin", false, "act with the guild admin role")
	txCmd.Flags().StringVar(&txArgs.Payload, "payload", "{}", "command payload as JSON")
	_ = txCmd.MarkFlagRequired("guild")
	_ = txCmd.MarkFlagRequired("user")
}

func commandNames() []string {
	names := make([]string, 0)
	for t := tx.CommandTypeCreateElection; t <= tx.CommandTypeReconcileSettlement; t++ {
		names = append(names, t.String())
	}
	return names
}

func txRun(cmd *cobra.Command, args []string) error {
	typ := tx.ParseCommandType(args[0])
	if typ == tx.CommandTypeUnknown {
		return fmt.Errorf("unknown command %q", args[0])
	}
	var payload json.RawMessage
	if err := json.Unmarshal([]byte(txArgs.Payload), &payload); err != nil {
		return fmt.Errorf("payload is not JSON: %w", err)
	}
	cli := agent.NewClient(txArgs.Url, cmtlog.NewNopLogger())
	res, err := cli.Submit(context.Background(), &tx.Command{
		Version: tx.CommandVersion0,
		Type:    typ,
		Guild:   txArgs.Guild,
		User:    txArgs.User,
		Admin:   txArgs.Admin,
		Tx:      payload,
	})
	if err != nil {
		return err
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(out))
	return nil
}
