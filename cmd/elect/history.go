package main

import (
	"context"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/spf13/cobra"

	"github.com/calehh/hac-election/agent"
)

type historyArguments struct {
	Url string
	agent.PageReq
}

var historyArgs historyArguments

var historyCmd = &cobra.Command{
	Use:   "history <trades|prices|campaigns|settlements|balances|elections|parties|commands>",
	Short: "Read indexed history",
	Args:  cobra.ExactArgs(1),
	RunE:  historyRun,
}

var historyEndpoints = map[string]string{
	"trades":      "getTrades",
	"prices":      "getPriceHistory",
	"campaigns":   "getCampaigns",
	"settlements": "getSettlements",
	"balances":    "getBalances",
	"elections":   "getElections",
	"parties":     "getParties",
	"commands":    "getCommands",
}

func init() {
	urlFlag(historyCmd, &historyArgs.Url)
	historyCmd.Flags().StringVarP(&historyArgs.Guild, "guild", "g", "", "guild id")
	historyCmd.Flags().StringVar(&historyArgs.Election, "election", "", "election id")
	historyCmd.Flags().StringVar(&historyArgs.Party, "party", "", "party name")
	historyCmd.Flags().StringVar(&historyArgs.User, "user", "", "user id")
	historyCmd.Flags().IntVar(&historyArgs.Page, "page", 0, "page number")
	historyCmd.Flags().IntVar(&historyArgs.PageSize, "pageSize", 50, "page size")
}

func historyRun(cmd *cobra.Command, args []string) error {
	endpoint, ok := historyEndpoints[args[0]]
	if !ok {
		return cmd.Usage()
	}
	cli := agent.NewClient(historyArgs.Url, cmtlog.NewNopLogger())
	dat, err := cli.History(context.Background(), endpoint, historyArgs.PageReq)
	if err != nil {
		return err
	}
	return printJSON(dat)
}
