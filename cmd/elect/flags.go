package main

import (
	"os"

	cmtflags "github.com/cometbft/cometbft/libs/cli/flags"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/spf13/cobra"

	"github.com/calehh/hac-election/config"
)

var homeDir string

var rootCmd = &cobra.Command{
	Use:   "elect",
	Short: "Bond-funded guild elections",
	Long: `Runs guild elections where parties raise funds on a bonding curve
and the winner's holders are paid out at settlement.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&homeDir, "homedir", "d", "", "home directory (default $HOME/.elect)")
}

func home() string {
	if homeDir == "" {
		return config.DefaultHome()
	}
	return homeDir
}

func urlFlag(cmd *cobra.Command, url *string) {
	cmd.Flags().StringVarP(url, "url", "u", "http://127.0.0.1:8080", "elect api url")
}

func newLogger(level string) (cmtlog.Logger, error) {
	logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout))
	return cmtflags.ParseLogLevel(level, logger, config.DefaultLogLevel)
}
