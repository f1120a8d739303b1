package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calehh/hac-election/tx"
)

const Version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Print the node version and the command envelope version it accepts",
	Aliases: []string{"V"},
	Run:     versionRun,
}

func versionRun(cmd *cobra.Command, args []string) {
	fmt.Printf("elect %s (command envelope v%d)\n", Version, tx.CommandVersion0)
}
