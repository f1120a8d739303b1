package main

import (
	"fmt"
	"os"
)

func main() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(pubkeyCmd)
	rootCmd.AddCommand(txCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(historyCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
