package main

import (
	"fmt"
	"path/filepath"

	cmtos "github.com/cometbft/cometbft/libs/os"
	"github.com/spf13/cobra"

	"github.com/calehh/hac-election/config"
	"github.com/calehh/hac-election/crypto"
)

type initArguments struct {
	Backend   string
	Listen    string
	Overwrite bool
	VoterKey  bool
}

var initArgs initArguments

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Args:  cobra.ExactArgs(0),
	RunE:  initRun,
}

func init() {
	initCmd.Flags().StringVar(&initArgs.Backend, "backend", config.BackendTree, "store backend: memory, tree, badger or http")
	initCmd.Flags().StringVar(&initArgs.Listen, "listen", "", "api listen address")
	initCmd.Flags().BoolVarP(&initArgs.Overwrite, "overwrite", "o", false, "overwrite an existing config.toml")
	initCmd.Flags().BoolVar(&initArgs.VoterKey, "voter-key", false, "also generate a voter key in the config directory")
}

func initRun(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig(home())
	cfg.Store.Backend = initArgs.Backend
	if initArgs.Listen != "" {
		cfg.API.ListenAddress = initArgs.Listen
	}
	if err := cfg.ValidateBasic(); err != nil {
		return err
	}
	if err := cfg.EnsureRoot(); err != nil {
		return err
	}
	file := cfg.ConfigFile()
	if cmtos.FileExists(file) && !initArgs.Overwrite {
		return fmt.Errorf("%s already exists, use --overwrite to replace it", file)
	}
	if err := cfg.WriteConfigFile(); err != nil {
		return err
	}
	fmt.Println("config written:", file)

	if initArgs.VoterKey {
		dir := filepath.Join(cfg.App.Home, "config")
		pv, err := crypto.LoadOrGenFilePV(filepath.Join(dir, DefaultVoterKeyName), filepath.Join(dir, DefaultVoterStateName))
		if err != nil {
			return err
		}
		fmt.Println("voter key address:", pv.Address())
	}
	return nil
}
