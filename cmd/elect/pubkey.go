package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calehh/hac-election/crypto"
)

type pubkeyArguments struct {
	Skey string
}

var pubkeyArgs pubkeyArguments

var pubkeyCmd = &cobra.Command{
	Use:   "pubkey",
	Short: "Print the voter public key as PEM for registration",
	Run:   pubkeyRun,
}

func init() {
	pubkeyCmd.Flags().StringVarP(&pubkeyArgs.Skey, "skeyPath", "s", "./config/"+DefaultVoterKeyName, "voter key path")
}

func pubkeyRun(cmd *cobra.Command, args []string) {
	pv, err := crypto.LoadFilePV(pubkeyArgs.Skey)
	if err != nil {
		fmt.Printf("load voter key err:%v\n", err)
		return
	}
	pem, err := pv.PublicKeyPem()
	if err != nil {
		fmt.Printf("encode public key err:%v\n", err)
		return
	}
	fmt.Println("address:", pv.Address())
	fmt.Print(pem)
}
