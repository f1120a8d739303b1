package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calehh/hac-election/crypto"
)

const (
	DefaultVoterKeyName   = "voter_key.json"
	DefaultVoterStateName = "voter_state.json"
)

type signArguments struct {
	Skey  string
	Party string
}

var signArgs signArguments

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a ballot for a party with the local voter key",
	Run:   signRun,
}

func init() {
	signCmd.Flags().StringVarP(&signArgs.Skey, "skeyPath", "s", "./config/"+DefaultVoterKeyName, "voter key path")
	signCmd.Flags().StringVarP(&signArgs.Party, "party", "p", "", "party to vote for")
	_ = signCmd.MarkFlagRequired("party")
}

func signRun(cmd *cobra.Command, args []string) {
	pv, err := crypto.LoadFilePV(signArgs.Skey)
	if err != nil {
		fmt.Printf("load voter key err:%v\n", err)
		return
	}
	sig, err := pv.SignBallot(signArgs.Party)
	if err != nil {
		fmt.Printf("sign ballot err:%v\n", err)
		return
	}
	fmt.Println("address:", pv.Address())
	fmt.Println("party:", signArgs.Party)
	fmt.Println("signature:", sig)
}
