package handler

import (
	"context"
	"encoding/json"

	abcitypes "github.com/cometbft/cometbft/abci/types"

	"github.com/calehh/hac-election/election"
	"github.com/calehh/hac-election/tx"
	"github.com/calehh/hac-election/types"
)

const Codespace = "election"

// CommandHandler runs one family of commands. Check only looks at the
// payload; Process runs the command against the service.
type CommandHandler interface {
	Check(ctx context.Context, cmd *tx.Command) error
	Process(ctx context.Context, svc *election.Service, cmd *tx.Command) (res *abcitypes.ExecTxResult, err error)
}

func caller(cmd *tx.Command) election.Caller {
	return election.Caller{Guild: cmd.Guild, User: cmd.User, Admin: cmd.Admin}
}

// Result packs a receipt and its events.
func Result(receipt any, events ...abcitypes.Event) (res *abcitypes.ExecTxResult, err error) {
	data, err := json.Marshal(receipt)
	if err != nil {
		return nil, err
	}
	res = &abcitypes.ExecTxResult{Code: types.CodeOK, Data: data, Events: events, Codespace: Codespace}
	return
}

// Failure renders a command error as a result. The code tells clients which
// rejection it was.
func Failure(err error) *abcitypes.ExecTxResult {
	return &abcitypes.ExecTxResult{Code: types.CodeOf(err), Log: err.Error(), Info: types.CodeName(types.CodeOf(err)), Codespace: Codespace}
}

func balanceEvent(guild, user string, delta, balance int64) abcitypes.Event {
	return types.EncodeEventBalance(&types.EventBalance{Guild: guild, User: user, Delta: delta, Balance: balance})
}
