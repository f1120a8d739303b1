package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calehh/hac-election/crypto"
	"github.com/calehh/hac-election/election"
	"github.com/calehh/hac-election/state"
	"github.com/calehh/hac-election/tx"
	"github.com/calehh/hac-election/types"
)

func newService(t *testing.T) *election.Service {
	store := state.NewStore(state.NewMemoryTransport(), cmtlog.NewNopLogger(), state.Options{})
	cfg := election.DefaultConfig()
	cfg.BaseBalance = 1000
	cfg.MicrocoinsPerCoin = 10
	cfg.MinTransfer = 10
	svc, err := election.NewService(store, crypto.NewMultiVerifier(crypto.KeyEd25519), cfg, cmtlog.NewNopLogger())
	require.NoError(t, err)
	return svc
}

func command(typ tx.CommandType, user string, admin bool, payload any) *tx.Command {
	return &tx.Command{Type: typ, Guild: "g1", User: user, Admin: admin, Tx: payload}
}

func process(t *testing.T, h CommandHandler, svc *election.Service, cmd *tx.Command) *election.TradeReceipt {
	ctx := context.Background()
	require.NoError(t, h.Check(ctx, cmd))
	res, err := h.Process(ctx, svc, cmd)
	require.NoError(t, err)
	require.Equal(t, types.CodeOK, res.Code)
	if cmd.Type != tx.CommandTypeBuy && cmd.Type != tx.CommandTypeSell {
		return nil
	}
	var r election.TradeReceipt
	require.NoError(t, json.Unmarshal(res.Data, &r))
	return &r
}

func TestFailure(t *testing.T) {
	cases := []struct {
		err  error
		code uint32
	}{
		{types.Validation("bad"), types.CodeValidation},
		{types.Permission("no"), types.CodePermission},
		{fmt.Errorf("wrapped: %w", types.ErrInsufficientFunds), types.CodeInsufficientFunds},
		{&types.PartialFailureError{Completed: []string{"a"}, Failed: "b", Err: types.ErrInsufficientFunds}, types.CodePartialFailure},
		{errors.New("boom"), types.CodeInternal},
	}
	for _, tc := range cases {
		res := Failure(tc.err)
		assert.Equal(t, tc.code, res.Code, tc.err.Error())
		assert.Equal(t, types.CodeName(tc.code), res.Info)
		assert.Equal(t, Codespace, res.Codespace)
	}
}

func TestCheckRejects(t *testing.T) {
	ctx := context.Background()
	logger := cmtlog.NewNopLogger()
	cases := []struct {
		name string
		h    CommandHandler
		cmd  *tx.Command
	}{
		{"election needs admin", NewElectionHandler(logger), command(tx.CommandTypeDeleteElection, "bob", false, &tx.EmptyTx{})},
		{"election needs name", NewElectionHandler(logger), command(tx.CommandTypeCreateElection, "admin", true, &tx.CreateElectionTx{})},
		{"party needs name", NewPartyHandler(logger), command(tx.CommandTypeCreateParty, "bob", false, &tx.CreatePartyTx{})},
		{"join needs request", NewPartyHandler(logger), command(tx.CommandTypeDecideJoin, "bob", false, &tx.DecideJoinTx{})},
		{"bond needs pool", NewBondHandler(logger), command(tx.CommandTypeCreateBond, "bob", false, &tx.CreateBondTx{Party: "Green", TotalTokens: 10})},
		{"sell needs tokens", NewBondHandler(logger), command(tx.CommandTypeSell, "bob", false, &tx.SellTx{Party: "Green"})},
		{"campaign needs headline", NewBondHandler(logger), command(tx.CommandTypeCampaign, "bob", false, &tx.CampaignTx{Party: "Green"})},
		{"vote needs signature", NewVoteHandler(logger), command(tx.CommandTypeVote, "bob", false, &tx.VoteTx{Party: "Green"})},
		{"confirm needs ticket", NewVoteHandler(logger), command(tx.CommandTypeConfirmVote, "bob", false, &tx.ConfirmVoteTx{})},
		{"settle needs admin", NewSettleHandler(logger), command(tx.CommandTypeSettle, "bob", false, &tx.EmptyTx{})},
		{"payload mismatch", NewBondHandler(logger), command(tx.CommandTypeBuy, "bob", false, &tx.SellTx{Party: "Green", Tokens: 1})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.h.Check(ctx, tc.cmd))
		})
	}
}

func TestBondEvents(t *testing.T) {
	svc := newService(t)
	logger := cmtlog.NewNopLogger()
	eh := NewElectionHandler(logger)
	ph := NewPartyHandler(logger)
	bh := NewBondHandler(logger)

	process(t, eh, svc, command(tx.CommandTypeCreateElection, "admin", true, &tx.CreateElectionTx{Name: "Spring"}))
	process(t, ph, svc, command(tx.CommandTypeCreateParty, "alice", false, &tx.CreatePartyTx{Name: "Green"}))
	process(t, bh, svc, command(tx.CommandTypeCreateBond, "alice", false, &tx.CreateBondTx{
		Party: "Green", InitialPool: 100, TotalTokens: 100, Alpha: decimal.NewFromInt(1),
	}))

	cmd := command(tx.CommandTypeBuy, "bob", false, &tx.BuyTx{Party: "Green", CoinSpend: 100})
	res, err := bh.Process(context.Background(), svc, cmd)
	require.NoError(t, err)
	require.Len(t, res.Events, 2)
	trade := types.DecodeEventTrade(res.Events[0])
	require.NotNil(t, trade)
	assert.Equal(t, types.SideBuy, trade.Side)
	assert.Equal(t, int64(100), trade.Coins)
	assert.Equal(t, int64(50), trade.Tokens)
	bal := types.DecodeEventBalance(res.Events[1])
	require.NotNil(t, bal)
	assert.Equal(t, int64(-100), bal.Delta)
	assert.Equal(t, int64(900), bal.Balance)

	sold := process(t, bh, svc, command(tx.CommandTypeSell, "bob", false, &tx.SellTx{Party: "Green", Tokens: 50}))
	assert.Equal(t, int64(100), sold.Coins)
	assert.Equal(t, int64(1000), sold.Balance)

	_, err = bh.Process(context.Background(), svc, command(tx.CommandTypeSell, "bob", false, &tx.SellTx{Party: "Green", Tokens: 1}))
	assert.Error(t, err)
}

func TestDecideJoinDecline(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	logger := cmtlog.NewNopLogger()
	process(t, NewElectionHandler(logger), svc, command(tx.CommandTypeCreateElection, "admin", true, &tx.CreateElectionTx{Name: "Spring"}))
	ph := NewPartyHandler(logger)
	process(t, ph, svc, command(tx.CommandTypeCreateParty, "alice", false, &tx.CreatePartyTx{Name: "Green"}))

	res, err := ph.Process(ctx, svc, command(tx.CommandTypeRequestJoin, "bob", false, &tx.PartyTx{Party: "Green"}))
	require.NoError(t, err)
	assert.Empty(t, res.Events)
	var req JoinRequestReceipt
	require.NoError(t, json.Unmarshal(res.Data, &req))
	assert.Equal(t, "Green", req.Join.Party)

	res, err = ph.Process(ctx, svc, command(tx.CommandTypeDecideJoin, "alice", false, &tx.DecideJoinTx{Request: req.Request}))
	require.NoError(t, err)
	assert.Empty(t, res.Events)

	_, err = ph.Process(ctx, svc, command(tx.CommandTypeDecideJoin, "alice", false, &tx.DecideJoinTx{Request: req.Request, Approve: true}))
	assert.Error(t, err)
}
