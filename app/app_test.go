package app

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calehh/hac-election/config"
	"github.com/calehh/hac-election/crypto"
	"github.com/calehh/hac-election/election"
	"github.com/calehh/hac-election/tx"
	"github.com/calehh/hac-election/types"
)

type fakeClock struct {
	mtx sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.now = c.now.Add(d)
}

type recordingSink struct {
	mtx     sync.Mutex
	results []*abcitypes.ExecTxResult
}

func (s *recordingSink) Index(ctx context.Context, cmd *tx.Command, res *abcitypes.ExecTxResult, at time.Time) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.results = append(s.results, res)
	return nil
}

func newTestApp(t *testing.T) (*App, *fakeClock, *recordingSink) {
	cfg := config.DefaultConfig(t.TempDir())
	cfg.Store.Backend = config.BackendMemory
	cfg.Economy.BaseBalance = 1000
	cfg.Economy.MicrocoinsPerCoin = 10
	cfg.Economy.MinTransfer = 10
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	sink := &recordingSink{}
	app, err := NewApp(cfg, cmtlog.NewNopLogger(), WithClock(clock.Now), WithEventSink(sink))
	require.NoError(t, err)
	t.Cleanup(app.Stop)
	return app, clock, sink
}

func exec(t *testing.T, app *App, typ tx.CommandType, user string, admin bool, payload any) *abcitypes.ExecTxResult {
	cmd := &tx.Command{Type: typ, Guild: "g1", User: user, Admin: admin, Tx: payload}
	return app.ExecuteCommand(context.Background(), cmd)
}

func mustExec(t *testing.T, app *App, typ tx.CommandType, user string, admin bool, payload any) *abcitypes.ExecTxResult {
	res := exec(t, app, typ, user, admin, payload)
	require.Equal(t, types.CodeOK, res.Code, "%s: %s", typ, res.Log)
	return res
}

func eventTypes(res *abcitypes.ExecTxResult) []string {
	out := make([]string, 0, len(res.Events))
	for _, ev := range res.Events {
		out = append(out, ev.Type)
	}
	return out
}

func balance(t *testing.T, app *App, user string) int64 {
	res, err := app.QueryJSON(context.Background(), QueryBalance, &QueryRequest{Guild: "g1", User: user})
	require.NoError(t, err)
	require.Equal(t, types.CodeOK, res.Code, res.Log)
	var v election.BalanceView
	require.NoError(t, json.Unmarshal(res.Value, &v))
	return v.Available
}

func TestElectionRoundThroughCommands(t *testing.T) {
	app, clock, sink := newTestApp(t)
	dir := t.TempDir()
	pv, err := crypto.LoadOrGenFilePV(filepath.Join(dir, "voter_key.json"), filepath.Join(dir, "voter_state.json"))
	require.NoError(t, err)
	key, err := pv.PublicKeyPem()
	require.NoError(t, err)

	res := mustExec(t, app, tx.CommandTypeCreateElection, "admin", true, &tx.CreateElectionTx{Name: "Spring", DurationHours: 2})
	assert.Equal(t, []string{types.EventElectionType}, eventTypes(res))

	res = mustExec(t, app, tx.CommandTypeCreateParty, "alice", false, &tx.CreatePartyTx{Name: "Green", Emoji: "G", Agenda: "trees"})
	assert.Equal(t, []string{types.EventPartyType}, eventTypes(res))

	res = mustExec(t, app, tx.CommandTypeCreateBond, "alice", false, &tx.CreateBondTx{
		Party: "Green", InitialPool: 100, TotalTokens: 100, Alpha: decimal.NewFromInt(1),
	})
	assert.Equal(t, []string{types.EventBondType, types.EventBalanceType}, eventTypes(res))
	assert.Equal(t, int64(900), balance(t, app, "alice"))

	res = mustExec(t, app, tx.CommandTypeBuy, "bob", false, &tx.BuyTx{Party: "Green", CoinSpend: 100})
	assert.Equal(t, []string{types.EventTradeType, types.EventBalanceType}, eventTypes(res))
	var trade election.TradeReceipt
	require.NoError(t, json.Unmarshal(res.Data, &trade))
	assert.Equal(t, int64(50), trade.Tokens)
	assert.Equal(t, int64(900), balance(t, app, "bob"))

	qres, err := app.QueryJSON(context.Background(), QueryQuoteBuy, &QueryRequest{Guild: "g1", Party: "Green", Amount: 100})
	require.NoError(t, err)
	require.Equal(t, types.CodeOK, qres.Code, qres.Log)

	res = mustExec(t, app, tx.CommandTypeRegisterVoter, "carol", false, &tx.RegisterVoterTx{PublicKey: key})
	assert.Equal(t, []string{types.EventVoteType}, eventTypes(res))
	sig, err := pv.SignBallot("Green")
	require.NoError(t, err)
	res = mustExec(t, app, tx.CommandTypePrepareVote, "carol", false, &tx.VoteTx{Party: "Green", Signature: sig})
	assert.Empty(t, res.Events)
	var ballot struct {
		Ticket string `json:"ticket"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &ballot))
	mustExec(t, app, tx.CommandTypeConfirmVote, "carol", false, &tx.ConfirmVoteTx{Ticket: ballot.Ticket})

	res = exec(t, app, tx.CommandTypeSettle, "admin", true, &tx.EmptyTx{})
	assert.Equal(t, types.CodeValidation, res.Code)

	clock.Advance(3 * time.Hour)
	res = mustExec(t, app, tx.CommandTypeSettle, "admin", true, &tx.EmptyTx{})
	require.NotEmpty(t, res.Events)
	settle := types.DecodeEventSettle(res.Events[0])
	require.NotNil(t, settle)
	assert.Equal(t, "Green", settle.Winner)
	for _, ev := range res.Events[1:] {
		assert.Equal(t, types.EventBalanceType, ev.Type)
	}

	res = exec(t, app, tx.CommandTypeSettle, "admin", true, &tx.EmptyTx{})
	assert.Equal(t, types.CodeAlreadySettled, res.Code)

	qres, err = app.QueryJSON(context.Background(), QueryVotes, &QueryRequest{Guild: "g1"})
	require.NoError(t, err)
	var votes []types.Vote
	require.NoError(t, json.Unmarshal(qres.Value, &votes))
	require.Len(t, votes, 1)
	assert.Equal(t, "carol", votes[0].VoterId)

	sink.mtx.Lock()
	defer sink.mtx.Unlock()
	assert.Len(t, sink.results, 10)
}

func TestExecuteRejects(t *testing.T) {
	app, _, _ := newTestApp(t)
	ctx := context.Background()

	res := app.Execute(ctx, []byte("not json"))
	assert.Equal(t, types.CodeValidation, res.Code)

	res = exec(t, app, tx.CommandTypeCreateElection, "bob", false, &tx.CreateElectionTx{Name: "Spring"})
	assert.Equal(t, types.CodePermission, res.Code)
	assert.Equal(t, "permission", res.Info)

	res = exec(t, app, tx.CommandTypeBuy, "bob", false, &tx.BuyTx{Party: "Green", CoinSpend: 0})
	assert.Equal(t, types.CodeValidation, res.Code)

	check := app.CheckCommand(ctx, []byte(`{"type":11,"guild":"g1","user":"bob","tx":{"party":"Green","coinSpend":5}}`))
	assert.Equal(t, types.CodeOK, check.Code, check.Log)

	results := app.ExecuteBatch(ctx, [][]byte{[]byte("{}"), []byte(`{"type":99,"guild":"g1","user":"bob"}`)})
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NotEqual(t, types.CodeOK, r.Code)
	}
}

func TestQueryPaths(t *testing.T) {
	app, _, _ := newTestApp(t)
	ctx := context.Background()

	res, err := app.Query(ctx, &abcitypes.RequestQuery{Path: "/nowhere"})
	require.NoError(t, err)
	assert.Equal(t, uint32(404), res.Code)

	res, err = app.Query(ctx, &abcitypes.RequestQuery{Path: "/balance", Data: []byte("{")})
	require.NoError(t, err)
	assert.Equal(t, types.CodeValidation, res.Code)

	assert.Equal(t, int64(1000), balance(t, app, "dave"))

	res, err = app.QueryJSON(ctx, QueryElections, &QueryRequest{})
	require.NoError(t, err)
	require.Equal(t, types.CodeOK, res.Code, res.Log)

	mustExec(t, app, tx.CommandTypeCreateElection, "admin", true, &tx.CreateElectionTx{Name: "Spring"})
	res, err = app.QueryJSON(ctx, QueryStatus, &QueryRequest{})
	require.NoError(t, err)
	var status map[string]float64
	require.NoError(t, json.Unmarshal(res.Value, &status))
	assert.Equal(t, float64(1), status["election_app_commands_total"])
}
