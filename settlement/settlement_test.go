package settlement

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calehh/hac-election/types"
)

var now = time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)

func party(name string, pool, issued, sold, vault int64, members []string, holders map[string]int64) *types.Party {
	p := types.NewParty(name, "", "", members[0])
	p.Members = members
	p.Pool = pool
	p.IssuedTokens = issued
	p.SoldTokens = sold
	p.Vault = vault
	p.K = sdkmath.NewInt(pool * (issued - sold))
	if holders != nil {
		p.TokenHolders = holders
	}
	return p
}

func endedElection(parties ...*types.Party) *types.Election {
	e := &types.Election{
		ElectionId:    "e1",
		GuildId:       "g",
		StartAt:       now.Add(-48 * time.Hour),
		DurationHours: 24,
		Status:        types.StatusRunning,
	}
	e.Normalize()
	for _, p := range parties {
		e.Parties[p.Name] = p
	}
	return e
}

func TestDetermineWinner(t *testing.T) {
	tests := []struct {
		name   string
		tally  map[string]int64
		winner string
		ok     bool
	}{
		{"tie", map[string]int64{"A": 2, "B": 2}, "", false},
		{"clear", map[string]int64{"A": 3, "B": 1}, "A", true},
		{"three way with tie below", map[string]int64{"A": 1, "B": 1, "C": 4}, "C", true},
		{"tie above a lower count", map[string]int64{"A": 5, "B": 1, "C": 5}, "", false},
		{"empty", map[string]int64{}, "", false},
		{"zeros", map[string]int64{"A": 0, "B": 0}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, ok := DetermineWinner(tt.tally)
			assert.Equal(t, tt.winner, w)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestTally(t *testing.T) {
	votes := []types.Vote{{VoterId: "1", Message: "A"}, {VoterId: "2", Message: "B"}, {VoterId: "3", Message: "A"}}
	assert.Equal(t, map[string]int64{"A": 2, "B": 1}, Tally(votes))
}

func TestSettlementDeterminism(t *testing.T) {
	a := party("A", 100, 100, 100, 0, []string{"la"}, map[string]int64{"u1": 50, "u2": 50})
	b := party("B", 100, 100, 0, 0, []string{"lb"}, nil)
	e := endedElection(a, b)

	rec, err := Compute(e, "A", Policy{}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(200), rec.CombinedPool)
	assert.True(t, decimal.NewFromInt(2).Equal(rec.FinalPrice))
	assert.Equal(t, map[string]int64{"u1": 100, "u2": 100}, rec.Liquidations)
	assert.Equal(t, map[string]int64{"u1": 100, "u2": 100}, rec.Deltas)
	assert.Equal(t, int64(0), rec.Burned)

	// Compute leaves the election alone
	assert.Equal(t, int64(100), e.Parties["A"].Pool)
}

func TestUnsoldValueGoesToWinnerVault(t *testing.T) {
	a := party("A", 150, 100, 40, 10, []string{"la", "m1"}, map[string]int64{"u1": 40})
	b := party("B", 50, 100, 0, 7, []string{"lb", "m2", "m3"}, nil)
	e := endedElection(a, b)

	rec, err := Compute(e, "A", Policy{}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(200), rec.CombinedPool)
	assert.Equal(t, int64(80), rec.Liquidations["u1"])
	assert.Equal(t, int64(120), rec.UnsoldToVault)
	// A vault 10+120 split two ways, B vault 7 split three ways with 1 burned
	assert.Equal(t, int64(65), rec.VaultDistributions["la"])
	assert.Equal(t, int64(65), rec.VaultDistributions["m1"])
	assert.Equal(t, int64(2), rec.VaultDistributions["m3"])
	assert.Equal(t, int64(1), rec.Burned)
}

func TestTieForfeitsPools(t *testing.T) {
	a := party("A", 100, 100, 50, 9, []string{"la"}, map[string]int64{"u1": 50})
	b := party("B", 100, 100, 0, 0, []string{"lb"}, nil)
	e := endedElection(a, b)

	rec, err := Compute(e, "", Policy{}, now)
	require.NoError(t, err)
	assert.Empty(t, rec.Winner)
	assert.Empty(t, rec.Liquidations)
	assert.True(t, rec.FinalPrice.IsZero())
	assert.Equal(t, int64(200), rec.Burned)
	assert.Equal(t, map[string]int64{"la": 9}, rec.Deltas)
}

func TestEmptyPartyVault(t *testing.T) {
	a := party("A", 100, 100, 0, 0, []string{"la"}, nil)
	ghost := party("Ghost", 0, 0, 0, 30, []string{"x"}, nil)
	ghost.Members = []string{}
	e := endedElection(a, ghost)

	rec, err := Compute(e, "A", Policy{OnEmptyVault: EmptyVaultBurn}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(30), rec.Burned)

	rec, err = Compute(e, "A", Policy{OnEmptyVault: EmptyVaultAdmin, AdminSink: "admin"}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rec.Burned)
	assert.Equal(t, int64(30), rec.AdminSinkAmount)
	assert.Equal(t, int64(30), rec.Deltas["admin"])
}

func TestConservation(t *testing.T) {
	a := party("A", 123_457, 1000, 333, 999, []string{"la", "m1", "m2"}, map[string]int64{"u1": 111, "u2": 222})
	b := party("B", 98_765, 700, 100, 50_001, []string{"lb"}, map[string]int64{"u3": 100})
	c := party("C", 11, 10, 0, 5, []string{"lc", "m4"}, nil)
	e := endedElection(a, b, c)

	for _, winner := range []string{"A", "B", "C", ""} {
		rec, err := Compute(e, winner, Policy{}, now)
		require.NoError(t, err)
		var paid int64
		for _, d := range rec.Deltas {
			paid += d
		}
		total := rec.CombinedPool + 999 + 50_001 + 5
		assert.Equal(t, total, paid+rec.Burned, winner)
	}
}

func TestSettleAndDoubleSettle(t *testing.T) {
	a := party("A", 100, 100, 100, 0, []string{"la"}, map[string]int64{"u1": 50, "u2": 50})
	b := party("B", 100, 100, 0, 0, []string{"lb"}, nil)
	e := endedElection(a, b)
	votes := []types.Vote{{VoterId: "v1", Message: "A"}, {VoterId: "v2", Message: "A"}, {VoterId: "v3", Message: "B"}}

	rec, err := Settle(e, votes, Policy{}, now)
	require.NoError(t, err)
	assert.Equal(t, "A", rec.Winner)
	assert.Equal(t, types.StatusFinalized, e.Status)
	assert.Same(t, rec, e.Settlement)
	for _, p := range e.Parties {
		assert.Empty(t, p.TokenHolders)
		assert.Zero(t, p.Pool)
		assert.Zero(t, p.Vault)
		assert.Zero(t, p.SoldTokens)
	}

	_, err = Settle(e, votes, Policy{}, now)
	require.ErrorIs(t, err, types.ErrAlreadySettled)

	c := &types.CommonData{GuildId: "g"}
	c.Normalize()
	applied, err := ApplyToLedger(c, "e1", rec, now)
	require.NoError(t, err)
	assert.True(t, applied)
	balances := map[string]int64{"u1": 100, "u2": 100}
	assert.Equal(t, balances, c.Balances)

	applied, err = ApplyToLedger(c, "e1", rec, now)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, balances, c.Balances)
}

func TestSettleBeforeEnd(t *testing.T) {
	e := endedElection(party("A", 100, 100, 0, 0, []string{"la"}, nil))
	e.StartAt = now
	_, err := Settle(e, nil, Policy{}, now)
	require.ErrorIs(t, err, types.ErrValidation)
	assert.Equal(t, types.StatusRunning, e.Status)
}

func TestParseEmptyVaultPolicy(t *testing.T) {
	p, err := ParseEmptyVaultPolicy("")
	require.NoError(t, err)
	assert.Equal(t, EmptyVaultBurn, p)
	p, err = ParseEmptyVaultPolicy("admin")
	require.NoError(t, err)
	assert.Equal(t, EmptyVaultAdmin, p)
	_, err = ParseEmptyVaultPolicy("donate")
	require.Error(t, err)
}
