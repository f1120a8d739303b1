// Package settlement decides the winner of an ended election and turns the
// pooled curve reserves and party vaults into ledger credits.
package settlement

import (
	"fmt"
	"sort"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"

	"github.com/calehh/hac-election/ledger"
	"github.com/calehh/hac-election/lifecycle"
	"github.com/calehh/hac-election/numeric"
	"github.com/calehh/hac-election/types"
)

type EmptyVaultPolicy string

const (
	EmptyVaultBurn  EmptyVaultPolicy = "burn"
	EmptyVaultAdmin EmptyVaultPolicy = "admin"
)

type Policy struct {
	OnEmptyVault EmptyVaultPolicy
	AdminSink    string
}

func ParseEmptyVaultPolicy(s string) (EmptyVaultPolicy, error) {
	switch EmptyVaultPolicy(s) {
	case "", EmptyVaultBurn:
		return EmptyVaultBurn, nil
	case EmptyVaultAdmin:
		return EmptyVaultAdmin, nil
	}
	return "", fmt.Errorf("unknown empty vault policy %q", s)
}

// Tally counts one vote per voter, keyed by the party named in the message.
func Tally(votes []types.Vote) map[string]int64 {
	tally := make(map[string]int64)
	for _, v := range votes {
		tally[v.Message]++
	}
	return tally
}

// DetermineWinner returns the party with strictly the most votes. A tie at
// the top, or no votes at all, has no winner.
func DetermineWinner(tally map[string]int64) (winner string, ok bool) {
	var best int64
	tie := false
	for _, name := range sortedKeys(tally) {
		n := tally[name]
		switch {
		case n > best:
			best, winner, tie = n, name, false
		case n == best && best > 0:
			tie = true
		}
	}
	if best == 0 || tie {
		return "", false
	}
	return winner, true
}

// Compute builds the settlement record without touching e. winner may be
// empty for a tie.
func Compute(e *types.Election, winner string, policy Policy, now time.Time) (rec *types.SettlementRecord, err error) {
	rec = &types.SettlementRecord{
		Tally:              map[string]int64{},
		FinalPrice:         decimal.Zero,
		Liquidations:       map[string]int64{},
		VaultDistributions: map[string]int64{},
		Deltas:             map[string]int64{},
		SettledAt:          now,
	}
	names := e.PartyNames()
	for _, name := range names {
		rec.CombinedPool, err = numeric.SafeAdd(rec.CombinedPool, e.Parties[name].Pool)
		if err != nil {
			return nil, err
		}
	}

	var unsold int64
	win, found := e.Parties[winner]
	if found && win.HasBonds() {
		rec.Winner = winner
		rec.FinalPrice = numeric.Ratio(sdkmath.NewInt(rec.CombinedPool), sdkmath.NewInt(win.IssuedTokens))
		paid := int64(0)
		for _, user := range sortedKeys(win.TokenHolders) {
			value, err1 := numeric.MulDiv(win.TokenHolders[user], rec.CombinedPool, win.IssuedTokens)
			if err1 != nil {
				return nil, err1
			}
			rec.Liquidations[user] = value
			rec.Deltas[user] += value
			paid += value
		}
		unsold, err = numeric.MulDiv(win.Remaining(), rec.CombinedPool, win.IssuedTokens)
		if err != nil {
			return nil, err
		}
		rec.UnsoldToVault = unsold
		rec.Burned += rec.CombinedPool - paid - unsold
	} else {
		if found {
			rec.Winner = winner
		}
		rec.Burned += rec.CombinedPool
	}

	for _, name := range names {
		p := e.Parties[name]
		vault := p.Vault
		if name == rec.Winner {
			vault += unsold
		}
		if vault <= 0 {
			continue
		}
		if len(p.Members) == 0 {
			if policy.OnEmptyVault == EmptyVaultAdmin && policy.AdminSink != "" {
				rec.AdminSink = policy.AdminSink
				rec.AdminSinkAmount += vault
				rec.Deltas[policy.AdminSink] += vault
			} else {
				rec.Burned += vault
			}
			continue
		}
		share := vault / int64(len(p.Members))
		rec.Burned += vault - share*int64(len(p.Members))
		if share == 0 {
			continue
		}
		for _, m := range p.Members {
			rec.VaultDistributions[m] += share
			rec.Deltas[m] += share
		}
	}
	return rec, nil
}

// Finalize records the result on e, marks it finalized and clears every
// party's trading state. Party structures stay.
func Finalize(e *types.Election, rec *types.SettlementRecord) {
	e.Settlement = rec
	e.Status = types.StatusFinalized
	for _, p := range e.Parties {
		p.TokenHolders = map[string]int64{}
		p.SoldTokens = 0
		p.Pool = 0
		p.Vault = 0
	}
	e.Reserved = map[string]int64{}
}

// Settle gates, tallies, computes and finalizes e in place.
func Settle(e *types.Election, votes []types.Vote, policy Policy, now time.Time) (*types.SettlementRecord, error) {
	if err := lifecycle.Check(e, lifecycle.OpSettle, now); err != nil {
		return nil, err
	}
	tally := Tally(votes)
	winner, _ := DetermineWinner(tally)
	rec, err := Compute(e, winner, policy, now)
	if err != nil {
		return nil, err
	}
	rec.Tally = tally
	Finalize(e, rec)
	return rec, nil
}

// ApplyToLedger credits rec's deltas once per election. A second call is a
// no-op and reports applied == false.
func ApplyToLedger(c *types.CommonData, electionId string, rec *types.SettlementRecord, now time.Time) (applied bool, err error) {
	if _, done := c.Settled[electionId]; done {
		return false, nil
	}
	if err = ledger.ApplyDeltas(c, rec.Deltas); err != nil {
		return false, err
	}
	c.Settled[electionId] = now
	return true, nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
