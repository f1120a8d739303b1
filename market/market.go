// Package market prices party tokens on the constant-product curve
// pool * remaining = k. Quotes never round in the trader's favour.
package market

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"

	"github.com/calehh/hac-election/numeric"
	"github.com/calehh/hac-election/types"
)

type BuyQuote struct {
	CoinSpend         int64 `json:"coinSpend"`
	PoolContribution  int64 `json:"poolContribution"`
	VaultContribution int64 `json:"vaultContribution"`
	NewPool           int64 `json:"newPool"`
	NewRemaining      int64 `json:"newRemaining"`
	TokensAcquired    int64 `json:"tokensAcquired"`
	// Unspent is the part of CoinSpend the curve did not need; Cost is
	// what the buyer actually pays.
	Unspent int64 `json:"unspent"`
	Cost    int64 `json:"cost"`
}

type SellQuote struct {
	Tokens        int64 `json:"tokens"`
	NewPool       int64 `json:"newPool"`
	NewRemaining  int64 `json:"newRemaining"`
	CoinsRefunded int64 `json:"coinsRefunded"`
}

var one = decimal.NewFromInt(1)

func CreateBond(p *types.Party, caller string, initialPool, totalTokens int64, alpha decimal.Decimal) error {
	if p.LeaderId != caller {
		return types.Permission("only the leader of %s can create bonds", p.Name)
	}
	if p.HasBonds() {
		return types.Validation("bonds already created for %s", p.Name)
	}
	if initialPool <= 0 {
		return fmt.Errorf("%w: initial pool must be positive", types.ErrInvalidAmount)
	}
	if totalTokens <= 1 {
		return types.Validation("token supply must be greater than 1")
	}
	if alpha.IsNegative() || alpha.GreaterThan(one) {
		return types.Validation("alpha %s outside [0,1]", alpha)
	}
	p.Pool = initialPool
	p.IssuedTokens = totalTokens
	p.SoldTokens = 0
	p.Alpha = alpha
	p.K = numeric.Product(initialPool, totalTokens)
	p.TokenHolders = map[string]int64{}
	return nil
}

func requireBonds(p *types.Party) error {
	if !p.HasBonds() {
		return types.Validation("party %s has not created bonds", p.Name)
	}
	return nil
}

func QuoteBuy(p *types.Party, coinSpend int64) (q BuyQuote, err error) {
	if err = requireBonds(p); err != nil {
		return
	}
	if coinSpend <= 0 {
		err = fmt.Errorf("%w: spend must be positive", types.ErrInvalidAmount)
		return
	}
	remaining := p.Remaining()
	if remaining <= 1 {
		err = types.Validation("no tokens left for %s", p.Name)
		return
	}
	q.CoinSpend = coinSpend
	q.PoolContribution = numeric.MulFrac(coinSpend, p.Alpha)
	q.VaultContribution = coinSpend - q.PoolContribution
	offered, err := numeric.SafeAdd(p.Pool, q.PoolContribution)
	if err != nil {
		return
	}
	target, err := numeric.CeilQuo(p.K, offered)
	if err != nil {
		return
	}
	q.TokensAcquired = min(remaining-target, remaining-1)
	if q.TokensAcquired <= 0 {
		err = fmt.Errorf("%w: %d does not buy a whole token of %s", types.ErrInsufficientSpend, coinSpend, p.Name)
		return
	}
	q.NewRemaining = remaining - q.TokensAcquired
	// The pool keeps only what the whole tokens are worth on the curve, so
	// pool = ceil(k/remaining) after every trade. The rest goes back to the
	// buyer.
	q.NewPool, err = numeric.CeilQuo(p.K, q.NewRemaining)
	if err != nil {
		return
	}
	q.Unspent = min(offered-q.NewPool, q.PoolContribution)
	q.NewPool = offered - q.Unspent
	q.PoolContribution -= q.Unspent
	q.Cost = coinSpend - q.Unspent
	return
}

func ApplyBuy(p *types.Party, buyer string, q BuyQuote) {
	p.Pool = q.NewPool
	p.Vault += q.VaultContribution
	p.SoldTokens += q.TokensAcquired
	p.TokenHolders[buyer] += q.TokensAcquired
}

func Buy(p *types.Party, buyer string, coinSpend int64) (BuyQuote, error) {
	q, err := QuoteBuy(p, coinSpend)
	if err != nil {
		return q, err
	}
	ApplyBuy(p, buyer, q)
	return q, nil
}

func QuoteSell(p *types.Party, tokens, holdings int64) (q SellQuote, err error) {
	if err = requireBonds(p); err != nil {
		return
	}
	if tokens <= 0 {
		err = fmt.Errorf("%w: token count must be positive", types.ErrInvalidAmount)
		return
	}
	if tokens > holdings {
		err = fmt.Errorf("%w: holding %d tokens of %s, selling %d", types.ErrInsufficientFunds, holdings, p.Name, tokens)
		return
	}
	if tokens > p.SoldTokens {
		err = types.Validation("cannot sell more than the %d sold tokens", p.SoldTokens)
		return
	}
	q.Tokens = tokens
	q.NewRemaining = p.Remaining() + tokens
	q.NewPool, err = numeric.CeilQuo(p.K, q.NewRemaining)
	if err != nil {
		return
	}
	q.CoinsRefunded = p.Pool - q.NewPool
	if q.CoinsRefunded <= 0 {
		err = fmt.Errorf("%w: %d tokens of %s", types.ErrNothingToRefund, tokens, p.Name)
	}
	return
}

func ApplySell(p *types.Party, seller string, q SellQuote) {
	p.Pool = q.NewPool
	p.SoldTokens -= q.Tokens
	left := p.TokenHolders[seller] - q.Tokens
	if left <= 0 {
		delete(p.TokenHolders, seller)
	} else {
		p.TokenHolders[seller] = left
	}
}

func Sell(p *types.Party, seller string, tokens int64) (SellQuote, error) {
	q, err := QuoteSell(p, tokens, p.TokenHolders[seller])
	if err != nil {
		return q, err
	}
	ApplySell(p, seller, q)
	return q, nil
}

// Price is k/remaining, which is the pool value at the curve point rather
// than the derivative. MarginalPrice is the derivative.
func Price(p *types.Party) decimal.Decimal {
	remaining := p.Remaining()
	if !p.HasBonds() || remaining <= 0 {
		return decimal.Zero
	}
	return numeric.Ratio(p.K, sdkmath.NewInt(remaining))
}

func MarginalPrice(p *types.Party) decimal.Decimal {
	remaining := p.Remaining()
	if !p.HasBonds() || remaining <= 0 {
		return decimal.Zero
	}
	return numeric.Ratio(p.K, numeric.Product(remaining, remaining))
}

// Drift is pool*remaining - k. Since pool = ceil(k/remaining) it stays in
// [0, remaining), i.e. the pool is within one unit of k/remaining.
func Drift(p *types.Party) sdkmath.Int {
	return numeric.Product(p.Pool, p.Remaining()).Sub(p.K)
}

func CheckInvariant(p *types.Party) error {
	if !p.HasBonds() {
		return nil
	}
	d := Drift(p)
	bound := sdkmath.NewInt(p.Remaining())
	if d.IsNegative() || d.GTE(bound) {
		return fmt.Errorf("curve of %s drifted by %s (pool %d, remaining %d, k %s)", p.Name, d, p.Pool, p.Remaining(), p.K)
	}
	return nil
}

// Curve samples the price at evenly spaced sold counts for plotting.
func Curve(p *types.Party, points int) []decimal.Decimal {
	if !p.HasBonds() || points < 2 {
		return nil
	}
	out := make([]decimal.Decimal, 0, points)
	step := (p.IssuedTokens - 1) / int64(points-1)
	if step == 0 {
		step = 1
	}
	for sold := int64(0); sold < p.IssuedTokens && len(out) < points; sold += step {
		out = append(out, numeric.Ratio(p.K, sdkmath.NewInt(p.IssuedTokens-sold)))
	}
	return out
}
