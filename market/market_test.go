package market

import (
	"math/rand"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calehh/hac-election/types"
)

func bonded(t *testing.T, pool, tokens int64, alpha string) *types.Party {
	t.Helper()
	p := types.NewParty("Green", "🌿", "trees", "leader")
	require.NoError(t, CreateBond(p, "leader", pool, tokens, decimal.RequireFromString(alpha)))
	return p
}

func TestCreateBond(t *testing.T) {
	p := bonded(t, 100, 100, "1")
	assert.Equal(t, sdkmath.NewInt(10000), p.K)
	assert.Equal(t, int64(100), p.Remaining())

	err := CreateBond(p, "leader", 100, 100, decimal.NewFromInt(1))
	require.ErrorIs(t, err, types.ErrValidation)

	tests := []struct {
		name   string
		caller string
		pool   int64
		tokens int64
		alpha  string
		err    error
	}{
		{"not leader", "someone", 100, 100, "0.5", types.ErrPermission},
		{"zero pool", "leader", 0, 100, "0.5", types.ErrInvalidAmount},
		{"single token", "leader", 100, 1, "0.5", types.ErrValidation},
		{"alpha above one", "leader", 100, 100, "1.01", types.ErrValidation},
		{"negative alpha", "leader", 100, 100, "-0.1", types.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fresh := types.NewParty("Blue", "", "", "leader")
			err := CreateBond(fresh, tt.caller, tt.pool, tt.tokens, decimal.RequireFromString(tt.alpha))
			require.ErrorIs(t, err, tt.err)
			assert.False(t, fresh.HasBonds())
		})
	}
}

func TestBondLifecycleScenario(t *testing.T) {
	p := bonded(t, 100, 100, "1.0")

	q, err := Buy(p, "u1", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(200), q.NewPool)
	assert.Equal(t, int64(50), q.NewRemaining)
	assert.Equal(t, int64(50), q.TokensAcquired)
	assert.Equal(t, int64(50), p.TokenHolders["u1"])
	assert.Equal(t, int64(0), p.Vault)

	s, err := Sell(p, "u1", 50)
	require.NoError(t, err)
	assert.Equal(t, int64(100), s.NewRemaining)
	assert.Equal(t, int64(100), s.NewPool)
	assert.Equal(t, int64(100), s.CoinsRefunded)
	assert.Equal(t, int64(100), p.Pool)
	assert.Equal(t, int64(0), p.SoldTokens)
	assert.NotContains(t, p.TokenHolders, "u1")
}

func TestBuySplitsByAlpha(t *testing.T) {
	p := bonded(t, 100_000_000, 1_000_000, "0.25")
	q, err := Buy(p, "u1", 10_000_001)
	require.NoError(t, err)
	assert.Equal(t, int64(24_390), q.TokensAcquired)
	assert.Equal(t, int64(2_499_975), q.PoolContribution)
	assert.Equal(t, int64(7_500_001), q.VaultContribution)
	assert.Equal(t, int64(25), q.Unspent)
	assert.Equal(t, int64(9_999_976), q.Cost)
	assert.Equal(t, int64(7_500_001), p.Vault)
	assert.Equal(t, int64(102_499_975), p.Pool)
	require.NoError(t, CheckInvariant(p))
}

func TestBuyRejections(t *testing.T) {
	unbonded := types.NewParty("Blue", "", "", "leader")
	_, err := QuoteBuy(unbonded, 100)
	require.ErrorIs(t, err, types.ErrValidation)

	p := bonded(t, 100_000_000, 10, "1")
	_, err = QuoteBuy(p, 0)
	require.ErrorIs(t, err, types.ErrInvalidAmount)

	// one micro-coin cannot move a curve this deep
	_, err = QuoteBuy(p, 1)
	require.ErrorIs(t, err, types.ErrInsufficientSpend)

	zero := bonded(t, 100, 100, "0")
	_, err = QuoteBuy(zero, 1_000_000)
	require.ErrorIs(t, err, types.ErrInsufficientSpend)
}

func TestBuyNeverEmptiesCurve(t *testing.T) {
	p := bonded(t, 100, 100, "1")
	q, err := Buy(p, "whale", 1_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(99), q.TokensAcquired)
	assert.Equal(t, int64(1), p.Remaining())
	assert.Equal(t, int64(10_000), p.Pool)
	assert.Equal(t, int64(9_900), q.Cost)

	_, err = QuoteBuy(p, 1_000_000)
	require.ErrorIs(t, err, types.ErrValidation)
}

func TestSellRejections(t *testing.T) {
	p := bonded(t, 100, 100, "1")
	_, err := Buy(p, "u1", 100)
	require.NoError(t, err)

	_, err = QuoteSell(p, 0, 50)
	require.ErrorIs(t, err, types.ErrInvalidAmount)
	_, err = QuoteSell(p, 51, 50)
	require.ErrorIs(t, err, types.ErrInsufficientFunds)
	_, err = QuoteSell(p, 60, 60)
	require.ErrorIs(t, err, types.ErrValidation)
	_, err = Sell(p, "nobody", 1)
	require.ErrorIs(t, err, types.ErrInsufficientFunds)
}

func TestSellTooSmallToRefund(t *testing.T) {
	p := bonded(t, 10, 1_000_000, "1")
	_, err := Buy(p, "u1", 10)
	require.NoError(t, err)
	_, err = Sell(p, "u1", 1)
	require.ErrorIs(t, err, types.ErrNothingToRefund)
	assert.Equal(t, int64(500_000), p.TokenHolders["u1"])
}

func TestRoundTrip(t *testing.T) {
	spends := []int64{25_000_000, 33_333_333, 1_234_567, 99_999_999}
	for _, spend := range spends {
		p := bonded(t, 100_000_000, 1_000_000, "1")
		pool, sold := p.Pool, p.SoldTokens

		q, err := Buy(p, "u1", spend)
		require.NoError(t, err)
		s, err := Sell(p, "u1", q.TokensAcquired)
		require.NoError(t, err)

		assert.Equal(t, pool, p.Pool)
		assert.Equal(t, sold, p.SoldTokens)
		assert.Equal(t, q.Cost, s.CoinsRefunded)
		assert.Equal(t, spend, q.Cost+q.Unspent)
		assert.NotContains(t, p.TokenHolders, "u1")
	}
}

func TestOverpaymentStaysWithBuyer(t *testing.T) {
	p := bonded(t, 100, 100, "1")
	whale, err := Buy(p, "whale", 8_900)
	require.NoError(t, err)
	assert.Equal(t, int64(98), whale.TokensAcquired)
	assert.Equal(t, int64(5_000), p.Pool)
	assert.Equal(t, int64(4_000), whale.Unspent)
	assert.Equal(t, int64(4_900), whale.Cost)
	require.NoError(t, CheckInvariant(p))

	// the next whole token costs 5000 more
	_, err = Buy(p, "trader", 1_000)
	require.ErrorIs(t, err, types.ErrInsufficientSpend)

	q, err := Buy(p, "trader", 6_000)
	require.NoError(t, err)
	assert.Equal(t, int64(1), q.TokensAcquired)
	assert.Equal(t, int64(5_000), q.Cost)
	s, err := Sell(p, "trader", 1)
	require.NoError(t, err)
	assert.Equal(t, q.Cost, s.CoinsRefunded)
	assert.Equal(t, int64(5_000), p.Pool)
}

func TestRoundTripFromMovedCurve(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	p := bonded(t, 100_000_000, 1_000_000, "1")
	for i := 0; i < 300; i++ {
		if r.Intn(3) > 0 {
			_, err := Buy(p, "crowd", 1+r.Int63n(30_000_000))
			if err != nil {
				require.ErrorIs(t, err, types.ErrInsufficientSpend)
			}
		} else if held := p.TokenHolders["crowd"]; held > 0 {
			_, err := Sell(p, "crowd", 1+r.Int63n(held))
			if err != nil {
				require.ErrorIs(t, err, types.ErrNothingToRefund)
			}
		}
		if p.Remaining() < 1000 {
			break
		}

		pool, sold := p.Pool, p.SoldTokens
		spend := 1 + r.Int63n(5_000_000)
		q, err := Buy(p, "u1", spend)
		if err != nil {
			require.ErrorIs(t, err, types.ErrInsufficientSpend)
			continue
		}
		require.LessOrEqual(t, q.Cost, spend)
		s, err := Sell(p, "u1", q.TokensAcquired)
		require.NoError(t, err)
		require.Equal(t, pool, p.Pool, "step %d", i)
		require.Equal(t, sold, p.SoldTokens)
		require.Equal(t, q.Cost, s.CoinsRefunded, "step %d", i)
		require.NotContains(t, p.TokenHolders, "u1")
	}
}

func TestInvariantPreservation(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	p := bonded(t, 50_000_000, 2_000_000, "0.7")
	traders := []string{"a", "b", "c", "d"}
	for i := 0; i < 2000; i++ {
		trader := traders[r.Intn(len(traders))]
		if r.Intn(3) > 0 {
			_, err := Buy(p, trader, 1+r.Int63n(20_000_000))
			if err != nil {
				require.ErrorIs(t, err, types.ErrInsufficientSpend)
			}
		} else if held := p.TokenHolders[trader]; held > 0 {
			_, err := Sell(p, trader, 1+r.Int63n(held))
			if err != nil {
				require.ErrorIs(t, err, types.ErrNothingToRefund)
			}
		}
		require.NoError(t, CheckInvariant(p), "step %d", i)
		require.GreaterOrEqual(t, p.Pool, int64(0))

		var held int64
		for _, n := range p.TokenHolders {
			held += n
		}
		require.Equal(t, p.SoldTokens, held)
	}
}

func TestPrice(t *testing.T) {
	p := bonded(t, 100, 100, "1")
	assert.True(t, decimal.NewFromInt(100).Equal(Price(p)))
	assert.True(t, decimal.NewFromInt(1).Equal(MarginalPrice(p)))

	_, err := Buy(p, "u1", 100)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(200).Equal(Price(p)))
	assert.True(t, decimal.NewFromInt(4).Equal(MarginalPrice(p)))

	assert.True(t, Price(types.NewParty("x", "", "", "l")).IsZero())
}

func TestCurve(t *testing.T) {
	p := bonded(t, 100, 100, "1")
	pts := Curve(p, 10)
	require.Len(t, pts, 10)
	assert.True(t, decimal.NewFromInt(100).Equal(pts[0]))
	for i := 1; i < len(pts); i++ {
		assert.True(t, pts[i].GreaterThan(pts[i-1]))
	}
}
