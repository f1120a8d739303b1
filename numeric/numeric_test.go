package numeric

import (
	"math"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeOps(t *testing.T) {
	v, err := SafeAdd(2, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)

	_, err = SafeAdd(math.MaxInt64, 1)
	require.ErrorIs(t, err, ErrOverflow)

	_, err = SafeSub(math.MinInt64, 1)
	require.ErrorIs(t, err, ErrOverflow)

	_, err = SafeMul(math.MaxInt64/2, 3)
	require.ErrorIs(t, err, ErrOverflow)
}

func TestDivisions(t *testing.T) {
	tests := []struct {
		name  string
		n     int64
		d     int64
		floor int64
		ceil  int64
	}{
		{"exact", 10000, 200, 50, 50},
		{"remainder", 10000, 300, 33, 34},
		{"zero numerator", 0, 7, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := FloorQuo(sdkmath.NewInt(tt.n), tt.d)
			require.NoError(t, err)
			assert.Equal(t, tt.floor, f)
			c, err := CeilQuo(sdkmath.NewInt(tt.n), tt.d)
			require.NoError(t, err)
			assert.Equal(t, tt.ceil, c)
		})
	}

	_, err := CeilQuo(sdkmath.NewInt(1), 0)
	require.ErrorIs(t, err, ErrDivisionByZero)
}

func TestMulDivLargeIntermediate(t *testing.T) {
	// the product overflows int64 but the quotient does not
	v, err := MulDiv(math.MaxInt64/2, 4, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64/4), v)
}

func TestMulFracRounding(t *testing.T) {
	assert.Equal(t, int64(50), MulFrac(100, decimal.RequireFromString("0.5")))
	assert.Equal(t, int64(2), MulFrac(3, decimal.RequireFromString("0.5")))
	assert.Equal(t, int64(1), MulFrac(3, decimal.RequireFromString("0.33")))
	assert.Equal(t, int64(100), MulFrac(100, decimal.NewFromInt(1)))
	assert.Equal(t, int64(0), MulFrac(100, decimal.Zero))
}

func TestUnits(t *testing.T) {
	u := NewUnits(0)
	assert.Equal(t, DefaultMicrocoinsPerCoin, u.PerCoin)
	assert.Equal(t, "100.000000", u.Format(100_000_000))
	assert.Equal(t, "0.001000", u.Format(1000))
	assert.Equal(t, "-1.500000", u.Format(-1_500_000))

	micro, err := u.Parse("2.5")
	require.NoError(t, err)
	assert.Equal(t, int64(2_500_000), micro)

	_, err = u.Parse("abc")
	require.ErrorIs(t, err, ErrInvalidCoins)

	c, err := u.FromCoins(3)
	require.NoError(t, err)
	assert.Equal(t, int64(3_000_000), c)
}

func TestFormatTokens(t *testing.T) {
	assert.Equal(t, "1,000,000", FormatTokens(1_000_000))
}
