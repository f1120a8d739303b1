// Package numeric holds the integer money primitives. Every amount is an int64
// count of micro-coins; coins only exist at the presentation boundary.
package numeric

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

const DefaultMicrocoinsPerCoin int64 = 1_000_000

var (
	ErrOverflow       = errors.New("amount overflow")
	ErrDivisionByZero = errors.New("division by zero")
	ErrInvalidCoins   = errors.New("invalid coin amount")
)

func toInt64(v sdkmath.Int) (int64, error) {
	if !v.IsInt64() {
		return 0, fmt.Errorf("%w: %s", ErrOverflow, v)
	}
	return v.Int64(), nil
}

func SafeAdd(a, b int64) (int64, error) {
	return toInt64(sdkmath.NewInt(a).Add(sdkmath.NewInt(b)))
}

func SafeSub(a, b int64) (int64, error) {
	return toInt64(sdkmath.NewInt(a).Sub(sdkmath.NewInt(b)))
}

func SafeMul(a, b int64) (int64, error) {
	return toInt64(Product(a, b))
}

// Product never overflows; use it for curve constants.
func Product(a, b int64) sdkmath.Int {
	return sdkmath.NewInt(a).Mul(sdkmath.NewInt(b))
}

// MulDiv returns floor(a*b/c) for non-negative a, b and positive c.
func MulDiv(a, b, c int64) (int64, error) {
	if c == 0 {
		return 0, ErrDivisionByZero
	}
	return toInt64(Product(a, b).Quo(sdkmath.NewInt(c)))
}

// FloorQuo returns floor(n/d) for non-negative n and positive d.
func FloorQuo(n sdkmath.Int, d int64) (int64, error) {
	if d == 0 {
		return 0, ErrDivisionByZero
	}
	return toInt64(n.Quo(sdkmath.NewInt(d)))
}

// CeilQuo returns ceil(n/d) for non-negative n and positive d.
func CeilQuo(n sdkmath.Int, d int64) (int64, error) {
	if d == 0 {
		return 0, ErrDivisionByZero
	}
	dd := sdkmath.NewInt(d)
	q := n.Quo(dd)
	if !n.Mod(dd).IsZero() {
		q = q.AddRaw(1)
	}
	return toInt64(q)
}

// MulFrac scales amount by frac and rounds half away from zero to the unit.
func MulFrac(amount int64, frac decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(frac).Round(0).IntPart()
}

// Ratio renders n/d as a decimal, used for display prices.
func Ratio(n sdkmath.Int, d sdkmath.Int) decimal.Decimal {
	if d.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.BigInt(), 0).DivRound(decimal.NewFromBigInt(d.BigInt(), 0), 12)
}

// Units converts between micro-coins and the display coin.
type Units struct {
	PerCoin int64
}

func NewUnits(perCoin int64) Units {
	if perCoin <= 0 {
		perCoin = DefaultMicrocoinsPerCoin
	}
	return Units{PerCoin: perCoin}
}

func (u Units) places() int32 {
	p := int32(0)
	for n := u.PerCoin; n >= 10; n /= 10 {
		p++
	}
	return p
}

func (u Units) Coins(micro int64) decimal.Decimal {
	return decimal.NewFromInt(micro).Div(decimal.NewFromInt(u.PerCoin))
}

func (u Units) Format(micro int64) string {
	return u.Coins(micro).StringFixed(u.places())
}

func (u Units) FormatDecimal(micro decimal.Decimal) string {
	return micro.Div(decimal.NewFromInt(u.PerCoin)).StringFixed(u.places())
}

func (u Units) ToMicro(coins decimal.Decimal) int64 {
	return coins.Mul(decimal.NewFromInt(u.PerCoin)).Round(0).IntPart()
}

func (u Units) FromCoins(coins int64) (int64, error) {
	return SafeMul(coins, u.PerCoin)
}

func (u Units) Parse(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCoins, s)
	}
	if d.Mul(decimal.NewFromInt(u.PerCoin)).GreaterThan(decimal.NewFromInt(1 << 62)) {
		return 0, fmt.Errorf("%w: %q", ErrOverflow, s)
	}
	return u.ToMicro(d), nil
}

func FormatTokens(n int64) string {
	return humanize.Comma(n)
}
