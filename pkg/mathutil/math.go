package mathutil

import (
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	bigOne       = big.NewInt(1)
	maxUint64Big = new(big.Int).SetUint64(^uint64(0))
)

func init() {
	decimal.DivisionPrecision = 8
}

// BigProduct returns the product of the given uint64 values as a *big.Int,
// so that no intermediate result can overflow.
func BigProduct(values ...uint64) *big.Int {
	z := big.NewInt(1)
	for _, v := range values {
		z.Mul(z, new(big.Int).SetUint64(v))
	}
	return z
}

// DivFloor returns floor(x/y) for non negative x and positive y.
func DivFloor(x, y *big.Int) *big.Int {
	return new(big.Int).Quo(x, y)
}

// DivCeil returns ceil(x/y) for non negative x and positive y.
func DivCeil(x, y *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(x, y, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, bigOne)
	}
	return q
}

// FitsUint64 tells whether x can be represented as uint64.
func FitsUint64(x *big.Int) bool {
	return x.Sign() >= 0 && x.Cmp(maxUint64Big) <= 0
}

// ClampUint64 returns x as uint64, saturating at the type bounds.
func ClampUint64(x *big.Int) uint64 {
	if x.Sign() < 0 {
		return 0
	}
	if !FitsUint64(x) {
		return ^uint64(0)
	}
	return x.Uint64()
}

// ReduceFraction returns num/den reduced to its lowest terms and scaled down
// until both terms fit an uint64. When scaling is needed the resulting value
// is rounded up if roundUp is set, otherwise it's rounded down.
// The denominator must be positive.
func ReduceFraction(num, den *big.Int, roundUp bool) (uint64, uint64) {
	n, d := new(big.Int).Set(num), new(big.Int).Set(den)
	if n.Sign() == 0 {
		return 0, 1
	}

	gcd := new(big.Int).GCD(nil, nil, n, d)
	n.Quo(n, gcd)
	d.Quo(d, gcd)

	if FitsUint64(n) && FitsUint64(d) {
		return n.Uint64(), d.Uint64()
	}

	bits := n.BitLen()
	if d.BitLen() > bits {
		bits = d.BitLen()
	}
	shift := uint(bits - 64)
	scale := new(big.Int).Lsh(bigOne, shift)

	if roundUp {
		n = DivCeil(n, scale)
		d = DivFloor(d, scale)
	} else {
		n = DivFloor(n, scale)
		d = DivCeil(d, scale)
	}
	if d.Sign() == 0 {
		d.SetInt64(1)
	}
	return ClampUint64(n), ClampUint64(d)
}

//Div takes two uint64 numbers and divides them x / y and returns the result as decimal.Decimal
func Div(x, y uint64) (z decimal.Decimal) {
	X := decimal.NewFromBigInt(new(big.Int).SetUint64(x), 0)
	Y := decimal.NewFromBigInt(new(big.Int).SetUint64(y), 0)
	z = X.Div(Y)
	return
}

//MulDecimal takes two decimal.Decimal numbers and multiplies them x * y and returns the result as decimal.Decimal
func MulDecimal(X, Y decimal.Decimal) (z decimal.Decimal) {
	z = X.Mul(Y)
	return
}

//AddDecimal takes two decimal.Decimal numbers and sum them x + y and returns the result as decimal.Decimal
func AddDecimal(X, Y decimal.Decimal) (z decimal.Decimal) {
	z = X.Add(Y)
	return
}

//SubDecimal takes two decimal.Decimal numbers and subtracts them x - y and returns the result as decimal.Decimal
func SubDecimal(X, Y decimal.Decimal) (z decimal.Decimal) {
	z = X.Sub(Y)
	return
}
