package mathutil

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidDecimal  = errors.New("invalid decimal number")
	ErrNegativeDecimal = errors.New("decimal number must not be negative")
	ErrTooManyDecimals = errors.New("decimal number has too many decimal places")
	ErrDecimalOverflow = errors.New("decimal number is too large")
)

// FormatUnits returns amount/divisor as a decimal string.
func FormatUnits(amount *big.Int, divisor uint64) string {
	if divisor == 0 {
		divisor = 1
	}
	return decimal.NewFromBigInt(amount, 0).
		DivRound(decimal.NewFromBigInt(new(big.Int).SetUint64(divisor), 0), 18).
		String()
}

// ParseUnits converts a decimal string to base units, ie. value*divisor,
// which must be a non negative integer fitting an int64.
func ParseUnits(value string, divisor uint64) (int64, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, ErrInvalidDecimal
	}
	if d.IsNegative() {
		return 0, ErrNegativeDecimal
	}
	if divisor == 0 {
		divisor = 1
	}

	units := d.Mul(decimal.NewFromBigInt(new(big.Int).SetUint64(divisor), 0))
	if !units.IsInteger() {
		return 0, ErrTooManyDecimals
	}
	n := units.BigInt()
	if !n.IsInt64() {
		return 0, ErrDecimalOverflow
	}
	return n.Int64(), nil
}
