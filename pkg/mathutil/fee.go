package mathutil

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// TenThousands ...
var TenThousands = uint64(10000)

// PlusFee calculates an amount with a fee added given an amount and a fee
// expressed in basis point (ie. 0.25% = 25). The fee is truncated to the unit.
func PlusFee(amount, feeAsBasisPoint uint64) (withFee, calculatedFee uint64) {
	feeDecimal := decimal.NewFromBigInt(new(big.Int).SetUint64(feeAsBasisPoint), 0)

	amountDividedByTenThousands := Div(amount, TenThousands)
	calculatedFeeDecimal := MulDecimal(amountDividedByTenThousands, feeDecimal).Floor()
	calculatedFee = calculatedFeeDecimal.BigInt().Uint64()

	return amount + calculatedFee, calculatedFee
}

// LessFee calculates an amount with a fee subtracted given an amount and a fee
// expressed in basis point (ie. 0.25% = 25). The fee is truncated to the unit.
func LessFee(amount, feeAsBasisPoint uint64) (withoutFee, calculatedFee uint64) {
	feeDecimal := decimal.NewFromBigInt(new(big.Int).SetUint64(feeAsBasisPoint), 0)

	amountDividedByTenThousands := Div(amount, TenThousands)
	calculatedFeeDecimal := MulDecimal(amountDividedByTenThousands, feeDecimal).Floor()
	calculatedFee = calculatedFeeDecimal.BigInt().Uint64()
	if calculatedFee > amount {
		calculatedFee = amount
	}

	return amount - calculatedFee, calculatedFee
}
