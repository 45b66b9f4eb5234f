package trade

import (
	"math/big"

	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
	"github.com/tdex-network/fiatln-daemon/pkg/mathutil"
)

// sellTerms are the amounts and timeouts of a sell transaction negotiated
// against a counter offer. Amounts are in base units.
type sellTerms struct {
	buyerCryptoAmount  int64
	sellerCryptoAmount int64
	buyerFiatAmount    int64
	sellerFiatAmount   int64
	senderTimeout      int64
	lockedTimeout      int64
	cltvExpiryDelta    int64
}

// computeSellTerms returns the terms for trading the sell order against the
// given buy offer, or false if the resulting trade would be empty.
func computeSellTerms(
	settings domain.Settings, order domain.Order, counter domain.Offer,
) (sellTerms, bool) {
	if counter.Ask.MaxAmount == 0 || counter.Ask.MaxAmountDivisor == 0 ||
		counter.Bid.MaxAmountDivisor == 0 {
		return sellTerms{}, false
	}

	// The crypto amount is bounded by what we have and by what the buyer wants.
	cryptoAmount := big.NewInt(order.TradeableAmount())
	wanted := mathutil.DivFloor(
		mathutil.BigProduct(counter.Ask.MaxAmount, settings.CryptoDivisor),
		mathutil.BigProduct(counter.Ask.MaxAmountDivisor),
	)
	if wanted.Cmp(cryptoAmount) < 0 {
		cryptoAmount = wanted
	}
	if cryptoAmount.Sign() <= 0 {
		return sellTerms{}, false
	}

	// Fiat the buyer pays at the buyer's own price, never more than offered.
	buyerFiat := mathutil.DivFloor(
		new(big.Int).Mul(cryptoAmount, mathutil.BigProduct(
			counter.Bid.MaxAmount, counter.Ask.MaxAmountDivisor, settings.FiatDivisor,
		)),
		mathutil.BigProduct(
			settings.CryptoDivisor, counter.Bid.MaxAmountDivisor, counter.Ask.MaxAmount,
		),
	)
	offered := mathutil.DivFloor(
		mathutil.BigProduct(counter.Bid.MaxAmount, settings.FiatDivisor),
		mathutil.BigProduct(counter.Bid.MaxAmountDivisor),
	)
	if buyerFiat.Cmp(offered) > 0 {
		buyerFiat = offered
	}
	if buyerFiat.Sign() <= 0 {
		return sellTerms{}, false
	}

	// Minimum fiat we accept, at our own limit price.
	mul, div := order.RateTerms()
	sellerFiat := mathutil.DivCeil(
		new(big.Int).Mul(cryptoAmount, mathutil.BigProduct(mul, settings.FiatDivisor)),
		mathutil.BigProduct(settings.CryptoDivisor, div),
	)

	crypto := cryptoAmount.Uint64()
	maxSpent, _ := mathutil.PlusFee(crypto, settings.MaxLightningFee)

	own := order.Offer
	return sellTerms{
		buyerCryptoAmount:  int64(crypto),
		sellerCryptoAmount: int64(maxSpent),
		buyerFiatAmount:    clampInt64(buyerFiat),
		sellerFiatAmount:   clampInt64(sellerFiat),
		senderTimeout: maxOfMins(
			own, counter, domain.ConditionSenderTimeout,
		),
		lockedTimeout: minOfMaxes(
			own, counter, domain.ConditionLockedTimeout,
		),
		cltvExpiryDelta: maxOfMins(
			own, counter, domain.ConditionCltvExpiryDelta,
		),
	}, true
}

// maxOfMins returns the smallest value acceptable to both offers. A condition
// missing on the counter offer falls back to the own range.
func maxOfMins(own, counter domain.Offer, key domain.ConditionKey) int64 {
	ownRange := conditionOrDefault(own, key)
	counterRange, ok := counter.Conditions[key]
	if !ok {
		counterRange = ownRange
	}
	if counterRange.Min > ownRange.Min {
		return counterRange.Min
	}
	return ownRange.Min
}

// minOfMaxes returns the largest value acceptable to both offers. A condition
// missing on the counter offer falls back to the own range.
func minOfMaxes(own, counter domain.Offer, key domain.ConditionKey) int64 {
	ownRange := conditionOrDefault(own, key)
	counterRange, ok := counter.Conditions[key]
	if !ok {
		counterRange = ownRange
	}
	if counterRange.Max < ownRange.Max {
		return counterRange.Max
	}
	return ownRange.Max
}

func conditionOrDefault(offer domain.Offer, key domain.ConditionKey) domain.Range {
	if r, ok := offer.Conditions[key]; ok {
		return r
	}
	return domain.DefaultConditions()[key]
}

func clampInt64(x *big.Int) int64 {
	if !x.IsInt64() {
		if x.Sign() < 0 {
			return 0
		}
		return int64(^uint64(0) >> 1)
	}
	return x.Int64()
}
