package domain

import (
	"fmt"
	"time"
)

const (
	DefaultCryptoCurrency = "btc"
	DefaultCryptoExchange = "ln"
	DefaultFiatCurrency   = "eur"
	DefaultFiatExchange   = "bl3p.eu"

	// DefaultCryptoDivisor is the number of msat in one btc.
	DefaultCryptoDivisor uint64 = 100_000_000_000
	// DefaultFiatDivisor is the number of exchange base units in one eur.
	DefaultFiatDivisor uint64 = 100_000
	// DefaultRateDivisor is the scale of limit rates.
	DefaultRateDivisor uint64 = 100_000_000
	// DefaultMaxLightningFee is the fee tolerance, in basis points, on the
	// amount paid over lightning.
	DefaultMaxLightningFee uint64 = 50

	DefaultOfferSearchInterval = time.Second
)

// Settings groups the trading parameters shared by every order. Once created
// it is never mutated and is passed by value to whatever needs it.
type Settings struct {
	CryptoCurrency string
	CryptoExchange string
	CryptoDivisor  uint64
	FiatCurrency   string
	FiatExchange   string
	FiatDivisor    uint64
	RateDivisor    uint64

	MaxLightningFee uint64
	// NodeAddress is the lightning node identifier published in offers.
	NodeAddress string

	BuyConditions  Conditions
	SellConditions Conditions

	OfferSearchInterval time.Duration
}

// DefaultConditions are the ranges attached to newly created orders:
// cltv expiry delta in blocks, sender timeout in milliseconds and locked
// timeout in seconds.
func DefaultConditions() Conditions {
	return Conditions{
		ConditionCltvExpiryDelta: {12, 144},
		ConditionSenderTimeout:   {2000, 10000},
		ConditionLockedTimeout:   {0, 14 * 24 * 3600},
	}
}

func DefaultSettings() Settings {
	return Settings{
		CryptoCurrency:      DefaultCryptoCurrency,
		CryptoExchange:      DefaultCryptoExchange,
		CryptoDivisor:       DefaultCryptoDivisor,
		FiatCurrency:        DefaultFiatCurrency,
		FiatExchange:        DefaultFiatExchange,
		FiatDivisor:         DefaultFiatDivisor,
		RateDivisor:         DefaultRateDivisor,
		MaxLightningFee:     DefaultMaxLightningFee,
		BuyConditions:       DefaultConditions(),
		SellConditions:      DefaultConditions(),
		OfferSearchInterval: DefaultOfferSearchInterval,
	}
}

func (s Settings) Validate() error {
	if s.CryptoDivisor == 0 || s.FiatDivisor == 0 || s.RateDivisor == 0 {
		return fmt.Errorf("%w: divisors must be positive", ErrInvalidSettings)
	}
	if len(s.CryptoCurrency) <= 0 || len(s.CryptoExchange) <= 0 {
		return fmt.Errorf("%w: missing crypto asset", ErrInvalidSettings)
	}
	if len(s.FiatCurrency) <= 0 || len(s.FiatExchange) <= 0 {
		return fmt.Errorf("%w: missing fiat asset", ErrInvalidSettings)
	}
	if s.OfferSearchInterval <= 0 {
		return fmt.Errorf("%w: offer search interval must be positive", ErrInvalidSettings)
	}
	for _, conds := range []Conditions{s.BuyConditions, s.SellConditions} {
		for k, r := range conds {
			if !r.IsValid() {
				return fmt.Errorf("%w: invalid %s range", ErrInvalidSettings, k)
			}
		}
	}
	return nil
}

// CryptoAsset returns the crypto asset with the given amount in base units.
func (s Settings) CryptoAsset(amount uint64) Asset {
	return Asset{amount, s.CryptoDivisor, s.CryptoCurrency, s.CryptoExchange}
}

// FiatAsset returns the fiat asset with the given amount in base units.
func (s Settings) FiatAsset(amount uint64) Asset {
	return Asset{amount, s.FiatDivisor, s.FiatCurrency, s.FiatExchange}
}
