package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
)

func newOffer(bid, bidDiv, ask, askDiv uint64, conds domain.Conditions) domain.Offer {
	return domain.Offer{
		Bid:        domain.Asset{MaxAmount: bid, MaxAmountDivisor: bidDiv, Currency: "eur", Exchange: "bl3p.eu"},
		Ask:        domain.Asset{MaxAmount: ask, MaxAmountDivisor: askDiv, Currency: "btc", Exchange: "ln"},
		Conditions: conds,
	}
}

func newCounterOffer(bid, bidDiv, ask, askDiv uint64, conds domain.Conditions) domain.Offer {
	return domain.Offer{
		Bid:        domain.Asset{MaxAmount: bid, MaxAmountDivisor: bidDiv, Currency: "btc", Exchange: "ln"},
		Ask:        domain.Asset{MaxAmount: ask, MaxAmountDivisor: askDiv, Currency: "eur", Exchange: "bl3p.eu"},
		Conditions: conds,
	}
}

func TestVerifyMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		offer       domain.Offer
		counter     domain.Offer
		expectedErr error
	}{
		{
			name:    "matching",
			offer:   newOffer(2000, 1, 1000, 1, nil),
			counter: newCounterOffer(1000, 1, 2000, 1, nil),
		},
		{
			name:    "counter more generous",
			offer:   newOffer(2000, 1, 1000, 1, nil),
			counter: newCounterOffer(1000, 1, 1900, 1, nil),
		},
		{
			name:    "matching with divisors",
			offer:   newOffer(200000, 100000, 1, 100, nil),
			counter: newCounterOffer(1000000000, 100000000000, 2, 1, nil),
		},
		{
			name:        "rate mismatch",
			offer:       newOffer(2000, 1, 1000, 1, nil),
			counter:     newCounterOffer(1000, 1, 2001, 1, nil),
			expectedErr: domain.ErrRateMismatch,
		},
		{
			name:  "currency mismatch",
			offer: newOffer(2000, 1, 1000, 1, nil),
			counter: domain.Offer{
				Bid: domain.Asset{MaxAmount: 1000, MaxAmountDivisor: 1, Currency: "btc", Exchange: "ln"},
				Ask: domain.Asset{MaxAmount: 2000, MaxAmountDivisor: 1, Currency: "usd", Exchange: "bl3p.eu"},
			},
			expectedErr: domain.ErrCurrencyMismatch,
		},
		{
			name:  "exchange mismatch",
			offer: newOffer(2000, 1, 1000, 1, nil),
			counter: domain.Offer{
				Bid: domain.Asset{MaxAmount: 1000, MaxAmountDivisor: 1, Currency: "btc", Exchange: "ln"},
				Ask: domain.Asset{MaxAmount: 2000, MaxAmountDivisor: 1, Currency: "eur", Exchange: "kraken"},
			},
			expectedErr: domain.ErrExchangeMismatch,
		},
		{
			name: "condition mismatch",
			offer: newOffer(2000, 1, 1000, 1, domain.Conditions{
				domain.ConditionCltvExpiryDelta: {12, 144},
			}),
			counter: newCounterOffer(1000, 1, 2000, 1, domain.Conditions{
				domain.ConditionCltvExpiryDelta: {145, 200},
			}),
			expectedErr: domain.ErrConditionMismatch,
		},
		{
			name: "touching ranges overlap",
			offer: newOffer(2000, 1, 1000, 1, domain.Conditions{
				domain.ConditionCltvExpiryDelta: {12, 144},
			}),
			counter: newCounterOffer(1000, 1, 2000, 1, domain.Conditions{
				domain.ConditionCltvExpiryDelta: {144, 144},
			}),
		},
		{
			name: "condition missing on one side",
			offer: newOffer(2000, 1, 1000, 1, domain.Conditions{
				domain.ConditionLockedTimeout: {0, 10},
			}),
			counter: newCounterOffer(1000, 1, 2000, 1, domain.Conditions{
				domain.ConditionSenderTimeout: {5000, 6000},
			}),
		},
		{
			// float64 rounds 2^53+1 down to 2^53 and would accept this pair.
			name:        "exact arithmetic",
			offer:       newOffer(1<<53, 1, 1<<53+1, 1, nil),
			counter:     newCounterOffer(1, 1, 1, 1, nil),
			expectedErr: domain.ErrRateMismatch,
		},
		{
			name:    "no overflow on huge amounts",
			offer:   newOffer(^uint64(0), ^uint64(0), ^uint64(0), ^uint64(0), nil),
			counter: newCounterOffer(^uint64(0), ^uint64(0), ^uint64(0), ^uint64(0), nil),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := tt.offer.VerifyMatches(tt.counter)
			reverseErr := tt.counter.VerifyMatches(tt.offer)

			if tt.expectedErr == nil {
				require.NoError(t, err)
				require.NoError(t, reverseErr)
				require.True(t, tt.offer.Matches(tt.counter))
				return
			}

			require.ErrorIs(t, err, tt.expectedErr)
			require.ErrorIs(t, reverseErr, tt.expectedErr)
			require.False(t, tt.offer.Matches(tt.counter))

			var matchErr *domain.MatchError
			require.True(t, errors.As(err, &matchErr))
			require.NotEmpty(t, matchErr.Error())
		})
	}
}

func TestMatchErrorKinds(t *testing.T) {
	err := newOffer(1, 1, 10, 1, nil).VerifyMatches(newCounterOffer(1, 1, 1, 1, nil))
	require.ErrorIs(t, err, domain.ErrRateMismatch)
	require.NotErrorIs(t, err, domain.ErrCurrencyMismatch)
}

func TestOfferValidate(t *testing.T) {
	offer := newOffer(1, 1, 1, 1, nil)
	require.NoError(t, offer.Validate())

	offer.Bid.MaxAmountDivisor = 0
	require.ErrorIs(t, offer.Validate(), domain.ErrAssetZeroDivisor)

	offer = newOffer(1, 1, 1, 1, domain.Conditions{
		domain.ConditionSenderTimeout: {10, 1},
	})
	require.Error(t, offer.Validate())
}

func TestOfferCondition(t *testing.T) {
	offer := newOffer(1, 1, 1, 1, domain.Conditions{
		domain.ConditionSenderTimeout: {10, 20},
	})
	require.Equal(t, domain.Range{10, 20}, offer.Condition(domain.ConditionSenderTimeout))
	require.Equal(t, domain.Unbounded(), offer.Condition(domain.ConditionLockedTimeout))

	clone := offer.Clone()
	clone.Conditions[domain.ConditionSenderTimeout] = domain.Range{0, 0}
	require.Equal(t, domain.Range{10, 20}, offer.Condition(domain.ConditionSenderTimeout))
}

func TestConditionKeyText(t *testing.T) {
	for _, key := range []domain.ConditionKey{
		domain.ConditionCltvExpiryDelta,
		domain.ConditionSenderTimeout,
		domain.ConditionLockedTimeout,
	} {
		text, err := key.MarshalText()
		require.NoError(t, err)

		var parsed domain.ConditionKey
		require.NoError(t, parsed.UnmarshalText(text))
		require.Equal(t, key, parsed)
	}

	_, err := domain.ParseConditionKey("unknown")
	require.Error(t, err)
}
