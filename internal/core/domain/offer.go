package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tdex-network/fiatln-daemon/pkg/mathutil"
)

const (
	// NoLowerBound and NoUpperBound are the sentinels used for open ends of a
	// condition range.
	NoLowerBound int64 = math.MinInt64
	NoUpperBound int64 = math.MaxInt64
)

// ConditionKey identifies a numeric condition attached to an offer.
type ConditionKey int

const (
	ConditionCltvExpiryDelta ConditionKey = iota + 1
	ConditionSenderTimeout
	ConditionLockedTimeout
)

var conditionNames = map[ConditionKey]string{
	ConditionCltvExpiryDelta: "cltv_expiry_delta",
	ConditionSenderTimeout:   "sender_timeout",
	ConditionLockedTimeout:   "locked_timeout",
}

func (k ConditionKey) String() string {
	if name, ok := conditionNames[k]; ok {
		return name
	}
	return fmt.Sprintf("condition(%d)", int(k))
}

func (k ConditionKey) MarshalText() ([]byte, error) {
	if _, ok := conditionNames[k]; !ok {
		return nil, fmt.Errorf("unknown condition key %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *ConditionKey) UnmarshalText(text []byte) error {
	key, err := ParseConditionKey(string(text))
	if err != nil {
		return err
	}
	*k = key
	return nil
}

// ParseConditionKey returns the key for the given condition name.
func ParseConditionKey(name string) (ConditionKey, error) {
	for key, n := range conditionNames {
		if n == strings.ToLower(name) {
			return key, nil
		}
	}
	return 0, fmt.Errorf("unknown condition %q", name)
}

// Range is a closed interval [Min, Max].
type Range struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// Unbounded returns a range without lower and upper bounds.
func Unbounded() Range {
	return Range{NoLowerBound, NoUpperBound}
}

func (r Range) Overlaps(other Range) bool {
	return r.Min <= other.Max && other.Min <= r.Max
}

func (r Range) Contains(value int64) bool {
	return r.Min <= value && value <= r.Max
}

func (r Range) IsValid() bool {
	return r.Min <= r.Max
}

type Conditions map[ConditionKey]Range

// Clone returns a deep copy of the conditions.
func (c Conditions) Clone() Conditions {
	if c == nil {
		return nil
	}
	clone := make(Conditions, len(c))
	for k, v := range c {
		clone[k] = v
	}
	return clone
}

// Keys returns the condition keys in ascending order.
func (c Conditions) Keys() []ConditionKey {
	keys := make([]ConditionKey, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Asset is an amount of a given currency on a given exchange. The amount is
// expressed as the fraction MaxAmount/MaxAmountDivisor.
type Asset struct {
	MaxAmount        uint64 `json:"max_amount"`
	MaxAmountDivisor uint64 `json:"max_amount_divisor"`
	Currency         string `json:"currency"`
	Exchange         string `json:"exchange"`
}

func (a Asset) Validate() error {
	if a.MaxAmountDivisor == 0 {
		return ErrAssetZeroDivisor
	}
	if len(a.Currency) <= 0 {
		return ErrAssetMissingCurrency
	}
	if len(a.Exchange) <= 0 {
		return ErrAssetMissingExchange
	}
	return nil
}

func (a Asset) String() string {
	return fmt.Sprintf(
		"%d/%d %s@%s", a.MaxAmount, a.MaxAmountDivisor, a.Currency, a.Exchange,
	)
}

// Offer is the willingness to give the Bid asset in exchange for the Ask
// asset. The exchange rate is implied by the ratio between the two amounts.
type Offer struct {
	ID         int64      `json:"id"`
	Bid        Asset      `json:"bid"`
	Ask        Asset      `json:"ask"`
	Address    string     `json:"address"`
	Conditions Conditions `json:"conditions"`
}

func (o Offer) Validate() error {
	if err := o.Bid.Validate(); err != nil {
		return fmt.Errorf("invalid bid: %w", err)
	}
	if err := o.Ask.Validate(); err != nil {
		return fmt.Errorf("invalid ask: %w", err)
	}
	for k, r := range o.Conditions {
		if !r.IsValid() {
			return fmt.Errorf("invalid %s condition: min %d > max %d", k, r.Min, r.Max)
		}
	}
	return nil
}

// Condition returns the range for the given key, or an unbounded range if the
// offer does not constrain it.
func (o Offer) Condition(key ConditionKey) Range {
	if r, ok := o.Conditions[key]; ok {
		return r
	}
	return Unbounded()
}

// Clone returns a deep copy of the offer.
func (o Offer) Clone() Offer {
	clone := o
	clone.Conditions = o.Conditions.Clone()
	return clone
}

// Matches is the boolean form of VerifyMatches.
func (o Offer) Matches(other Offer) bool {
	return o.VerifyMatches(other) == nil
}

// VerifyMatches checks whether a trade between the two offers is possible:
// what one gives must be what the other wants, every condition present in
// both must overlap, and the combined rate must be acceptable to both parties.
// The check is symmetric and is evaluated with exact integer arithmetic.
func (o Offer) VerifyMatches(other Offer) error {
	if o.Bid.Currency != other.Ask.Currency {
		return newMatchError(
			CurrencyMismatch, "bid currency %s does not match counter ask currency %s",
			o.Bid.Currency, other.Ask.Currency,
		)
	}
	if o.Ask.Currency != other.Bid.Currency {
		return newMatchError(
			CurrencyMismatch, "ask currency %s does not match counter bid currency %s",
			o.Ask.Currency, other.Bid.Currency,
		)
	}
	if o.Bid.Exchange != other.Ask.Exchange {
		return newMatchError(
			ExchangeMismatch, "bid exchange %s does not match counter ask exchange %s",
			o.Bid.Exchange, other.Ask.Exchange,
		)
	}
	if o.Ask.Exchange != other.Bid.Exchange {
		return newMatchError(
			ExchangeMismatch, "ask exchange %s does not match counter bid exchange %s",
			o.Ask.Exchange, other.Bid.Exchange,
		)
	}

	for _, key := range o.Conditions.Keys() {
		otherRange, ok := other.Conditions[key]
		if !ok {
			continue
		}
		r := o.Conditions[key]
		if !r.Overlaps(otherRange) {
			return newMatchError(
				ConditionMismatch, "%s ranges [%d, %d] and [%d, %d] do not overlap",
				key, r.Min, r.Max, otherRange.Min, otherRange.Max,
			)
		}
	}

	// bid1/biddiv1 * bid2/biddiv2 >= ask1/askdiv1 * ask2/askdiv2, with the
	// divisors moved to the other side.
	lhs := mathutil.BigProduct(
		o.Bid.MaxAmount, other.Bid.MaxAmount,
		o.Ask.MaxAmountDivisor, other.Ask.MaxAmountDivisor,
	)
	rhs := mathutil.BigProduct(
		o.Ask.MaxAmount, other.Ask.MaxAmount,
		o.Bid.MaxAmountDivisor, other.Bid.MaxAmountDivisor,
	)
	if lhs.Cmp(rhs) < 0 {
		return newMatchError(RateMismatch, "combined rate is below one")
	}
	return nil
}
