package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAssetZeroDivisor ...
	ErrAssetZeroDivisor = errors.New("asset amount divisor must be positive")
	// ErrAssetMissingCurrency ...
	ErrAssetMissingCurrency = errors.New("asset currency must not be empty")
	// ErrAssetMissingExchange ...
	ErrAssetMissingExchange = errors.New("asset exchange must not be empty")

	// ErrOrderInvalidLimitRate ...
	ErrOrderInvalidLimitRate = errors.New("limit rate must be positive")
	// ErrOrderInvalidAmount ...
	ErrOrderInvalidAmount = errors.New("order amount must be positive")
	// ErrOrderInvalidPerTxMaxAmount ...
	ErrOrderInvalidPerTxMaxAmount = errors.New("per-transaction max amount must not be negative")
	// ErrOrderNotFound is returned by repositories when an order is unknown.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderNotActive is returned when canceling an order already closed.
	ErrOrderNotActive = errors.New("order is not active")

	// ErrTransactionNotFound is returned by repositories when a transaction is
	// unknown.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrTransactionPending is returned when adding a transaction to an order
	// that already has one in progress.
	ErrTransactionPending = errors.New("order already has a transaction in progress")
	// ErrInvalidTransition is returned when a status change is not allowed from
	// the current transaction status.
	ErrInvalidTransition = errors.New("invalid transaction status transition")
	// ErrPreimageMismatch is returned when a preimage does not hash to the
	// expected payment hash.
	ErrPreimageMismatch = errors.New("payment preimage does not match payment hash")

	// ErrCounterOfferNotFound ...
	ErrCounterOfferNotFound = errors.New("counter offer not found")

	// ErrUnknownConfigKey ...
	ErrUnknownConfigKey = errors.New("unknown config key")

	// ErrInvalidSettings ...
	ErrInvalidSettings = errors.New("invalid settings")
)

// MatchErrorKind classifies why two offers do not match.
type MatchErrorKind int

const (
	CurrencyMismatch MatchErrorKind = iota + 1
	ExchangeMismatch
	ConditionMismatch
	RateMismatch
)

func (k MatchErrorKind) String() string {
	switch k {
	case CurrencyMismatch:
		return "currency mismatch"
	case ExchangeMismatch:
		return "exchange mismatch"
	case ConditionMismatch:
		return "condition mismatch"
	case RateMismatch:
		return "rate mismatch"
	default:
		return "unknown mismatch"
	}
}

var (
	ErrCurrencyMismatch  = &MatchError{Kind: CurrencyMismatch}
	ErrExchangeMismatch  = &MatchError{Kind: ExchangeMismatch}
	ErrConditionMismatch = &MatchError{Kind: ConditionMismatch}
	ErrRateMismatch      = &MatchError{Kind: RateMismatch}
)

// MatchError is returned by Offer.VerifyMatches. It can be compared with
// errors.Is against the Err*Mismatch values, that match by kind only.
type MatchError struct {
	Kind   MatchErrorKind
	Reason string
}

func newMatchError(kind MatchErrorKind, format string, a ...interface{}) *MatchError {
	return &MatchError{kind, fmt.Sprintf(format, a...)}
}

func (e *MatchError) Error() string {
	if len(e.Reason) <= 0 {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *MatchError) Is(target error) bool {
	t, ok := target.(*MatchError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}
