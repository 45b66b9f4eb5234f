package domain

import (
	"github.com/tdex-network/fiatln-daemon/pkg/mathutil"
)

type OrderKind int

const (
	OrderKindBuy OrderKind = iota + 1
	OrderKindSell
)

func (k OrderKind) String() string {
	switch k {
	case OrderKindBuy:
		return "buy"
	case OrderKindSell:
		return "sell"
	default:
		return "unknown"
	}
}

type OrderStatus int

const (
	OrderStatusActive OrderStatus = iota
	OrderStatusCancelRequested
	OrderStatusCanceled
	OrderStatusCompleted
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusActive:
		return "active"
	case OrderStatusCancelRequested:
		return "cancel_requested"
	case OrderStatusCanceled:
		return "canceled"
	case OrderStatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Order is the user's standing intent to buy or sell crypto for fiat at a
// limit rate. A buy order gives fiat and wants crypto, a sell order gives
// crypto and wants fiat.
//
// Amount is the remaining quantity of the bid asset in base units. LimitRate
// is expressed in fiat per crypto, scaled by RateDivisor, unless
// LimitRateInverted is set, in which case it's crypto per fiat.
type Order struct {
	ID                int64
	Kind              OrderKind
	Offer             Offer
	LimitRate         uint64
	RateDivisor       uint64
	LimitRateInverted bool
	Amount            int64
	PerTxMaxAmount    int64
	Status            OrderStatus
	RemoteOfferID     *int64
	Timestamp         int64
}

// NewBuyOrder returns a new active order giving fiat in exchange for crypto.
func NewBuyOrder(
	settings Settings, limitRate uint64, inverted bool, amount, perTxMaxAmount int64,
) (*Order, error) {
	offer := Offer{
		Bid:        settings.FiatAsset(0),
		Ask:        settings.CryptoAsset(0),
		Address:    settings.NodeAddress,
		Conditions: settings.BuyConditions.Clone(),
	}
	return newOrder(
		OrderKindBuy, offer, settings.RateDivisor, limitRate, inverted,
		amount, perTxMaxAmount,
	)
}

// NewSellOrder returns a new active order giving crypto in exchange for fiat.
func NewSellOrder(
	settings Settings, limitRate uint64, inverted bool, amount, perTxMaxAmount int64,
) (*Order, error) {
	offer := Offer{
		Bid:        settings.CryptoAsset(0),
		Ask:        settings.FiatAsset(0),
		Address:    settings.NodeAddress,
		Conditions: settings.SellConditions.Clone(),
	}
	return newOrder(
		OrderKindSell, offer, settings.RateDivisor, limitRate, inverted,
		amount, perTxMaxAmount,
	)
}

func newOrder(
	kind OrderKind, offer Offer, rateDivisor, limitRate uint64, inverted bool,
	amount, perTxMaxAmount int64,
) (*Order, error) {
	if limitRate == 0 {
		return nil, ErrOrderInvalidLimitRate
	}
	if amount <= 0 {
		return nil, ErrOrderInvalidAmount
	}
	if perTxMaxAmount < 0 {
		return nil, ErrOrderInvalidPerTxMaxAmount
	}
	if rateDivisor == 0 {
		return nil, ErrInvalidSettings
	}

	o := &Order{
		Kind:              kind,
		Offer:             offer,
		LimitRate:         limitRate,
		RateDivisor:       rateDivisor,
		LimitRateInverted: inverted,
		PerTxMaxAmount:    perTxMaxAmount,
		Status:            OrderStatusActive,
	}
	o.SetAmount(amount)
	return o, nil
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() Order {
	clone := *o
	clone.Offer = o.Offer.Clone()
	if o.RemoteOfferID != nil {
		id := *o.RemoteOfferID
		clone.RemoteOfferID = &id
	}
	return clone
}

func (o *Order) IsBuy() bool {
	return o.Kind == OrderKindBuy
}

func (o *Order) IsSell() bool {
	return o.Kind == OrderKindSell
}

func (o *Order) IsActive() bool {
	return o.Status == OrderStatusActive
}

func (o *Order) IsClosed() bool {
	return o.Status == OrderStatusCanceled || o.Status == OrderStatusCompleted
}

// CanTrade tells whether the order is still looking for new trades.
func (o *Order) CanTrade() bool {
	return o.IsActive() && o.Amount > 0
}

// SetAmount updates the remaining amount, clamping it at zero, and
// recomputes the amounts of the order's offer.
func (o *Order) SetAmount(amount int64) {
	if amount < 0 {
		amount = 0
	}
	o.Amount = amount
	o.updateOfferAmounts()
}

// TradeableAmount is the bid amount available for a single trade.
func (o *Order) TradeableAmount() int64 {
	if o.PerTxMaxAmount > 0 && o.Amount > o.PerTxMaxAmount {
		return o.PerTxMaxAmount
	}
	return o.Amount
}

// RequestCancel moves an active order to CancelRequested. It returns false if
// the order was already being canceled.
func (o *Order) RequestCancel() (bool, error) {
	switch o.Status {
	case OrderStatusActive:
		o.Status = OrderStatusCancelRequested
		return true, nil
	case OrderStatusCancelRequested:
		return false, nil
	default:
		return false, ErrOrderNotActive
	}
}

// Close moves the order to its terminal status: Canceled if a cancellation
// was requested, Completed otherwise.
func (o *Order) Close() {
	if o.IsClosed() {
		return
	}
	if o.Status == OrderStatusCancelRequested {
		o.Status = OrderStatusCanceled
		return
	}
	o.Status = OrderStatusCompleted
}

// RateTerms returns the multiplier and divider that convert an amount of
// whole bid units into whole ask units.
func (o *Order) RateTerms() (uint64, uint64) {
	// A buy order wants crypto per fiat, a sell order wants fiat per crypto.
	if o.IsBuy() != o.LimitRateInverted {
		return o.RateDivisor, o.LimitRate
	}
	return o.LimitRate, o.RateDivisor
}

func (o *Order) updateOfferAmounts() {
	amount := uint64(o.TradeableAmount())
	o.Offer.Bid.MaxAmount = amount

	mul, div := o.RateTerms()
	num := mathutil.BigProduct(amount, mul)
	den := mathutil.BigProduct(o.Offer.Bid.divisorOrOne(), div)
	// Rounding up the ask only ever makes the order more demanding.
	o.Offer.Ask.MaxAmount, o.Offer.Ask.MaxAmountDivisor = mathutil.ReduceFraction(
		num, den, true,
	)
}

func (a Asset) divisorOrOne() uint64 {
	if a.MaxAmountDivisor == 0 {
		return 1
	}
	return a.MaxAmountDivisor
}
