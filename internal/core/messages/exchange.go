package messages

import (
	"github.com/tdex-network/fiatln-daemon/internal/core/bus"
	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
)

const (
	KindStartReservation        bus.Kind = "exchange.start_reservation"
	KindStartReservationResult  bus.Kind = "exchange.start_reservation_result"
	KindSelfReport              bus.Kind = "exchange.self_report"
	KindSelfReportResult        bus.Kind = "exchange.self_report_result"
	KindCancelReservation       bus.Kind = "exchange.cancel_reservation"
	KindCancelReservationResult bus.Kind = "exchange.cancel_reservation_result"
	KindSendFunds               bus.Kind = "exchange.send_funds"
	KindSendFundsResult         bus.Kind = "exchange.send_funds_result"
	KindReceiveFunds            bus.Kind = "exchange.receive_funds"
	KindReceiveFundsResult      bus.Kind = "exchange.receive_funds_result"
	KindAddOffer                bus.Kind = "exchange.add_offer"
	KindAddOfferResult          bus.Kind = "exchange.add_offer_result"
	KindRemoveOffer             bus.Kind = "exchange.remove_offer"
	KindRemoveOfferResult       bus.Kind = "exchange.remove_offer_result"
	KindFindOffers              bus.Kind = "exchange.find_offers"
	KindFindOffersResult        bus.Kind = "exchange.find_offers_result"
	KindExchangeError           bus.Kind = "exchange.error"
)

// StartReservation asks the exchange to reserve fiat for an incoming
// lightning payment. Timeouts are in milliseconds and seconds respectively.
type StartReservation struct {
	OrderRef
	// IdempotencyKey is the same for every attempt of a reservation, so
	// that the exchange doesn't execute it twice.
	IdempotencyKey     string
	Amount             int64
	SenderTimeoutDelta int64
	LockedTimeoutDelta int64
	ReceiverPaysFee    bool
}

func (StartReservation) Kind() bus.Kind { return KindStartReservation }

// StartReservationResult carries the fiat amounts after exchange fees and the
// payment hash the lightning payment must be locked to.
type StartReservationResult struct {
	OrderRef
	SenderAmount   int64
	ReceiverAmount int64
	PaymentHash    string
}

func (StartReservationResult) Kind() bus.Kind { return KindStartReservationResult }

// SelfReport sends the transaction details the exchange requires before
// locking the buyer's funds.
type SelfReport struct {
	OrderRef
	Report map[string]string
}

func (SelfReport) Kind() bus.Kind { return KindSelfReport }

type SelfReportResult struct {
	OrderRef
}

func (SelfReportResult) Kind() bus.Kind { return KindSelfReportResult }

type CancelReservation struct {
	OrderRef
	PaymentHash string
}

func (CancelReservation) Kind() bus.Kind { return KindCancelReservation }

type CancelReservationResult struct {
	OrderRef
}

func (CancelReservationResult) Kind() bus.Kind { return KindCancelReservationResult }

// SendFunds locks fiat on the exchange for the given payment hash. The reply
// carries the preimage once the exchange has received it.
type SendFunds struct {
	OrderRef
	IdempotencyKey        string
	Amount                int64
	PaymentHash           string
	MaxLockedTimeoutDelta int64
	Report                map[string]string
}

func (SendFunds) Kind() bus.Kind { return KindSendFunds }

type SendFundsResult struct {
	OrderRef
	PaymentPreimage string
}

func (SendFundsResult) Kind() bus.Kind { return KindSendFundsResult }

// ReceiveFunds claims the reserved fiat by revealing the preimage.
type ReceiveFunds struct {
	OrderRef
	PaymentPreimage string
}

func (ReceiveFunds) Kind() bus.Kind { return KindReceiveFunds }

type ReceiveFundsResult struct {
	OrderRef
}

func (ReceiveFundsResult) Kind() bus.Kind { return KindReceiveFundsResult }

type AddOffer struct {
	OrderRef
	Offer domain.Offer
}

func (AddOffer) Kind() bus.Kind { return KindAddOffer }

type AddOfferResult struct {
	OrderRef
	OfferID int64
}

func (AddOfferResult) Kind() bus.Kind { return KindAddOfferResult }

type RemoveOffer struct {
	OrderRef
	OfferID int64
}

func (RemoveOffer) Kind() bus.Kind { return KindRemoveOffer }

type RemoveOfferResult struct {
	OrderRef
}

func (RemoveOfferResult) Kind() bus.Kind { return KindRemoveOfferResult }

// FindOffers asks for the published offers that may match Query.
type FindOffers struct {
	OrderRef
	Query domain.Offer
}

func (FindOffers) Kind() bus.Kind { return KindFindOffers }

type FindOffersResult struct {
	OrderRef
	Offers []domain.Offer
}

func (FindOffersResult) Kind() bus.Kind { return KindFindOffersResult }

// ExchangeError is the reply to any exchange request the exchange rejected.
type ExchangeError struct {
	OrderRef
	Reason string
}

func (ExchangeError) Kind() bus.Kind { return KindExchangeError }

func (e ExchangeError) Error() string {
	return "exchange error: " + e.Reason
}
