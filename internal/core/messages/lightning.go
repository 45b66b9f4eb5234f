package messages

import "github.com/tdex-network/fiatln-daemon/internal/core/bus"

const (
	KindPayRequest      bus.Kind = "lightning.pay_request"
	KindPayResult       bus.Kind = "lightning.pay_result"
	KindIncomingPayment bus.Kind = "lightning.incoming_payment"
	KindFinishPayment   bus.Kind = "lightning.finish_payment"
	KindFailPayment     bus.Kind = "lightning.fail_payment"
)

// PayRequest asks the lightning node to pay Destination, locking the payment
// to PaymentHash. Amounts are in msat.
type PayRequest struct {
	OrderRef
	Destination           string
	OfferID               int64
	RecipientCryptoAmount int64
	MaxSenderCryptoAmount int64
	FiatAmount            int64
	PaymentHash           string
	MinCltvExpiryDelta    int64
}

func (PayRequest) Kind() bus.Kind { return KindPayRequest }

// PayResult carries the preimage of a successful payment, or an empty
// preimage if the payment failed.
type PayResult struct {
	OrderRef
	SenderCryptoAmount int64
	PaymentPreimage    string
}

func (PayResult) Kind() bus.Kind { return KindPayResult }

func (r PayResult) Failed() bool {
	return len(r.PaymentPreimage) <= 0
}

// IncomingPayment notifies an htlc held by the lightning node for one of our
// published offers.
type IncomingPayment struct {
	OfferID         int64
	CryptoAmount    int64
	FiatAmount      int64
	CltvExpiryDelta int64
	PaymentHash     string
}

func (IncomingPayment) Kind() bus.Kind { return KindIncomingPayment }

// FinishPayment settles a held incoming payment.
type FinishPayment struct {
	PaymentHash     string
	PaymentPreimage string
}

func (FinishPayment) Kind() bus.Kind { return KindFinishPayment }

// FailPayment rejects a held incoming payment.
type FailPayment struct {
	PaymentHash string
}

func (FailPayment) Kind() bus.Kind { return KindFailPayment }
