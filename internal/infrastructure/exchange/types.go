package exchange

import "github.com/tdex-network/fiatln-daemon/internal/core/domain"

const (
	statusPath       = "/v1/status"
	reservationsPath = "/v1/reservations"
	selfReportPath   = "/v1/self_report"
	sendFundsPath    = "/v1/funds/send"
	receiveFundsPath = "/v1/funds/receive"
	offersPath       = "/v1/offers"
	findOffersPath   = "/v1/offers/find"
)

func cancelReservationPath(paymentHash string) string {
	return reservationsPath + "/" + paymentHash + "/cancel"
}

type startReservationRequest struct {
	IdempotencyKey     string `json:"idempotency_key"`
	Amount             int64  `json:"amount"`
	SenderTimeoutDelta int64  `json:"sender_timeout_delta_ms"`
	LockedTimeoutDelta int64  `json:"locked_timeout_delta_s"`
	ReceiverPaysFee    bool   `json:"receiver_pays_fee"`
}

type startReservationResponse struct {
	SenderAmount   int64  `json:"sender_amount"`
	ReceiverAmount int64  `json:"receiver_amount"`
	PaymentHash    string `json:"payment_hash"`
}

type selfReportRequest struct {
	Report map[string]string `json:"report"`
}

type sendFundsRequest struct {
	IdempotencyKey        string            `json:"idempotency_key"`
	Amount                int64             `json:"amount"`
	PaymentHash           string            `json:"payment_hash"`
	MaxLockedTimeoutDelta int64             `json:"max_locked_timeout_delta_s"`
	Report                map[string]string `json:"report"`
}

type sendFundsResponse struct {
	PaymentPreimage string `json:"payment_preimage"`
}

type receiveFundsRequest struct {
	PaymentPreimage string `json:"payment_preimage"`
}

type addOfferRequest struct {
	Offer domain.Offer `json:"offer"`
}

type addOfferResponse struct {
	OfferID int64 `json:"offer_id"`
}

type findOffersRequest struct {
	Query domain.Offer `json:"query"`
}

type findOffersResponse struct {
	Offers []domain.Offer `json:"offers"`
}
