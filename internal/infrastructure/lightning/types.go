package lightning

const (
	payPath    = "/v1/pay"
	streamPath = "/v1/htlcs/stream"
)

func settlePath(paymentHash string) string {
	return "/v1/htlcs/" + paymentHash + "/settle"
}

func failPath(paymentHash string) string {
	return "/v1/htlcs/" + paymentHash + "/fail"
}

// Amounts are in msat.
type payRequest struct {
	Destination        string `json:"destination"`
	OfferID            int64  `json:"offer_id"`
	Amount             int64  `json:"amount_msat"`
	MaxAmount          int64  `json:"max_amount_msat"`
	FiatAmount         int64  `json:"fiat_amount"`
	PaymentHash        string `json:"payment_hash"`
	MinCltvExpiryDelta int64  `json:"min_cltv_expiry_delta"`
}

// payResponse carries an empty preimage if the payment failed.
type payResponse struct {
	SenderAmount    int64  `json:"sender_amount_msat"`
	PaymentPreimage string `json:"payment_preimage"`
}

type settleRequest struct {
	PaymentPreimage string `json:"payment_preimage"`
}

// htlc is a held incoming payment notified on the stream.
type htlc struct {
	OfferID         int64  `json:"offer_id"`
	Amount          int64  `json:"amount_msat"`
	FiatAmount      int64  `json:"fiat_amount"`
	CltvExpiryDelta int64  `json:"cltv_expiry_delta"`
	PaymentHash     string `json:"payment_hash"`
}
