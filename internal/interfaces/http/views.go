package httpinterface

import (
	"math/big"
	"time"

	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
	"github.com/tdex-network/fiatln-daemon/internal/core/messages"
	"github.com/tdex-network/fiatln-daemon/pkg/mathutil"
)

type placeOrderRequest struct {
	LimitRate         string `json:"limit_rate" binding:"required"`
	LimitRateInverted bool   `json:"limit_rate_inverted"`
	Amount            string `json:"amount" binding:"required"`
	PerTxMaxAmount    string `json:"per_tx_max_amount"`
}

type placeOrderResponse struct {
	OrderID int64 `json:"order_id"`
}

type setConfigRequest struct {
	Values map[string]string `json:"values" binding:"required"`
}

type addWebhookRequest struct {
	Event    string `json:"event" binding:"required"`
	Endpoint string `json:"endpoint" binding:"required"`
	Secret   string `json:"secret"`
}

type addWebhookResponse struct {
	ID string `json:"id"`
}

// orderView is an order with amounts formatted as decimal strings.
type orderView struct {
	ID                int64             `json:"id"`
	Kind              string            `json:"kind"`
	Status            string            `json:"status"`
	Bid               string            `json:"bid"`
	Ask               string            `json:"ask"`
	LimitRate         string            `json:"limit_rate"`
	LimitRateInverted bool              `json:"limit_rate_inverted"`
	Amount            string            `json:"amount"`
	PerTxMaxAmount    string            `json:"per_tx_max_amount,omitempty"`
	RemoteOfferID     *int64            `json:"remote_offer_id,omitempty"`
	CreatedAt         string            `json:"created_at"`
	Transactions      []transactionView `json:"transactions"`
}

type transactionView struct {
	ID           int64  `json:"id"`
	Status       string `json:"status"`
	FiatAmount   string `json:"fiat_amount"`
	CryptoAmount string `json:"crypto_amount"`
	PaymentHash  string `json:"payment_hash,omitempty"`
}

func newOrderView(info messages.OrderInfo, settings domain.Settings) orderView {
	order := info.Order
	bidDivisor := settings.FiatDivisor
	if order.IsSell() {
		bidDivisor = settings.CryptoDivisor
	}

	view := orderView{
		ID:                order.ID,
		Kind:              order.Kind.String(),
		Status:            order.Status.String(),
		Bid:               order.Offer.Bid.Currency,
		Ask:               order.Offer.Ask.Currency,
		LimitRate:         mathutil.FormatUnits(new(big.Int).SetUint64(order.LimitRate), order.RateDivisor),
		LimitRateInverted: order.LimitRateInverted,
		Amount:            formatAmount(order.Amount, bidDivisor),
		RemoteOfferID:     order.RemoteOfferID,
		CreatedAt:         time.Unix(order.Timestamp, 0).UTC().Format(time.RFC3339),
		Transactions:      make([]transactionView, 0),
	}
	if order.PerTxMaxAmount > 0 {
		view.PerTxMaxAmount = formatAmount(order.PerTxMaxAmount, bidDivisor)
	}

	for _, tx := range info.BuyTransactions {
		view.Transactions = append(view.Transactions, transactionView{
			ID:           tx.ID,
			Status:       tx.Status.String(),
			FiatAmount:   formatAmount(tx.FiatAmount, settings.FiatDivisor),
			CryptoAmount: formatAmount(tx.CryptoAmount, settings.CryptoDivisor),
			PaymentHash:  tx.PaymentHash,
		})
	}
	for _, tx := range info.SellTransactions {
		view.Transactions = append(view.Transactions, transactionView{
			ID:           tx.ID,
			Status:       tx.Status.String(),
			FiatAmount:   formatAmount(tx.SellerFiatAmount, settings.FiatDivisor),
			CryptoAmount: formatAmount(tx.SellerCryptoAmount, settings.CryptoDivisor),
			PaymentHash:  tx.PaymentHash,
		})
	}
	return view
}

func formatAmount(amount int64, divisor uint64) string {
	return mathutil.FormatUnits(big.NewInt(amount), divisor)
}
