package pubsub

import (
	"math/big"
	"time"

	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
	"github.com/tdex-network/fiatln-daemon/pkg/mathutil"
)

func getOrderPayload(order domain.Order, settings domain.Settings) map[string]interface{} {
	bidDivisor := settings.FiatDivisor
	if order.IsSell() {
		bidDivisor = settings.CryptoDivisor
	}
	payload := map[string]interface{}{
		"id":         order.ID,
		"kind":       order.Kind.String(),
		"status":     order.Status.String(),
		"limit_rate": mathutil.FormatUnits(new(big.Int).SetUint64(order.LimitRate), order.RateDivisor),
		"amount":     formatAmount(order.Amount, bidDivisor),
		"bid":        order.Offer.Bid.Currency,
		"ask":        order.Offer.Ask.Currency,
		"created_at": time.Unix(order.Timestamp, 0).Format(time.RFC3339),
	}
	if order.LimitRateInverted {
		payload["limit_rate_inverted"] = true
	}
	return payload
}

func getBuyTransactionPayload(
	tx domain.BuyTransaction, settings domain.Settings,
) map[string]interface{} {
	return map[string]interface{}{
		"id":            tx.ID,
		"status":        tx.Status.String(),
		"fiat_amount":   formatAmount(tx.FiatAmount, settings.FiatDivisor),
		"crypto_amount": formatAmount(tx.CryptoAmount, settings.CryptoDivisor),
		"payment_hash":  tx.PaymentHash,
	}
}

func getSellTransactionPayload(
	tx domain.SellTransaction, settings domain.Settings,
) map[string]interface{} {
	return map[string]interface{}{
		"id":            tx.ID,
		"status":        tx.Status.String(),
		"fiat_amount":   formatAmount(tx.SellerFiatAmount, settings.FiatDivisor),
		"crypto_amount": formatAmount(tx.SellerCryptoAmount, settings.CryptoDivisor),
		"payment_hash":  tx.PaymentHash,
	}
}

func formatAmount(amount int64, divisor uint64) string {
	return mathutil.FormatUnits(big.NewInt(amount), divisor)
}
