package db_test

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
	"github.com/tdex-network/fiatln-daemon/internal/core/ports"
	"github.com/thanhpk/randstr"
)

func makeRandomBuyOrder(t *testing.T) *domain.Order {
	order, err := domain.NewBuyOrder(
		domain.DefaultSettings(), randomUint64InRange(1, 1<<62), false,
		int64(randomIntInRange(1, 1_000_000)), 0,
	)
	require.NoError(t, err)
	order.Timestamp = randomTimestamp()
	return order
}

func makeRandomSellOrder(t *testing.T) *domain.Order {
	order, err := domain.NewSellOrder(
		domain.DefaultSettings(), randomUint64InRange(1, 1<<62), true,
		int64(randomIntInRange(1, 1_000_000)), int64(randomIntInRange(1, 1000)),
	)
	require.NoError(t, err)
	order.Timestamp = randomTimestamp()
	return order
}

func makeRandomOffer() domain.Offer {
	settings := domain.DefaultSettings()
	return domain.Offer{
		ID:      int64(randomIntInRange(1, 1_000_000)),
		Bid:     settings.FiatAsset(randomUint64InRange(1, 1<<40)),
		Ask:     settings.CryptoAsset(randomUint64InRange(1, 1<<40)),
		Address: randstr.Hex(33),
		Conditions: domain.Conditions{
			domain.ConditionCltvExpiryDelta: {Min: 10, Max: int64(randomIntInRange(10, 200))},
			domain.ConditionLockedTimeout:   {Min: 0, Max: int64(randomIntInRange(1, 3600))},
		},
	}
}

func makeRandomBuyTransaction(orderID int64) *domain.BuyTransaction {
	return &domain.BuyTransaction{
		BuyOrderID:   orderID,
		Status:       domain.TxStatusInitial,
		FiatAmount:   int64(randomIntInRange(1, 1_000_000)),
		CryptoAmount: int64(randomIntInRange(1, 1_000_000)),
		PaymentHash:  randomHex(32),
	}
}

func makeRandomSellTransaction(orderID, counterOfferID int64) *domain.SellTransaction {
	return &domain.SellTransaction{
		SellOrderID:        orderID,
		CounterOfferID:     counterOfferID,
		Status:             domain.TxStatusInitial,
		BuyerFiatAmount:    int64(randomIntInRange(1, 1_000_000)),
		SellerFiatAmount:   int64(randomIntInRange(1, 1_000_000)),
		BuyerCryptoAmount:  int64(randomIntInRange(1, 1_000_000)),
		SellerCryptoAmount: int64(randomIntInRange(1, 1_000_000)),
		SenderTimeoutDelta: 2000,
		LockedTimeoutDelta: 3600,
		CltvExpiryDelta:    12,
	}
}

// addRandomOrders stores a buy and a sell order.
func addRandomOrders(t *testing.T, repoManager ports.RepoManager) (*domain.Order, *domain.Order) {
	buyOrder := makeRandomBuyOrder(t)
	sellOrder := makeRandomSellOrder(t)
	require.NoError(t, repoManager.OrderRepository().AddOrder(ctx, buyOrder))
	require.NoError(t, repoManager.OrderRepository().AddOrder(ctx, sellOrder))
	return buyOrder, sellOrder
}

func randomTimestamp() int64 {
	return int64(randomIntInRange(1000000000, 1662688000))
}

func randomHex(len int) string {
	return hex.EncodeToString(randomBytes(len))
}

func randomBytes(len int) []byte {
	b := make([]byte, len)
	//nolint
	rand.Read(b)
	return b
}

func randomIntInRange(min, max int) int {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(max-min)))
	return int(n.Int64()) + min
}

func randomUint64InRange(min, max uint64) uint64 {
	n, _ := rand.Int(rand.Reader, new(big.Int).SetUint64(max-min))
	return n.Uint64() + min
}
