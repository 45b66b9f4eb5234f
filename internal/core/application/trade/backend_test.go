package trade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/fiatln-daemon/internal/core/bus"
	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
	"github.com/tdex-network/fiatln-daemon/internal/core/messages"
	"github.com/tdex-network/fiatln-daemon/internal/infrastructure/storage/db/inmemory"
)

func TestNewBackend(t *testing.T) {
	router := bus.NewRouter()

	tests := []struct {
		name string
		opts BackendOpts
	}{
		{
			name: "missing repo manager",
			opts: BackendOpts{Publisher: router, Settings: testSettings()},
		},
		{
			name: "missing publisher",
			opts: BackendOpts{RepoManager: inmemory.NewRepoManager(), Settings: testSettings()},
		},
		{
			name: "invalid settings",
			opts: BackendOpts{
				RepoManager: inmemory.NewRepoManager(),
				Publisher:   router,
				Settings:    domain.Settings{},
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			backend, err := NewBackend(tt.opts)
			require.Error(t, err)
			require.Nil(t, backend)
		})
	}
}

func TestBackendStartPublishesConfig(t *testing.T) {
	h := newHarness(t, nil)
	h.start()

	msgs := h.peer.recorded(messages.KindConfigChanged)
	require.Len(t, msgs, 1)
	require.Equal(t, domain.DefaultConfig(), msgs[0].(messages.ConfigChanged).Values)
}

func TestPlaceOrderErrors(t *testing.T) {
	tests := []struct {
		name         string
		disconnected bool
		limitRate    uint64
		amount       int64
		perTxMax     int64
		expectedCode messages.ErrorCode
	}{
		{"zero limit rate", false, 0, 1000, 0, messages.ErrorCodeInvalidParams},
		{"zero amount", false, 20, 0, 0, messages.ErrorCodeInvalidParams},
		{"negative per transaction max", false, 20, 1000, -1, messages.ErrorCodeInvalidParams},
		{"exchange not connected", true, 20, 1000, 0, messages.ErrorCodeNoConnection},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.connected.set(!tt.disconnected)
			h.start()

			reply := h.command(messages.PlaceSellOrder{PlaceOrder: messages.PlaceOrder{
				CommandRef:     newCommandRef(),
				LimitRate:      tt.limitRate,
				Amount:         tt.amount,
				PerTxMaxAmount: tt.perTxMax,
			}})
			cmdErr, ok := reply.(messages.CommandError)
			require.True(t, ok)
			require.Equal(t, tt.expectedCode, cmdErr.Code)

			orders, err := h.repoManager.OrderRepository().GetAllOrders(ctx)
			require.NoError(t, err)
			require.Empty(t, orders)
		})
	}
}

func TestListOrders(t *testing.T) {
	h := newHarness(t, nil)
	h.findOffersOnce(buyOffer(7, 2000, 1000))
	h.start()

	sellOrderID := h.placeOrder(domain.OrderKindSell, 19, 1234, 0)
	h.waitForSellTransaction(sellOrderID, domain.TxStatusFinished)
	buyOrderID := h.placeOrder(domain.OrderKindBuy, 20, 1000, 0)
	require.Greater(t, buyOrderID, sellOrderID)

	reply := h.command(messages.ListOrders{CommandRef: newCommandRef()})
	result, ok := reply.(messages.CommandResult)
	require.True(t, ok)

	infos := result.Payload.([]messages.OrderInfo)
	require.Len(t, infos, 2)
	require.Equal(t, sellOrderID, infos[0].Order.ID)
	require.Equal(t, domain.OrderKindSell, infos[0].Order.Kind)
	require.Len(t, infos[0].SellTransactions, 1)
	require.Empty(t, infos[0].BuyTransactions)
	require.Equal(t, buyOrderID, infos[1].Order.ID)
	require.Equal(t, domain.OrderKindBuy, infos[1].Order.Kind)
	require.Empty(t, infos[1].SellTransactions)
}

func TestCancelUnknownOrder(t *testing.T) {
	h := newHarness(t, nil)
	h.start()

	reply := h.command(messages.CancelOrder{CommandRef: newCommandRef(), OrderID: 42})
	cmdErr, ok := reply.(messages.CommandError)
	require.True(t, ok)
	require.Equal(t, messages.ErrorCodeNoSuchOrder, cmdErr.Code)
}

func TestConfigCommands(t *testing.T) {
	h := newHarness(t, nil)
	h.start()

	t.Run("unknown key", func(t *testing.T) {
		reply := h.command(messages.SetConfig{
			CommandRef: newCommandRef(),
			Values: map[string]string{
				domain.ConfigExchangeAPIKey: "key",
				"exchange.unknown":          "value",
			},
		})
		cmdErr, ok := reply.(messages.CommandError)
		require.True(t, ok)
		require.Equal(t, messages.ErrorCodeInvalidParams, cmdErr.Code)

		value, err := h.repoManager.ConfigRepository().GetConfigValue(
			ctx, domain.ConfigExchangeAPIKey,
		)
		require.NoError(t, err)
		require.Empty(t, value)
	})

	t.Run("set and get", func(t *testing.T) {
		values := map[string]string{
			domain.ConfigExchangeAPIKey:    "key",
			domain.ConfigExchangeAPISecret: "secret",
		}
		reply := h.command(messages.SetConfig{CommandRef: newCommandRef(), Values: values})
		result, ok := reply.(messages.CommandResult)
		require.True(t, ok)

		cfg := result.Payload.(map[string]string)
		require.Equal(t, "key", cfg[domain.ConfigExchangeAPIKey])
		require.Equal(t, "secret", cfg[domain.ConfigExchangeAPISecret])
		require.Equal(t, domain.ConfigDefaults[domain.ConfigExchangeURL], cfg[domain.ConfigExchangeURL])

		changes := h.peer.recorded(messages.KindConfigChanged)
		require.Len(t, changes, 2)
		require.Equal(t, cfg, changes[1].(messages.ConfigChanged).Values)

		reply = h.command(messages.GetConfig{CommandRef: newCommandRef()})
		result, ok = reply.(messages.CommandResult)
		require.True(t, ok)
		require.Equal(t, cfg, result.Payload)
	})
}

func TestIncomingPaymentForUnknownOffer(t *testing.T) {
	h := newHarness(t, nil)
	h.start()

	require.NoError(t, h.router.Handle(incomingPayment(99, 200, 400, 40)))

	fail := h.waitForFailPayments(1)
	require.Equal(t, paymentHash, fail.PaymentHash)
}

func TestBackendStopKeepsOrdersOpen(t *testing.T) {
	repoManager := inmemory.NewRepoManager()
	h := newHarness(t, repoManager)
	h.start()

	buyOrderID := h.placeOrder(domain.OrderKindBuy, 20, 1000, 0)
	sellOrderID := h.placeOrder(domain.OrderKindSell, 19, 1234, 0)
	h.waitForOffer(buyOrderID)

	stopped := make(chan struct{})
	go func() {
		h.backend.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(waitFor):
		t.Fatal("backend did not stop")
	}

	require.Equal(t, domain.OrderStatusActive, h.order(buyOrderID).Status)
	require.Equal(t, domain.OrderStatusActive, h.order(sellOrderID).Status)

	restarted := newHarness(t, repoManager)
	restarted.start()
	_, ok := restarted.backend.Task(buyOrderID)
	require.True(t, ok)
	_, ok = restarted.backend.Task(sellOrderID)
	require.True(t, ok)
}

func TestConcurrentOrders(t *testing.T) {
	h := newHarness(t, nil)
	h.peer.on(messages.KindFindOffers, func(msg bus.Message) bus.Message {
		return messages.FindOffersResult{
			OrderRef: ref(msg),
			Offers:   []domain.Offer{buyOffer(7, 2000, 1000)},
		}
	})
	h.start()

	orderIDs := make([]int64, 0, 3)
	for i := 0; i < 3; i++ {
		orderIDs = append(orderIDs, h.placeOrder(domain.OrderKindSell, 19, 2500, 0))
	}

	for _, orderID := range orderIDs {
		h.waitForOrderStatus(orderID, domain.OrderStatusCompleted)
		txs := h.sellTransactions(orderID)
		require.Len(t, txs, 3)
		for _, tx := range txs {
			require.Equal(t, domain.TxStatusFinished, tx.Status)
		}
	}
}
