package trade

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/fiatln-daemon/internal/core/bus"
	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
	"github.com/tdex-network/fiatln-daemon/internal/core/messages"
	"github.com/tdex-network/fiatln-daemon/internal/core/ports"
	"github.com/tdex-network/fiatln-daemon/internal/infrastructure/storage/db/inmemory"
)

const (
	waitFor = 3 * time.Second
	tick    = 5 * time.Millisecond
)

var (
	ctx = context.Background()

	preimage    = hex.EncodeToString([]byte("00112233445566778899aabbccddeeff"))
	paymentHash = hashOf(preimage)
)

func hashOf(preimage string) string {
	buf, _ := hex.DecodeString(preimage)
	h := sha256.Sum256(buf)
	return hex.EncodeToString(h[:])
}

// testSettings use unit divisors so that amounts read as plain numbers.
// Limit rates are scaled by 10.
func testSettings() domain.Settings {
	s := domain.DefaultSettings()
	s.CryptoDivisor = 1
	s.FiatDivisor = 1
	s.RateDivisor = 10
	s.NodeAddress = "our-node"
	s.OfferSearchInterval = 10 * time.Millisecond
	return s
}

type responder func(msg bus.Message) bus.Message

// fakePeer plays the exchange and the lightning node. It records every
// message it gets and answers the requests with the configured responders.
type fakePeer struct {
	*bus.Handler
	router *bus.Router

	lock       sync.Mutex
	received   []bus.Message
	responders map[bus.Kind]responder
	offerID    int64
}

func newFakePeer(t *testing.T, router *bus.Router) *fakePeer {
	p := &fakePeer{
		Handler:    bus.NewHandler(),
		router:     router,
		responders: make(map[bus.Kind]responder),
	}
	for _, kind := range []bus.Kind{
		messages.KindStartReservation,
		messages.KindSelfReport,
		messages.KindCancelReservation,
		messages.KindSendFunds,
		messages.KindReceiveFunds,
		messages.KindAddOffer,
		messages.KindRemoveOffer,
		messages.KindFindOffers,
		messages.KindPayRequest,
		messages.KindFinishPayment,
		messages.KindFailPayment,
		messages.KindCommandResult,
		messages.KindCommandError,
		messages.KindConfigChanged,
	} {
		require.NoError(t, p.Register(kind, p.handle))
	}

	p.on(messages.KindAddOffer, func(msg bus.Message) bus.Message {
		p.lock.Lock()
		p.offerID++
		id := p.offerID
		p.lock.Unlock()
		return messages.AddOfferResult{OrderRef: ref(msg), OfferID: id}
	})
	p.on(messages.KindRemoveOffer, func(msg bus.Message) bus.Message {
		return messages.RemoveOfferResult{OrderRef: ref(msg)}
	})
	p.on(messages.KindFindOffers, func(msg bus.Message) bus.Message {
		return messages.FindOffersResult{OrderRef: ref(msg)}
	})
	p.on(messages.KindStartReservation, func(msg bus.Message) bus.Message {
		req := msg.(messages.StartReservation)
		return messages.StartReservationResult{
			OrderRef:       req.OrderRef,
			SenderAmount:   req.Amount,
			ReceiverAmount: req.Amount,
			PaymentHash:    paymentHash,
		}
	})
	p.on(messages.KindSelfReport, func(msg bus.Message) bus.Message {
		return messages.SelfReportResult{OrderRef: ref(msg)}
	})
	p.on(messages.KindCancelReservation, func(msg bus.Message) bus.Message {
		return messages.CancelReservationResult{OrderRef: ref(msg)}
	})
	p.on(messages.KindPayRequest, func(msg bus.Message) bus.Message {
		req := msg.(messages.PayRequest)
		return messages.PayResult{
			OrderRef:           req.OrderRef,
			SenderCryptoAmount: req.RecipientCryptoAmount,
			PaymentPreimage:    preimage,
		}
	})
	p.on(messages.KindReceiveFunds, func(msg bus.Message) bus.Message {
		return messages.ReceiveFundsResult{OrderRef: ref(msg)}
	})
	p.on(messages.KindSendFunds, func(msg bus.Message) bus.Message {
		return messages.SendFundsResult{OrderRef: ref(msg), PaymentPreimage: preimage}
	})
	return p
}

func ref(msg bus.Message) messages.OrderRef {
	return messages.OrderRef{OrderID: msg.(messages.Request).LocalOrderID()}
}

func (p *fakePeer) on(kind bus.Kind, fn responder) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.responders[kind] = fn
}

func (p *fakePeer) handle(msg bus.Message) {
	p.lock.Lock()
	p.received = append(p.received, msg)
	fn := p.responders[msg.Kind()]
	p.lock.Unlock()

	if fn == nil {
		return
	}
	if reply := fn(msg); reply != nil {
		go p.router.Handle(reply)
	}
}

func (p *fakePeer) recorded(kinds ...bus.Kind) []bus.Message {
	p.lock.Lock()
	defer p.lock.Unlock()

	if len(kinds) <= 0 {
		return append([]bus.Message{}, p.received...)
	}
	filtered := make([]bus.Message, 0)
	for _, msg := range p.received {
		for _, kind := range kinds {
			if msg.Kind() == kind {
				filtered = append(filtered, msg)
			}
		}
	}
	return filtered
}

func (p *fakePeer) count(kind bus.Kind) int {
	return len(p.recorded(kind))
}

type harness struct {
	t           *testing.T
	router      *bus.Router
	peer        *fakePeer
	repoManager ports.RepoManager
	backend     *Backend
	connected   *connectionStatus
}

type connectionStatus struct {
	lock      sync.Mutex
	connected bool
}

func (c *connectionStatus) IsConnected() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.connected
}

func (c *connectionStatus) set(connected bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.connected = connected
}

// newHarness wires a backend and a fake peer on a new router. The backend is
// not started, so that the test can configure the peer first.
func newHarness(t *testing.T, repoManager ports.RepoManager) *harness {
	if repoManager == nil {
		repoManager = inmemory.NewRepoManager()
	}
	router := bus.NewRouter()
	peer := newFakePeer(t, router)
	connected := &connectionStatus{connected: true}

	backend, err := NewBackend(BackendOpts{
		RepoManager:      repoManager,
		Publisher:        router,
		ConnectionStatus: connected,
		Settings:         testSettings(),
		RetryInterval:    10 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, router.AddHandler(backend))
	require.NoError(t, router.AddHandler(peer))

	return &harness{t, router, peer, repoManager, backend, connected}
}

func (h *harness) start() {
	require.NoError(h.t, h.backend.Start(ctx))
	h.router.StartMessaging()
	h.t.Cleanup(h.backend.Stop)
}

func (h *harness) command(cmd messages.Command) bus.Message {
	require.NoError(h.t, h.router.Handle(cmd))

	for _, msg := range h.peer.recorded(messages.KindCommandResult, messages.KindCommandError) {
		switch m := msg.(type) {
		case messages.CommandResult:
			if m.ID() == cmd.ID() {
				return m
			}
		case messages.CommandError:
			if m.ID() == cmd.ID() {
				return m
			}
		}
	}
	h.t.Fatalf("no reply to command %s", cmd.Kind())
	return nil
}

func newCommandRef() messages.CommandRef {
	return messages.CommandRef{CommandID: uuid.New().String()}
}

func (h *harness) placeOrder(kind domain.OrderKind, limitRate uint64, amount, perTxMax int64) int64 {
	place := messages.PlaceOrder{
		CommandRef:     newCommandRef(),
		LimitRate:      limitRate,
		Amount:         amount,
		PerTxMaxAmount: perTxMax,
	}

	var reply bus.Message
	if kind == domain.OrderKindBuy {
		reply = h.command(messages.PlaceBuyOrder{PlaceOrder: place})
	} else {
		reply = h.command(messages.PlaceSellOrder{PlaceOrder: place})
	}
	result, ok := reply.(messages.CommandResult)
	require.True(h.t, ok, "unexpected reply %+v", reply)
	return result.Payload.(messages.PlaceOrderResult).OrderID
}

func (h *harness) order(id int64) domain.Order {
	order, err := h.repoManager.OrderRepository().GetOrder(ctx, id)
	require.NoError(h.t, err)
	return *order
}

func (h *harness) waitForOrderStatus(id int64, status domain.OrderStatus) {
	require.Eventually(h.t, func() bool {
		return h.order(id).Status == status
	}, waitFor, tick)
}

func (h *harness) sellTransactions(orderID int64) []domain.SellTransaction {
	txs, err := h.repoManager.TransactionRepository().GetSellTransactionsForOrder(ctx, orderID)
	require.NoError(h.t, err)
	return txs
}

func (h *harness) buyTransactions(orderID int64) []domain.BuyTransaction {
	txs, err := h.repoManager.TransactionRepository().GetBuyTransactionsForOrder(ctx, orderID)
	require.NoError(h.t, err)
	return txs
}

func (h *harness) waitForSellTransaction(
	orderID int64, status domain.TransactionStatus,
) domain.SellTransaction {
	var tx domain.SellTransaction
	require.Eventually(h.t, func() bool {
		txs := h.sellTransactions(orderID)
		if len(txs) <= 0 {
			return false
		}
		tx = txs[len(txs)-1]
		return tx.Status == status
	}, waitFor, tick)
	return tx
}

func (h *harness) waitForBuyTransaction(
	orderID int64, status domain.TransactionStatus,
) domain.BuyTransaction {
	var tx domain.BuyTransaction
	require.Eventually(h.t, func() bool {
		txs := h.buyTransactions(orderID)
		if len(txs) <= 0 {
			return false
		}
		tx = txs[len(txs)-1]
		return tx.Status == status
	}, waitFor, tick)
	return tx
}

// waitForOffer waits for the buy order to publish its offer and returns its
// remote id.
func (h *harness) waitForOffer(orderID int64) int64 {
	var offerID int64
	require.Eventually(h.t, func() bool {
		task, ok := h.backend.Task(orderID)
		if !ok {
			return false
		}
		offerID, ok = task.RemoteOfferID()
		return ok
	}, waitFor, tick)
	return offerID
}

// findOffersOnce makes the fake exchange return the given offers to the first
// search only.
func (h *harness) findOffersOnce(offers ...domain.Offer) {
	var once sync.Once
	h.peer.on(messages.KindFindOffers, func(msg bus.Message) bus.Message {
		result := messages.FindOffersResult{OrderRef: ref(msg)}
		once.Do(func() { result.Offers = offers })
		return result
	})
}

// buyOffer returns a remote offer giving fiat for crypto.
func buyOffer(id int64, fiat, crypto uint64) domain.Offer {
	s := testSettings()
	return domain.Offer{
		ID:      id,
		Bid:     s.FiatAsset(fiat),
		Ask:     s.CryptoAsset(crypto),
		Address: "buyer-node",
	}
}

func timeout() <-chan time.Time {
	return time.After(waitFor)
}

// ctxRepoManager fails the writes made with a canceled context, like the
// postgres repo manager does.
type ctxRepoManager struct {
	ports.RepoManager
}

func (r ctxRepoManager) RunTransaction(
	ctx context.Context, readOnly bool, handler func(ctx context.Context) error,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.RepoManager.RunTransaction(ctx, readOnly, handler)
}

func (r ctxRepoManager) OrderRepository() domain.OrderRepository {
	return ctxOrderRepository{r.RepoManager.OrderRepository()}
}

func (r ctxRepoManager) TransactionRepository() domain.TransactionRepository {
	return ctxTransactionRepository{r.RepoManager.TransactionRepository()}
}

type ctxOrderRepository struct {
	domain.OrderRepository
}

func (r ctxOrderRepository) UpdateOrder(
	ctx context.Context, id int64, updateFn func(o *domain.Order) (*domain.Order, error),
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.OrderRepository.UpdateOrder(ctx, id, updateFn)
}

type ctxTransactionRepository struct {
	domain.TransactionRepository
}

func (r ctxTransactionRepository) AddBuyTransaction(
	ctx context.Context, tx *domain.BuyTransaction,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.TransactionRepository.AddBuyTransaction(ctx, tx)
}

func (r ctxTransactionRepository) UpdateBuyTransaction(
	ctx context.Context, id int64,
	updateFn func(tx *domain.BuyTransaction) (*domain.BuyTransaction, error),
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.TransactionRepository.UpdateBuyTransaction(ctx, id, updateFn)
}

func (r ctxTransactionRepository) UpdateSellTransaction(
	ctx context.Context, id int64,
	updateFn func(tx *domain.SellTransaction) (*domain.SellTransaction, error),
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.TransactionRepository.UpdateSellTransaction(ctx, id, updateFn)
}

// stopDuringCall waits for the backend to get stopped while a call is
// pending, then delivers the reply and waits for the shutdown to complete.
func (h *harness) stopDuringCall(reply bus.Message) {
	stopped := make(chan struct{})
	go func() {
		h.backend.Stop()
		close(stopped)
	}()

	require.Eventually(h.t, func() bool {
		return h.backend.ctx.Err() != nil
	}, waitFor, tick)
	require.NoError(h.t, h.router.Handle(reply))

	select {
	case <-stopped:
	case <-timeout():
		h.t.Fatal("backend not stopped")
	}
}
