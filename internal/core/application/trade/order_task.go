package trade

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/fiatln-daemon/internal/core/bus"
	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
	"github.com/tdex-network/fiatln-daemon/internal/core/messages"
	"github.com/tdex-network/fiatln-daemon/internal/core/ports"
)

const incomingPaymentsBufferSize = 16

// taskDeps are the dependencies shared by all order tasks.
type taskDeps struct {
	repoManager   ports.RepoManager
	publisher     bus.Publisher
	notifier      ports.EventNotifier
	settings      domain.Settings
	retryInterval time.Duration
}

// OrderTask drives the trading of a single order in its own goroutine. It
// resumes any transaction left in progress, then either waits for incoming
// payments on its published offer (buy orders) or polls the exchange for
// matching offers (sell orders) until the order is filled or canceled.
//
// All the order's state changes are persisted before the external calls that
// depend on them, so that a restarted task resumes exactly where the previous
// one stopped.
type OrderTask struct {
	taskDeps
	orderID int64
	onDone  func(orderID int64)

	lock  sync.RWMutex
	order domain.Order

	callLock    sync.Mutex
	pendingCall bus.Kind
	replies     chan messages.Reply

	incoming   chan messages.IncomingPayment
	cancelCh   chan struct{}
	cancelOnce sync.Once

	stop context.CancelFunc
	done chan struct{}

	// Owned by the task goroutine.
	buyTx        *domain.BuyTransaction
	sellTx       *domain.SellTransaction
	counterOffer *domain.CounterOffer
}

func newOrderTask(deps taskDeps, order domain.Order, onDone func(int64)) *OrderTask {
	if deps.notifier == nil {
		deps.notifier = noopNotifier{}
	}
	if deps.retryInterval <= 0 {
		deps.retryInterval = deps.settings.OfferSearchInterval
	}
	return &OrderTask{
		taskDeps: deps,
		orderID:  order.ID,
		onDone:   onDone,
		order:    order.Clone(),
		replies:  make(chan messages.Reply, 1),
		incoming: make(chan messages.IncomingPayment, incomingPaymentsBufferSize),
		cancelCh: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (t *OrderTask) ID() int64 {
	return t.orderID
}

// Order returns a copy of the current state of the order.
func (t *OrderTask) Order() domain.Order {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.order.Clone()
}

// RemoteOfferID returns the id of the offer published on the exchange.
func (t *OrderTask) RemoteOfferID() (int64, bool) {
	t.lock.RLock()
	defer t.lock.RUnlock()
	if t.order.RemoteOfferID == nil {
		return 0, false
	}
	return *t.order.RemoteOfferID, true
}

// Start runs the task until the order is closed or ctx is canceled.
func (t *OrderTask) Start(ctx context.Context) {
	ctx, t.stop = context.WithCancel(ctx)
	go t.run(ctx)
}

// Shutdown stops the task without changing the order's status and waits for
// it to return. The task ends as soon as any in-flight call gets its reply.
func (t *OrderTask) Shutdown() {
	if t.stop != nil {
		t.stop()
	}
	<-t.done
}

func (t *OrderTask) Done() <-chan struct{} {
	return t.done
}

// Cancel requests the cancellation of the order. If no transaction is in
// progress the task closes the order right away, otherwise it does so once
// the transaction is over.
func (t *OrderTask) Cancel(ctx context.Context) error {
	var changed bool
	if err := t.withOrder(ctx, func(_ context.Context, o *domain.Order) error {
		var err error
		changed, err = o.RequestCancel()
		return err
	}); err != nil {
		return err
	}

	if changed {
		log.Infof("order %d: cancellation requested", t.orderID)
	}
	t.cancelOnce.Do(func() { close(t.cancelCh) })
	return nil
}

// DeliverIncomingPayment hands an incoming payment over to the task, waiting
// for room in its queue. It returns false if the task stops first.
func (t *OrderTask) DeliverIncomingPayment(payment messages.IncomingPayment) bool {
	select {
	case <-t.done:
		return false
	default:
	}

	select {
	case t.incoming <- payment:
		return true
	case <-t.done:
		return false
	}
}

func (t *OrderTask) run(ctx context.Context) {
	defer close(t.done)
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("order %d: task aborted: %v\n%s", t.orderID, r, debug.Stack())
		}
	}()

	var err error
	if order := t.Order(); order.IsBuy() {
		err = t.tradeBuy(ctx)
	} else {
		err = t.tradeSell(ctx)
	}

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		log.Debugf("order %d: task stopped", t.orderID)
	default:
		log.WithError(err).Errorf("order %d: task aborted", t.orderID)
	}
}

func (t *OrderTask) canTrade() bool {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.order.CanTrade()
}

// finish closes the order and removes its offer from the exchange.
func (t *OrderTask) finish(ctx context.Context) error {
	if err := t.unpublishOffer(ctx); err != nil {
		return err
	}
	if err := t.withOrder(ctx, func(_ context.Context, o *domain.Order) error {
		o.Close()
		return nil
	}); err != nil {
		return err
	}

	order := t.Order()
	log.Infof("order %d: %s", t.orderID, order.Status)
	ordersClosed.WithLabelValues(order.Kind.String(), order.Status.String()).Inc()
	t.notifier.OrderClosed(order)

	if t.onDone != nil {
		t.onDone(t.orderID)
	}
	t.rejectQueuedPayments(ctx)
	return nil
}

// withOrder applies fn to a copy of the order and persists the result in a
// single db transaction, together with whatever fn writes with the given
// context. The in-memory order is updated only if everything succeeds.
// The write goes through even if ctx is canceled, see storeCtx.
func (t *OrderTask) withOrder(
	ctx context.Context, fn func(ctx context.Context, o *domain.Order) error,
) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	updated := t.order.Clone()
	if err := t.repoManager.RunTransaction(
		storeCtx(ctx), false, func(ctx context.Context) error {
			if err := fn(ctx, &updated); err != nil {
				return err
			}
			return t.repoManager.OrderRepository().UpdateOrder(
				ctx, t.orderID, func(_ *domain.Order) (*domain.Order, error) {
					return &updated, nil
				},
			)
		},
	); err != nil {
		return err
	}

	t.order = updated
	return nil
}

// publishOffer publishes the order's offer on the exchange, unless already
// published. It returns false if the exchange rejected the offer.
func (t *OrderTask) publishOffer(ctx context.Context) (bool, error) {
	if _, ok := t.RemoteOfferID(); ok {
		return true, nil
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}

	order := t.Order()
	reply, err := callFor[messages.AddOfferResult](t, messages.AddOffer{
		OrderRef: messages.OrderRef{OrderID: t.orderID},
		Offer:    order.Offer,
	})
	if err != nil {
		if !isExchangeError(err) {
			return false, err
		}
		log.WithError(err).Warnf("order %d: failed to publish offer", t.orderID)
		return false, nil
	}

	offerID := reply.OfferID
	if err := t.withOrder(ctx, func(_ context.Context, o *domain.Order) error {
		o.RemoteOfferID = &offerID
		return nil
	}); err != nil {
		return false, err
	}
	log.Debugf("order %d: published offer %d", t.orderID, offerID)
	return true, nil
}

// unpublishOffer removes the order's offer from the exchange, if published.
// A failed removal is only logged since the offer may be already gone.
func (t *OrderTask) unpublishOffer(ctx context.Context) error {
	offerID, ok := t.RemoteOfferID()
	if !ok {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := callFor[messages.RemoveOfferResult](t, messages.RemoveOffer{
		OrderRef: messages.OrderRef{OrderID: t.orderID},
		OfferID:  offerID,
	}); err != nil {
		if !isExchangeError(err) {
			return err
		}
		log.WithError(err).Warnf("order %d: failed to remove offer %d", t.orderID, offerID)
	}

	if err := t.withOrder(ctx, func(_ context.Context, o *domain.Order) error {
		o.RemoteOfferID = nil
		return nil
	}); err != nil {
		return err
	}
	log.Debugf("order %d: removed offer %d", t.orderID, offerID)
	return nil
}

// requestKey identifies the exchange request of the given kind made for a
// transaction. It's unchanged across retries and restarts.
func (t *OrderTask) requestKey(kind string, txID int64) string {
	order := t.Order()
	return fmt.Sprintf("%s-%d-%d-%d", kind, order.Timestamp, t.orderID, txID)
}

// storeCtx returns a context for the writes recording the outcome of a call.
// Once a reply is received its effects must be stored, even when the task is
// being stopped, otherwise a restart would repeat the call. The task checks
// ctx only before making a new call.
func storeCtx(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func (t *OrderTask) publish(msg bus.Message) {
	if err := t.publisher.Handle(msg); err != nil {
		log.WithError(err).Warnf("order %d: failed to publish %s", t.orderID, msg.Kind())
	}
}

type noopNotifier struct{}

func (noopNotifier) OrderClosed(domain.Order) {}

func (noopNotifier) BuyTransactionClosed(domain.Order, domain.BuyTransaction) {}

func (noopNotifier) SellTransactionClosed(domain.Order, domain.SellTransaction) {}
