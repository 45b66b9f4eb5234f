package trade

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/fiatln-daemon/internal/core/bus"
	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
	"github.com/tdex-network/fiatln-daemon/internal/core/messages"
	"github.com/tdex-network/fiatln-daemon/internal/core/ports"
)

// BackendOpts groups the dependencies of a Backend. Notifier and
// ConnectionStatus are optional.
type BackendOpts struct {
	RepoManager      ports.RepoManager
	Publisher        bus.Publisher
	Notifier         ports.EventNotifier
	ConnectionStatus ports.ConnectionStatus
	Settings         domain.Settings
	// RetryInterval is the pause between attempts of the calls that are
	// retried. It defaults to the offer search interval.
	RetryInterval time.Duration
}

// Backend keeps the registry of running order tasks. It executes the user
// commands and routes every reply and incoming payment to the task it
// belongs to.
type Backend struct {
	deps             taskDeps
	connectionStatus ports.ConnectionStatus
	handler          *bus.Handler

	lock  sync.RWMutex
	tasks map[int64]*OrderTask

	ctx  context.Context
	stop context.CancelFunc
}

func NewBackend(opts BackendOpts) (*Backend, error) {
	if opts.RepoManager == nil {
		return nil, fmt.Errorf("missing repo manager")
	}
	if opts.Publisher == nil {
		return nil, fmt.Errorf("missing publisher")
	}
	if err := opts.Settings.Validate(); err != nil {
		return nil, err
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = noopNotifier{}
	}
	retryInterval := opts.RetryInterval
	if retryInterval <= 0 {
		retryInterval = opts.Settings.OfferSearchInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Backend{
		deps: taskDeps{
			repoManager:   opts.RepoManager,
			publisher:     opts.Publisher,
			notifier:      notifier,
			settings:      opts.Settings,
			retryInterval: retryInterval,
		},
		connectionStatus: opts.ConnectionStatus,
		handler:          bus.NewHandler(),
		tasks:            make(map[int64]*OrderTask),
		ctx:              ctx,
		stop:             cancel,
	}

	handlers := map[bus.Kind]bus.HandlerFunc{
		messages.KindIncomingPayment: b.handleIncomingPayment,
		messages.KindPlaceBuyOrder:   b.handlePlaceOrder,
		messages.KindPlaceSellOrder:  b.handlePlaceOrder,
		messages.KindListOrders:      b.handleListOrders,
		messages.KindCancelOrder:     b.handleCancelOrder,
		messages.KindSetConfig:       b.handleSetConfig,
		messages.KindGetConfig:       b.handleGetConfig,
	}
	for _, kind := range []bus.Kind{
		messages.KindStartReservationResult,
		messages.KindSelfReportResult,
		messages.KindCancelReservationResult,
		messages.KindSendFundsResult,
		messages.KindReceiveFundsResult,
		messages.KindAddOfferResult,
		messages.KindRemoveOfferResult,
		messages.KindFindOffersResult,
		messages.KindExchangeError,
		messages.KindPayResult,
	} {
		handlers[kind] = b.handleReply
	}
	for kind, fn := range handlers {
		if err := b.handler.Register(kind, fn); err != nil {
			return nil, err
		}
	}

	return b, nil
}

func (b *Backend) MessageHandlers() map[bus.Kind]bus.HandlerFunc {
	return b.handler.MessageHandlers()
}

// Start publishes the current configuration and starts a task for every
// open order.
func (b *Backend) Start(ctx context.Context) error {
	cfg, err := b.deps.repoManager.ConfigRepository().GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	b.publish(messages.ConfigChanged{Values: cfg})

	orders, err := b.deps.repoManager.OrderRepository().GetOpenOrders(ctx)
	if err != nil {
		return fmt.Errorf("failed to load open orders: %w", err)
	}
	for _, order := range orders {
		b.startTask(order)
	}
	log.Infof("resumed %d open orders", len(orders))
	return nil
}

// Stop shuts down all the tasks, leaving the orders' status untouched.
func (b *Backend) Stop() {
	b.stop()

	b.lock.RLock()
	tasks := make([]*OrderTask, 0, len(b.tasks))
	for _, task := range b.tasks {
		tasks = append(tasks, task)
	}
	b.lock.RUnlock()

	for _, task := range tasks {
		<-task.Done()
	}
}

// Task returns the running task for the given order.
func (b *Backend) Task(orderID int64) (*OrderTask, bool) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	task, ok := b.tasks[orderID]
	return task, ok
}

func (b *Backend) startTask(order domain.Order) {
	task := newOrderTask(b.deps, order, b.removeTask)

	b.lock.Lock()
	b.tasks[order.ID] = task
	b.lock.Unlock()

	openOrders.Inc()
	task.Start(b.ctx)
}

func (b *Backend) removeTask(orderID int64) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if _, ok := b.tasks[orderID]; ok {
		delete(b.tasks, orderID)
		openOrders.Dec()
	}
}

func (b *Backend) findTaskByOfferID(offerID int64) (*OrderTask, bool) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	for _, task := range b.tasks {
		if id, ok := task.RemoteOfferID(); ok && id == offerID {
			return task, true
		}
	}
	return nil, false
}

func (b *Backend) handleReply(msg bus.Message) {
	reply := msg.(messages.Reply)
	task, ok := b.Task(reply.LocalOrderID())
	if !ok {
		log.Warnf("dropping %s for order %d, no running task", reply.Kind(), reply.LocalOrderID())
		return
	}
	task.SetCallResult(reply)
}

func (b *Backend) handleIncomingPayment(msg bus.Message) {
	payment := msg.(messages.IncomingPayment)

	if task, ok := b.findTaskByOfferID(payment.OfferID); ok {
		// The task may be busy with another payment.
		go b.deliverIncomingPayment(task, payment)
		return
	}
	b.resolveIncomingPayment(payment)
}

func (b *Backend) deliverIncomingPayment(task *OrderTask, payment messages.IncomingPayment) {
	if task.DeliverIncomingPayment(payment) {
		return
	}
	log.Warnf("order %d: stopped before accepting payment %s", task.ID(), payment.PaymentHash)
	b.resolveIncomingPayment(payment)
}

// resolveIncomingPayment answers a payment that no task can take, using the
// outcome recorded for it, if any.
func (b *Backend) resolveIncomingPayment(payment messages.IncomingPayment) {
	tx, err := b.deps.repoManager.TransactionRepository().GetBuyTransactionByPaymentHash(
		storeCtx(b.ctx), payment.PaymentHash,
	)
	switch {
	case err == nil && tx.Status == domain.TxStatusFinished:
		b.publish(messages.FinishPayment{
			PaymentHash:     tx.PaymentHash,
			PaymentPreimage: tx.PaymentPreimage,
		})
	case err == nil && !tx.Status.IsTerminal():
		// Funds may have been sent already, the task of the order resolves the
		// payment when it resumes the transaction.
		log.Errorf(
			"payment %s is in progress for order %d with no running task, "+
				"it will be resolved once the order is resumed",
			payment.PaymentHash, tx.BuyOrderID,
		)
	case err != nil && !errors.Is(err, domain.ErrTransactionNotFound):
		log.WithError(err).Warnf("failed to look up payment %s", payment.PaymentHash)
		b.publish(messages.FailPayment{PaymentHash: payment.PaymentHash})
	default:
		// Unknown payments and canceled transactions.
		log.Infof("rejecting payment %s for offer %d", payment.PaymentHash, payment.OfferID)
		b.publish(messages.FailPayment{PaymentHash: payment.PaymentHash})
	}
}

func (b *Backend) handlePlaceOrder(msg bus.Message) {
	var (
		cmd   messages.PlaceOrder
		order *domain.Order
		err   error
	)
	switch m := msg.(type) {
	case messages.PlaceBuyOrder:
		cmd = m.PlaceOrder
		order, err = domain.NewBuyOrder(
			b.deps.settings, cmd.LimitRate, cmd.LimitRateInverted, cmd.Amount, cmd.PerTxMaxAmount,
		)
	case messages.PlaceSellOrder:
		cmd = m.PlaceOrder
		order, err = domain.NewSellOrder(
			b.deps.settings, cmd.LimitRate, cmd.LimitRateInverted, cmd.Amount, cmd.PerTxMaxAmount,
		)
	default:
		return
	}

	if b.connectionStatus != nil && !b.connectionStatus.IsConnected() {
		b.replyError(cmd.ID(), messages.ErrorCodeNoConnection, "exchange is not connected")
		return
	}
	if err != nil {
		b.replyError(cmd.ID(), messages.ErrorCodeInvalidParams, err.Error())
		return
	}

	order.Timestamp = time.Now().Unix()
	if err := b.deps.repoManager.OrderRepository().AddOrder(b.ctx, order); err != nil {
		log.WithError(err).Warn("failed to store order")
		b.replyError(cmd.ID(), messages.ErrorCodeInternal, err.Error())
		return
	}

	log.Infof("placed %s order %d for %d at %d", order.Kind, order.ID, order.Amount, order.LimitRate)
	ordersPlaced.WithLabelValues(order.Kind.String()).Inc()
	b.startTask(*order)
	b.reply(cmd.ID(), messages.PlaceOrderResult{OrderID: order.ID})
}

func (b *Backend) handleListOrders(msg bus.Message) {
	cmd := msg.(messages.ListOrders)

	infos, err := b.listOrders(b.ctx)
	if err != nil {
		log.WithError(err).Warn("failed to list orders")
		b.replyError(cmd.ID(), messages.ErrorCodeInternal, err.Error())
		return
	}
	b.reply(cmd.ID(), infos)
}

func (b *Backend) listOrders(ctx context.Context) ([]messages.OrderInfo, error) {
	orders, err := b.deps.repoManager.OrderRepository().GetAllOrders(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })

	txRepo := b.deps.repoManager.TransactionRepository()
	infos := make([]messages.OrderInfo, 0, len(orders))
	for _, order := range orders {
		info := messages.OrderInfo{Order: order}
		if order.IsBuy() {
			info.BuyTransactions, err = txRepo.GetBuyTransactionsForOrder(ctx, order.ID)
		} else {
			info.SellTransactions, err = txRepo.GetSellTransactionsForOrder(ctx, order.ID)
		}
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (b *Backend) handleCancelOrder(msg bus.Message) {
	cmd := msg.(messages.CancelOrder)

	task, ok := b.Task(cmd.OrderID)
	if !ok {
		order, err := b.deps.repoManager.OrderRepository().GetOrder(b.ctx, cmd.OrderID)
		if err != nil {
			if errors.Is(err, domain.ErrOrderNotFound) {
				b.replyError(cmd.ID(), messages.ErrorCodeNoSuchOrder, err.Error())
				return
			}
			b.replyError(cmd.ID(), messages.ErrorCodeInternal, err.Error())
			return
		}
		b.replyError(
			cmd.ID(), messages.ErrorCodeInvalidParams,
			fmt.Sprintf("order %d is %s", order.ID, order.Status),
		)
		return
	}

	if err := task.Cancel(b.ctx); err != nil {
		code := messages.ErrorCodeInternal
		if errors.Is(err, domain.ErrOrderNotActive) {
			code = messages.ErrorCodeInvalidParams
		}
		b.replyError(cmd.ID(), code, err.Error())
		return
	}
	b.reply(cmd.ID(), nil)
}

func (b *Backend) handleSetConfig(msg bus.Message) {
	cmd := msg.(messages.SetConfig)

	for key := range cmd.Values {
		if _, ok := domain.DefaultConfigValue(key); !ok {
			b.replyError(
				cmd.ID(), messages.ErrorCodeInvalidParams,
				fmt.Sprintf("%s: %s", domain.ErrUnknownConfigKey, key),
			)
			return
		}
	}

	cfgRepo := b.deps.repoManager.ConfigRepository()
	if err := b.deps.repoManager.RunTransaction(
		b.ctx, false, func(ctx context.Context) error {
			for key, value := range cmd.Values {
				if err := cfgRepo.SetConfigValue(ctx, key, value); err != nil {
					return err
				}
			}
			return nil
		},
	); err != nil {
		b.replyError(cmd.ID(), messages.ErrorCodeInternal, err.Error())
		return
	}

	cfg, err := cfgRepo.GetConfig(b.ctx)
	if err != nil {
		b.replyError(cmd.ID(), messages.ErrorCodeInternal, err.Error())
		return
	}
	b.publish(messages.ConfigChanged{Values: cfg})
	b.reply(cmd.ID(), cfg)
}

func (b *Backend) handleGetConfig(msg bus.Message) {
	cmd := msg.(messages.GetConfig)

	cfg, err := b.deps.repoManager.ConfigRepository().GetConfig(b.ctx)
	if err != nil {
		b.replyError(cmd.ID(), messages.ErrorCodeInternal, err.Error())
		return
	}
	b.reply(cmd.ID(), cfg)
}

func (b *Backend) reply(commandID string, payload interface{}) {
	b.publish(messages.CommandResult{
		CommandRef: messages.CommandRef{CommandID: commandID},
		Payload:    payload,
	})
}

func (b *Backend) replyError(commandID string, code messages.ErrorCode, reason string) {
	b.publish(messages.CommandError{
		CommandRef: messages.CommandRef{CommandID: commandID},
		Code:       code,
		Message:    reason,
	})
}

func (b *Backend) publish(msg bus.Message) {
	if err := b.deps.publisher.Handle(msg); err != nil {
		log.WithError(err).Warnf("failed to publish %s", msg.Kind())
	}
}
