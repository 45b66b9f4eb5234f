package trade

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
	"github.com/tdex-network/fiatln-daemon/internal/core/messages"
)

func (t *OrderTask) tradeBuy(ctx context.Context) error {
	if err := t.continueBuyTransaction(ctx); err != nil {
		return err
	}
	// An offer left over by a previous run may be stale.
	if err := t.unpublishOffer(ctx); err != nil {
		return err
	}

	for t.canTrade() {
		published, err := t.publishOffer(ctx)
		if err != nil {
			return err
		}
		if !published {
			if err := sleep(ctx, t.retryInterval, t.cancelCh); err != nil {
				return err
			}
			continue
		}
		if err := t.waitForIncomingPayment(ctx); err != nil {
			return err
		}
	}
	return t.finish(ctx)
}

func (t *OrderTask) waitForIncomingPayment(ctx context.Context) error {
	select {
	case payment := <-t.incoming:
		return t.handleIncomingPayment(ctx, payment)
	case <-t.cancelCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *OrderTask) handleIncomingPayment(
	ctx context.Context, payment messages.IncomingPayment,
) error {
	txRepo := t.repoManager.TransactionRepository()

	tx, err := txRepo.GetBuyTransactionByPaymentHash(ctx, payment.PaymentHash)
	if err == nil {
		return t.replayBuyTransaction(ctx, tx)
	}
	if !errors.Is(err, domain.ErrTransactionNotFound) {
		return err
	}

	order := t.Order()
	if err := t.acceptIncomingPayment(order, payment); err != nil {
		log.WithError(err).Infof(
			"order %d: rejecting incoming payment %s", t.orderID, payment.PaymentHash,
		)
		t.publish(messages.FailPayment{PaymentHash: payment.PaymentHash})
		return nil
	}

	tx = &domain.BuyTransaction{
		BuyOrderID:   t.orderID,
		Status:       domain.TxStatusInitial,
		FiatAmount:   payment.FiatAmount,
		CryptoAmount: payment.CryptoAmount,
		PaymentHash:  payment.PaymentHash,
	}
	if err := t.withOrder(ctx, func(ctx context.Context, o *domain.Order) error {
		o.SetAmount(o.Amount - payment.FiatAmount)
		return txRepo.AddBuyTransaction(ctx, tx)
	}); err != nil {
		return err
	}
	log.Infof(
		"order %d: accepted incoming payment %s, sending %d fiat for %d crypto",
		t.orderID, payment.PaymentHash, payment.FiatAmount, payment.CryptoAmount,
	)

	t.buyTx = tx
	return t.continueBuyTransaction(ctx)
}

// acceptIncomingPayment checks the payment against the order as if it were
// an offer of the payer.
func (t *OrderTask) acceptIncomingPayment(
	order domain.Order, payment messages.IncomingPayment,
) error {
	if !order.CanTrade() {
		return domain.ErrOrderNotActive
	}
	if payment.FiatAmount <= 0 || payment.CryptoAmount <= 0 {
		return fmt.Errorf("invalid payment amounts")
	}
	if payment.FiatAmount > order.TradeableAmount() {
		return fmt.Errorf(
			"fiat amount %d exceeds available %d",
			payment.FiatAmount, order.TradeableAmount(),
		)
	}

	counterOffer := domain.Offer{
		Bid: domain.Asset{
			MaxAmount:        uint64(payment.CryptoAmount),
			MaxAmountDivisor: t.settings.CryptoDivisor,
			Currency:         order.Offer.Ask.Currency,
			Exchange:         order.Offer.Ask.Exchange,
		},
		Ask: domain.Asset{
			MaxAmount:        uint64(payment.FiatAmount),
			MaxAmountDivisor: t.settings.FiatDivisor,
			Currency:         order.Offer.Bid.Currency,
			Exchange:         order.Offer.Bid.Exchange,
		},
		Conditions: domain.Conditions{
			domain.ConditionCltvExpiryDelta: {
				Min: payment.CltvExpiryDelta, Max: payment.CltvExpiryDelta,
			},
		},
	}
	return order.Offer.VerifyMatches(counterOffer)
}

// replayBuyTransaction answers a payment notified again, for example after a
// restart of the lightning node, with the outcome already recorded.
func (t *OrderTask) replayBuyTransaction(ctx context.Context, tx *domain.BuyTransaction) error {
	switch tx.Status {
	case domain.TxStatusFinished:
		t.publish(messages.FinishPayment{
			PaymentHash:     tx.PaymentHash,
			PaymentPreimage: tx.PaymentPreimage,
		})
		return nil
	case domain.TxStatusCanceled:
		t.publish(messages.FailPayment{PaymentHash: tx.PaymentHash})
		return nil
	}

	if tx.BuyOrderID != t.orderID {
		log.Warnf(
			"order %d: payment %s belongs to order %d, ignoring",
			t.orderID, tx.PaymentHash, tx.BuyOrderID,
		)
		return nil
	}
	t.buyTx = tx
	return t.continueBuyTransaction(ctx)
}

// continueBuyTransaction resumes the order's pending buy transaction, if any.
func (t *OrderTask) continueBuyTransaction(ctx context.Context) error {
	if t.buyTx == nil {
		tx, err := t.repoManager.TransactionRepository().GetPendingBuyTransaction(
			ctx, t.orderID,
		)
		if err != nil {
			if errors.Is(err, domain.ErrTransactionNotFound) {
				return nil
			}
			return err
		}
		t.buyTx = tx
	}
	defer func() { t.buyTx = nil }()

	if t.buyTx.Status == domain.TxStatusInitial {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.sendFiatFunds(ctx); err != nil {
			return err
		}
	}

	// Refresh the published offer to its new size.
	return t.unpublishOffer(ctx)
}

func (t *OrderTask) sendFiatFunds(ctx context.Context) error {
	txRepo := t.repoManager.TransactionRepository()
	order := t.Order()
	tx := *t.buyTx

	reply, err := callFor[messages.SendFundsResult](t, messages.SendFunds{
		OrderRef:              messages.OrderRef{OrderID: t.orderID},
		IdempotencyKey:        t.requestKey("send", tx.ID),
		Amount:                tx.FiatAmount,
		PaymentHash:           tx.PaymentHash,
		MaxLockedTimeoutDelta: order.Offer.Condition(domain.ConditionLockedTimeout).Max,
		Report: map[string]string{
			"paymentHash":  tx.PaymentHash,
			"cryptoAmount": strconv.FormatInt(tx.CryptoAmount, 10),
			"fiatAmount":   strconv.FormatInt(tx.FiatAmount, 10),
			"currency":     t.settings.CryptoCurrency,
		},
	})
	if err != nil {
		if !isExchangeError(err) {
			return err
		}
		log.WithError(err).Warnf(
			"order %d: failed to send funds for payment %s", t.orderID, tx.PaymentHash,
		)
		return t.cancelBuyTransaction(ctx)
	}

	if err := tx.Finish(reply.PaymentPreimage); err != nil {
		if errors.Is(err, domain.ErrPreimageMismatch) {
			panic(fmt.Sprintf(
				"order %d: exchange returned preimage %s not matching payment hash %s",
				t.orderID, reply.PaymentPreimage, tx.PaymentHash,
			))
		}
		return err
	}
	if err := txRepo.UpdateBuyTransaction(
		storeCtx(ctx), tx.ID, func(_ *domain.BuyTransaction) (*domain.BuyTransaction, error) {
			return &tx, nil
		},
	); err != nil {
		return err
	}
	*t.buyTx = tx

	t.publish(messages.FinishPayment{
		PaymentHash:     tx.PaymentHash,
		PaymentPreimage: tx.PaymentPreimage,
	})
	log.Infof("order %d: buy transaction %d finished", t.orderID, tx.ID)
	t.buyTransactionClosed(tx)
	return nil
}

// cancelBuyTransaction gives the amount back to the order, cancels the
// transaction and rejects the incoming payment.
func (t *OrderTask) cancelBuyTransaction(ctx context.Context) error {
	tx := *t.buyTx
	if err := tx.Cancel(); err != nil {
		return err
	}

	if err := t.withOrder(ctx, func(ctx context.Context, o *domain.Order) error {
		o.SetAmount(o.Amount + tx.FiatAmount)
		return t.repoManager.TransactionRepository().UpdateBuyTransaction(
			ctx, tx.ID, func(_ *domain.BuyTransaction) (*domain.BuyTransaction, error) {
				return &tx, nil
			},
		)
	}); err != nil {
		return err
	}
	*t.buyTx = tx

	t.publish(messages.FailPayment{PaymentHash: tx.PaymentHash})
	log.Infof("order %d: buy transaction %d canceled", t.orderID, tx.ID)
	t.buyTransactionClosed(tx)
	return nil
}

func (t *OrderTask) buyTransactionClosed(tx domain.BuyTransaction) {
	transactionsClosed.WithLabelValues("buy", tx.Status.String()).Inc()
	t.notifier.BuyTransactionClosed(t.Order(), tx)
}

// rejectQueuedPayments answers the payments delivered after the order
// stopped trading.
func (t *OrderTask) rejectQueuedPayments(ctx context.Context) {
	for {
		select {
		case payment := <-t.incoming:
			if err := t.handleIncomingPayment(ctx, payment); err != nil {
				log.WithError(err).Warnf(
					"order %d: failed to handle payment %s", t.orderID, payment.PaymentHash,
				)
			}
		default:
			return
		}
	}
}
