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

func (t *OrderTask) tradeSell(ctx context.Context) error {
	if err := t.continueSellTransaction(ctx); err != nil {
		return err
	}

	for t.canTrade() {
		if err := t.searchOffers(ctx); err != nil {
			return err
		}
	}
	return t.finish(ctx)
}

// searchOffers looks for a buy offer matching the order and trades against
// the first acceptable one. If none is found it waits before returning.
func (t *OrderTask) searchOffers(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	order := t.Order()

	reply, err := callFor[messages.FindOffersResult](t, messages.FindOffers{
		OrderRef: messages.OrderRef{OrderID: t.orderID},
		Query:    order.Offer,
	})
	if err != nil {
		if !isExchangeError(err) {
			return err
		}
		log.WithError(err).Warnf("order %d: failed to search offers", t.orderID)
	} else if t.canTrade() {
		for _, counter := range reply.Offers {
			if err := order.Offer.VerifyMatches(counter); err != nil {
				log.Debugf("order %d: skipping offer %d: %s", t.orderID, counter.ID, err)
				continue
			}
			terms, ok := computeSellTerms(t.settings, order, counter)
			if !ok {
				log.Debugf("order %d: skipping offer %d: empty trade", t.orderID, counter.ID)
				continue
			}
			return t.startSellTransaction(ctx, counter, terms)
		}
	}

	return sleep(ctx, t.settings.OfferSearchInterval, t.cancelCh)
}

func (t *OrderTask) startSellTransaction(
	ctx context.Context, counter domain.Offer, terms sellTerms,
) error {
	counterOffer := &domain.CounterOffer{Offer: counter.Clone()}
	tx := &domain.SellTransaction{
		SellOrderID:        t.orderID,
		Status:             domain.TxStatusInitial,
		BuyerFiatAmount:    terms.buyerFiatAmount,
		SellerFiatAmount:   terms.sellerFiatAmount,
		BuyerCryptoAmount:  terms.buyerCryptoAmount,
		SellerCryptoAmount: terms.sellerCryptoAmount,
		SenderTimeoutDelta: terms.senderTimeout,
		LockedTimeoutDelta: terms.lockedTimeout,
		CltvExpiryDelta:    terms.cltvExpiryDelta,
	}

	if err := t.repoManager.RunTransaction(
		ctx, false, func(ctx context.Context) error {
			if err := t.repoManager.CounterOfferRepository().AddCounterOffer(
				ctx, counterOffer,
			); err != nil {
				return err
			}
			tx.CounterOfferID = counterOffer.ID
			return t.repoManager.TransactionRepository().AddSellTransaction(ctx, tx)
		},
	); err != nil {
		return err
	}
	log.Infof(
		"order %d: selling %d crypto for %d fiat to offer %d",
		t.orderID, tx.BuyerCryptoAmount, tx.BuyerFiatAmount, counter.ID,
	)

	t.sellTx, t.counterOffer = tx, counterOffer
	return t.continueSellTransaction(ctx)
}

// continueSellTransaction drives the order's pending sell transaction, if
// any, from its persisted status until it's either finished or canceled.
func (t *OrderTask) continueSellTransaction(ctx context.Context) error {
	if t.sellTx == nil {
		txRepo := t.repoManager.TransactionRepository()
		tx, err := txRepo.GetPendingSellTransaction(ctx, t.orderID)
		if err != nil {
			if errors.Is(err, domain.ErrTransactionNotFound) {
				return nil
			}
			return err
		}
		counterOffer, err := t.repoManager.CounterOfferRepository().GetCounterOffer(
			ctx, tx.CounterOfferID,
		)
		if err != nil {
			return err
		}
		log.Infof("order %d: resuming sell transaction %d (%s)", t.orderID, tx.ID, tx.Status)
		t.sellTx, t.counterOffer = tx, counterOffer
	}
	defer func() { t.sellTx, t.counterOffer = nil, nil }()

	for !t.sellTx.Status.IsTerminal() {
		// The persisted status tells a restarted task where to resume.
		if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		switch t.sellTx.Status {
		case domain.TxStatusInitial:
			err = t.startReservation(ctx)
		case domain.TxStatusStarted:
			err = t.sendSelfReport(ctx)
		case domain.TxStatusLocked:
			err = t.payCrypto(ctx)
		case domain.TxStatusReceivedPreimage:
			err = t.receiveFiatFunds(ctx)
		default:
			err = fmt.Errorf("unknown transaction status %d", t.sellTx.Status)
		}
		if err != nil {
			return err
		}
	}

	tx := *t.sellTx
	log.Infof("order %d: sell transaction %d %s", t.orderID, tx.ID, tx.Status)
	transactionsClosed.WithLabelValues("sell", tx.Status.String()).Inc()
	t.notifier.SellTransactionClosed(t.Order(), tx)

	// Refresh the published offer, if any, to its new size.
	return t.unpublishOffer(ctx)
}

func (t *OrderTask) startReservation(ctx context.Context) error {
	tx := *t.sellTx

	reply, err := callFor[messages.StartReservationResult](t, messages.StartReservation{
		OrderRef:           messages.OrderRef{OrderID: t.orderID},
		IdempotencyKey:     t.requestKey("reservation", tx.ID),
		Amount:             tx.BuyerFiatAmount,
		SenderTimeoutDelta: tx.SenderTimeoutDelta,
		LockedTimeoutDelta: tx.LockedTimeoutDelta,
		ReceiverPaysFee:    true,
	})
	if err != nil {
		if !isExchangeError(err) {
			return err
		}
		log.WithError(err).Warnf("order %d: failed to reserve funds", t.orderID)
		return t.updateSellTransaction(ctx, func(tx *domain.SellTransaction) error {
			return tx.Cancel()
		})
	}

	if reply.ReceiverAmount < tx.SellerFiatAmount {
		log.Warnf(
			"order %d: exchange offers %d fiat, below the minimum of %d",
			t.orderID, reply.ReceiverAmount, tx.SellerFiatAmount,
		)
		t.cancelReservation(reply.PaymentHash)
		return t.updateSellTransaction(ctx, func(tx *domain.SellTransaction) error {
			tx.PaymentHash = reply.PaymentHash
			return tx.Cancel()
		})
	}

	return t.updateSellTransaction(ctx, func(tx *domain.SellTransaction) error {
		return tx.Start(reply.ReceiverAmount, reply.PaymentHash)
	})
}

func (t *OrderTask) sendSelfReport(ctx context.Context) error {
	tx := *t.sellTx

	if _, err := callFor[messages.SelfReportResult](t, messages.SelfReport{
		OrderRef: messages.OrderRef{OrderID: t.orderID},
		Report: map[string]string{
			"paymentHash":          tx.PaymentHash,
			"offerID":              strconv.FormatInt(t.counterOffer.Offer.ID, 10),
			"receiverCryptoAmount": strconv.FormatInt(tx.BuyerCryptoAmount, 10),
			"cryptoCurrency":       t.settings.CryptoCurrency,
		},
	}); err != nil {
		if !isExchangeError(err) {
			return err
		}
		log.WithError(err).Warnf("order %d: self report rejected", t.orderID)
		return t.abortSellTransaction(ctx)
	}

	return t.updateSellTransaction(ctx, func(tx *domain.SellTransaction) error {
		return tx.Lock()
	})
}

func (t *OrderTask) payCrypto(ctx context.Context) error {
	tx := *t.sellTx
	counter := t.counterOffer.Offer

	reply, err := callFor[messages.PayResult](t, messages.PayRequest{
		OrderRef:              messages.OrderRef{OrderID: t.orderID},
		Destination:           counter.Address,
		OfferID:               counter.ID,
		RecipientCryptoAmount: tx.BuyerCryptoAmount,
		MaxSenderCryptoAmount: tx.SellerCryptoAmount,
		FiatAmount:            tx.BuyerFiatAmount,
		PaymentHash:           tx.PaymentHash,
		MinCltvExpiryDelta:    tx.CltvExpiryDelta,
	})
	if err != nil {
		return err
	}
	if reply.Failed() {
		log.Warnf("order %d: lightning payment %s failed", t.orderID, tx.PaymentHash)
		return t.abortSellTransaction(ctx)
	}

	if err := tx.ReceivePreimage(reply.PaymentPreimage, reply.SenderCryptoAmount); err != nil {
		if errors.Is(err, domain.ErrPreimageMismatch) {
			panic(fmt.Sprintf(
				"order %d: lightning returned preimage %s not matching payment hash %s",
				t.orderID, reply.PaymentPreimage, tx.PaymentHash,
			))
		}
		return err
	}

	if err := t.withOrder(ctx, func(ctx context.Context, o *domain.Order) error {
		// Fees may make us spend more than what's left, the amount is clamped.
		o.SetAmount(o.Amount - reply.SenderCryptoAmount)
		return t.repoManager.TransactionRepository().UpdateSellTransaction(
			ctx, tx.ID, func(_ *domain.SellTransaction) (*domain.SellTransaction, error) {
				return &tx, nil
			},
		)
	}); err != nil {
		return err
	}
	*t.sellTx = tx
	return nil
}

func (t *OrderTask) receiveFiatFunds(ctx context.Context) error {
	tx := *t.sellTx

	if _, err := callUntilSuccess[messages.ReceiveFundsResult](
		ctx, t, messages.ReceiveFunds{
			OrderRef:        messages.OrderRef{OrderID: t.orderID},
			PaymentPreimage: tx.PaymentPreimage,
		},
	); err != nil {
		return err
	}

	return t.updateSellTransaction(ctx, func(tx *domain.SellTransaction) error {
		return tx.Finish()
	})
}

// abortSellTransaction cancels the exchange reservation and the transaction.
func (t *OrderTask) abortSellTransaction(ctx context.Context) error {
	t.cancelReservation(t.sellTx.PaymentHash)
	return t.updateSellTransaction(ctx, func(tx *domain.SellTransaction) error {
		return tx.Cancel()
	})
}

// cancelReservation releases the funds reserved on the exchange. A rejection
// is only logged, the reservation expires anyway after its sender timeout.
func (t *OrderTask) cancelReservation(paymentHash string) {
	if _, err := callFor[messages.CancelReservationResult](t, messages.CancelReservation{
		OrderRef:    messages.OrderRef{OrderID: t.orderID},
		PaymentHash: paymentHash,
	}); err != nil {
		log.WithError(err).Warnf(
			"order %d: failed to cancel reservation %s", t.orderID, paymentHash,
		)
	}
}

func (t *OrderTask) updateSellTransaction(
	ctx context.Context, fn func(tx *domain.SellTransaction) error,
) error {
	tx := *t.sellTx
	if err := fn(&tx); err != nil {
		return err
	}
	if err := t.repoManager.TransactionRepository().UpdateSellTransaction(
		storeCtx(ctx), tx.ID, func(_ *domain.SellTransaction) (*domain.SellTransaction, error) {
			return &tx, nil
		},
	); err != nil {
		return err
	}
	*t.sellTx = tx
	return nil
}
