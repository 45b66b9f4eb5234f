package postgresdb

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
)

const (
	buyTxColumns = `id, buy_order_id, status, fiat_amount, crypto_amount,
		payment_hash, payment_preimage`
	sellTxColumns = `id, sell_order_id, counter_offer_id, status,
		buyer_fiat_amount, seller_fiat_amount, buyer_crypto_amount,
		seller_crypto_amount, sender_timeout_delta, locked_timeout_delta,
		cltv_expiry_delta, payment_hash, payment_preimage`

	buyTxPendingIndex  = "buy_transactions_pending_idx"
	sellTxPendingIndex = "sell_transactions_pending_idx"

	// Lowest terminal status.
	terminalStatus = int32(domain.TxStatusFinished)
)

type transactionRepositoryImpl struct {
	db *repoManager
}

func (r transactionRepositoryImpl) AddBuyTransaction(
	ctx context.Context, tx *domain.BuyTransaction,
) error {
	if err := r.db.querier(ctx).QueryRow(ctx, `
		INSERT INTO buy_transactions (
			buy_order_id, status, fiat_amount, crypto_amount,
			payment_hash, payment_preimage
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		tx.BuyOrderID, int32(tx.Status), tx.FiatAmount, tx.CryptoAmount,
		tx.PaymentHash, tx.PaymentPreimage,
	).Scan(&tx.ID); err != nil {
		if isUniqueViolation(err, buyTxPendingIndex) {
			return domain.ErrTransactionPending
		}
		return err
	}
	return nil
}

func (r transactionRepositoryImpl) GetBuyTransaction(
	ctx context.Context, id int64,
) (*domain.BuyTransaction, error) {
	return getBuyTransaction(ctx, r.db.querier(ctx), `WHERE id = $1`, id)
}

func (r transactionRepositoryImpl) GetBuyTransactionByPaymentHash(
	ctx context.Context, paymentHash string,
) (*domain.BuyTransaction, error) {
	return getBuyTransaction(ctx, r.db.querier(ctx), `WHERE payment_hash = $1`, paymentHash)
}

func (r transactionRepositoryImpl) GetPendingBuyTransaction(
	ctx context.Context, orderID int64,
) (*domain.BuyTransaction, error) {
	return getBuyTransaction(
		ctx, r.db.querier(ctx), `WHERE buy_order_id = $1 AND status < $2`,
		orderID, terminalStatus,
	)
}

func (r transactionRepositoryImpl) GetBuyTransactionsForOrder(
	ctx context.Context, orderID int64,
) ([]domain.BuyTransaction, error) {
	rows, err := r.db.querier(ctx).Query(ctx,
		`SELECT `+buyTxColumns+` FROM buy_transactions WHERE buy_order_id = $1 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := make([]domain.BuyTransaction, 0)
	for rows.Next() {
		tx, err := scanBuyTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	return txs, rows.Err()
}

func (r transactionRepositoryImpl) UpdateBuyTransaction(
	ctx context.Context,
	id int64,
	updateFn func(tx *domain.BuyTransaction) (*domain.BuyTransaction, error),
) error {
	return r.db.inTx(ctx, func(q querier) error {
		tx, err := getBuyTransaction(ctx, q, `WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			return err
		}

		updatedTx, err := updateFn(tx)
		if err != nil {
			return err
		}
		_, err = q.Exec(ctx, `
			UPDATE buy_transactions SET
				status = $2, fiat_amount = $3, crypto_amount = $4,
				payment_hash = $5, payment_preimage = $6
			WHERE id = $1`,
			id, int32(updatedTx.Status), updatedTx.FiatAmount, updatedTx.CryptoAmount,
			updatedTx.PaymentHash, updatedTx.PaymentPreimage,
		)
		return err
	})
}

func (r transactionRepositoryImpl) AddSellTransaction(
	ctx context.Context, tx *domain.SellTransaction,
) error {
	if err := r.db.querier(ctx).QueryRow(ctx, `
		INSERT INTO sell_transactions (
			sell_order_id, counter_offer_id, status,
			buyer_fiat_amount, seller_fiat_amount, buyer_crypto_amount,
			seller_crypto_amount, sender_timeout_delta, locked_timeout_delta,
			cltv_expiry_delta, payment_hash, payment_preimage
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		tx.SellOrderID, tx.CounterOfferID, int32(tx.Status),
		tx.BuyerFiatAmount, tx.SellerFiatAmount, tx.BuyerCryptoAmount,
		tx.SellerCryptoAmount, tx.SenderTimeoutDelta, tx.LockedTimeoutDelta,
		tx.CltvExpiryDelta, tx.PaymentHash, tx.PaymentPreimage,
	).Scan(&tx.ID); err != nil {
		if isUniqueViolation(err, sellTxPendingIndex) {
			return domain.ErrTransactionPending
		}
		return err
	}
	return nil
}

func (r transactionRepositoryImpl) GetSellTransaction(
	ctx context.Context, id int64,
) (*domain.SellTransaction, error) {
	return getSellTransaction(ctx, r.db.querier(ctx), `WHERE id = $1`, id)
}

func (r transactionRepositoryImpl) GetPendingSellTransaction(
	ctx context.Context, orderID int64,
) (*domain.SellTransaction, error) {
	return getSellTransaction(
		ctx, r.db.querier(ctx), `WHERE sell_order_id = $1 AND status < $2`,
		orderID, terminalStatus,
	)
}

func (r transactionRepositoryImpl) GetSellTransactionsForOrder(
	ctx context.Context, orderID int64,
) ([]domain.SellTransaction, error) {
	rows, err := r.db.querier(ctx).Query(ctx,
		`SELECT `+sellTxColumns+` FROM sell_transactions WHERE sell_order_id = $1 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := make([]domain.SellTransaction, 0)
	for rows.Next() {
		tx, err := scanSellTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	return txs, rows.Err()
}

func (r transactionRepositoryImpl) UpdateSellTransaction(
	ctx context.Context,
	id int64,
	updateFn func(tx *domain.SellTransaction) (*domain.SellTransaction, error),
) error {
	return r.db.inTx(ctx, func(q querier) error {
		tx, err := getSellTransaction(ctx, q, `WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			return err
		}

		updatedTx, err := updateFn(tx)
		if err != nil {
			return err
		}
		_, err = q.Exec(ctx, `
			UPDATE sell_transactions SET
				status = $2, buyer_fiat_amount = $3, seller_fiat_amount = $4,
				buyer_crypto_amount = $5, seller_crypto_amount = $6,
				sender_timeout_delta = $7, locked_timeout_delta = $8,
				cltv_expiry_delta = $9, payment_hash = $10, payment_preimage = $11
			WHERE id = $1`,
			id, int32(updatedTx.Status), updatedTx.BuyerFiatAmount,
			updatedTx.SellerFiatAmount, updatedTx.BuyerCryptoAmount,
			updatedTx.SellerCryptoAmount, updatedTx.SenderTimeoutDelta,
			updatedTx.LockedTimeoutDelta, updatedTx.CltvExpiryDelta,
			updatedTx.PaymentHash, updatedTx.PaymentPreimage,
		)
		return err
	})
}

func getBuyTransaction(
	ctx context.Context, q querier, where string, args ...any,
) (*domain.BuyTransaction, error) {
	tx, err := scanBuyTransaction(q.QueryRow(
		ctx, `SELECT `+buyTxColumns+` FROM buy_transactions `+where, args...,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return tx, nil
}

func getSellTransaction(
	ctx context.Context, q querier, where string, args ...any,
) (*domain.SellTransaction, error) {
	tx, err := scanSellTransaction(q.QueryRow(
		ctx, `SELECT `+sellTxColumns+` FROM sell_transactions `+where, args...,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return tx, nil
}

func scanBuyTransaction(row pgx.Row) (*domain.BuyTransaction, error) {
	var (
		tx     domain.BuyTransaction
		status int32
	)
	if err := row.Scan(
		&tx.ID, &tx.BuyOrderID, &status, &tx.FiatAmount, &tx.CryptoAmount,
		&tx.PaymentHash, &tx.PaymentPreimage,
	); err != nil {
		return nil, err
	}
	tx.Status = domain.TransactionStatus(status)
	return &tx, nil
}

func scanSellTransaction(row pgx.Row) (*domain.SellTransaction, error) {
	var (
		tx     domain.SellTransaction
		status int32
	)
	if err := row.Scan(
		&tx.ID, &tx.SellOrderID, &tx.CounterOfferID, &status,
		&tx.BuyerFiatAmount, &tx.SellerFiatAmount, &tx.BuyerCryptoAmount,
		&tx.SellerCryptoAmount, &tx.SenderTimeoutDelta, &tx.LockedTimeoutDelta,
		&tx.CltvExpiryDelta, &tx.PaymentHash, &tx.PaymentPreimage,
	); err != nil {
		return nil, err
	}
	tx.Status = domain.TransactionStatus(status)
	return &tx, nil
}
