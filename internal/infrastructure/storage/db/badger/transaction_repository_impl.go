package dbbadger

import (
	"context"
	"errors"
	"sort"

	"github.com/dgraph-io/badger/v3"
	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

type transactionRepositoryImpl struct {
	db *repoManager
}

func (r transactionRepositoryImpl) AddBuyTransaction(
	ctx context.Context, tx *domain.BuyTransaction,
) error {
	id, err := nextID(r.db.buyTxSeq)
	if err != nil {
		return err
	}

	stored := *tx
	stored.ID = id
	if err := r.db.update(ctx, func(txn *badger.Txn) error {
		txs, err := r.findBuyTransactions(
			txn, badgerhold.Where("BuyOrderID").Eq(tx.BuyOrderID),
		)
		if err != nil {
			return err
		}
		for _, t := range txs {
			if !t.Status.IsTerminal() {
				return domain.ErrTransactionPending
			}
		}
		return r.db.store.TxInsert(txn, id, &stored)
	}); err != nil {
		return err
	}
	tx.ID = id
	return nil
}

func (r transactionRepositoryImpl) GetBuyTransaction(
	ctx context.Context, id int64,
) (*domain.BuyTransaction, error) {
	var tx *domain.BuyTransaction
	if err := r.db.view(ctx, func(txn *badger.Txn) error {
		var err error
		tx, err = r.getBuyTransaction(txn, id)
		return err
	}); err != nil {
		return nil, err
	}
	return tx, nil
}

func (r transactionRepositoryImpl) GetBuyTransactionByPaymentHash(
	ctx context.Context, paymentHash string,
) (*domain.BuyTransaction, error) {
	txs, err := r.viewBuyTransactions(ctx, badgerhold.Where("PaymentHash").Eq(paymentHash))
	if err != nil {
		return nil, err
	}
	if len(txs) <= 0 {
		return nil, domain.ErrTransactionNotFound
	}
	return &txs[0], nil
}

func (r transactionRepositoryImpl) GetPendingBuyTransaction(
	ctx context.Context, orderID int64,
) (*domain.BuyTransaction, error) {
	txs, err := r.GetBuyTransactionsForOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for _, tx := range txs {
		if !tx.Status.IsTerminal() {
			tx := tx
			return &tx, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

func (r transactionRepositoryImpl) GetBuyTransactionsForOrder(
	ctx context.Context, orderID int64,
) ([]domain.BuyTransaction, error) {
	return r.viewBuyTransactions(ctx, badgerhold.Where("BuyOrderID").Eq(orderID))
}

func (r transactionRepositoryImpl) UpdateBuyTransaction(
	ctx context.Context,
	id int64,
	updateFn func(tx *domain.BuyTransaction) (*domain.BuyTransaction, error),
) error {
	return r.db.update(ctx, func(txn *badger.Txn) error {
		tx, err := r.getBuyTransaction(txn, id)
		if err != nil {
			return err
		}

		updatedTx, err := updateFn(tx)
		if err != nil {
			return err
		}
		updatedTx.ID = id
		return r.db.store.TxUpdate(txn, id, updatedTx)
	})
}

func (r transactionRepositoryImpl) AddSellTransaction(
	ctx context.Context, tx *domain.SellTransaction,
) error {
	id, err := nextID(r.db.sellTxSeq)
	if err != nil {
		return err
	}

	stored := *tx
	stored.ID = id
	if err := r.db.update(ctx, func(txn *badger.Txn) error {
		txs, err := r.findSellTransactions(
			txn, badgerhold.Where("SellOrderID").Eq(tx.SellOrderID),
		)
		if err != nil {
			return err
		}
		for _, t := range txs {
			if !t.Status.IsTerminal() {
				return domain.ErrTransactionPending
			}
		}
		return r.db.store.TxInsert(txn, id, &stored)
	}); err != nil {
		return err
	}
	tx.ID = id
	return nil
}

func (r transactionRepositoryImpl) GetSellTransaction(
	ctx context.Context, id int64,
) (*domain.SellTransaction, error) {
	var tx *domain.SellTransaction
	if err := r.db.view(ctx, func(txn *badger.Txn) error {
		var err error
		tx, err = r.getSellTransaction(txn, id)
		return err
	}); err != nil {
		return nil, err
	}
	return tx, nil
}

func (r transactionRepositoryImpl) GetPendingSellTransaction(
	ctx context.Context, orderID int64,
) (*domain.SellTransaction, error) {
	txs, err := r.GetSellTransactionsForOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for _, tx := range txs {
		if !tx.Status.IsTerminal() {
			tx := tx
			return &tx, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

func (r transactionRepositoryImpl) GetSellTransactionsForOrder(
	ctx context.Context, orderID int64,
) ([]domain.SellTransaction, error) {
	var txs []domain.SellTransaction
	if err := r.db.view(ctx, func(txn *badger.Txn) error {
		var err error
		txs, err = r.findSellTransactions(txn, badgerhold.Where("SellOrderID").Eq(orderID))
		return err
	}); err != nil {
		return nil, err
	}
	return txs, nil
}

func (r transactionRepositoryImpl) UpdateSellTransaction(
	ctx context.Context,
	id int64,
	updateFn func(tx *domain.SellTransaction) (*domain.SellTransaction, error),
) error {
	return r.db.update(ctx, func(txn *badger.Txn) error {
		tx, err := r.getSellTransaction(txn, id)
		if err != nil {
			return err
		}

		updatedTx, err := updateFn(tx)
		if err != nil {
			return err
		}
		updatedTx.ID = id
		return r.db.store.TxUpdate(txn, id, updatedTx)
	})
}

func (r transactionRepositoryImpl) getBuyTransaction(
	txn *badger.Txn, id int64,
) (*domain.BuyTransaction, error) {
	var tx domain.BuyTransaction
	if err := r.db.store.TxGet(txn, id, &tx); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

func (r transactionRepositoryImpl) getSellTransaction(
	txn *badger.Txn, id int64,
) (*domain.SellTransaction, error) {
	var tx domain.SellTransaction
	if err := r.db.store.TxGet(txn, id, &tx); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

func (r transactionRepositoryImpl) viewBuyTransactions(
	ctx context.Context, query *badgerhold.Query,
) ([]domain.BuyTransaction, error) {
	var txs []domain.BuyTransaction
	if err := r.db.view(ctx, func(txn *badger.Txn) error {
		var err error
		txs, err = r.findBuyTransactions(txn, query)
		return err
	}); err != nil {
		return nil, err
	}
	return txs, nil
}

func (r transactionRepositoryImpl) findBuyTransactions(
	txn *badger.Txn, query *badgerhold.Query,
) ([]domain.BuyTransaction, error) {
	var txs []domain.BuyTransaction
	if err := r.db.store.TxFind(txn, &txs, query); err != nil {
		return nil, err
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].ID < txs[j].ID })
	return txs, nil
}

func (r transactionRepositoryImpl) findSellTransactions(
	txn *badger.Txn, query *badgerhold.Query,
) ([]domain.SellTransaction, error) {
	var txs []domain.SellTransaction
	if err := r.db.store.TxFind(txn, &txs, query); err != nil {
		return nil, err
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].ID < txs[j].ID })
	return txs, nil
}
