package inmemory

import (
	"context"
	"sort"

	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
)

type transactionRepositoryImpl struct {
	store *store
}

func (r transactionRepositoryImpl) AddBuyTransaction(
	_ context.Context, tx *domain.BuyTransaction,
) error {
	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	for _, t := range r.store.buyTxs {
		if t.BuyOrderID == tx.BuyOrderID && !t.Status.IsTerminal() {
			return domain.ErrTransactionPending
		}
	}

	r.store.buyTxSeq++
	tx.ID = r.store.buyTxSeq
	r.store.buyTxs[tx.ID] = *tx
	return nil
}

func (r transactionRepositoryImpl) GetBuyTransaction(
	_ context.Context, id int64,
) (*domain.BuyTransaction, error) {
	r.store.lock.RLock()
	defer r.store.lock.RUnlock()

	tx, ok := r.store.buyTxs[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return &tx, nil
}

func (r transactionRepositoryImpl) GetBuyTransactionByPaymentHash(
	_ context.Context, paymentHash string,
) (*domain.BuyTransaction, error) {
	txs := r.findBuyTransactions(func(tx domain.BuyTransaction) bool {
		return tx.PaymentHash == paymentHash
	})
	if len(txs) <= 0 {
		return nil, domain.ErrTransactionNotFound
	}
	return &txs[0], nil
}

func (r transactionRepositoryImpl) GetPendingBuyTransaction(
	_ context.Context, orderID int64,
) (*domain.BuyTransaction, error) {
	txs := r.findBuyTransactions(func(tx domain.BuyTransaction) bool {
		return tx.BuyOrderID == orderID && !tx.Status.IsTerminal()
	})
	if len(txs) <= 0 {
		return nil, domain.ErrTransactionNotFound
	}
	return &txs[0], nil
}

func (r transactionRepositoryImpl) GetBuyTransactionsForOrder(
	_ context.Context, orderID int64,
) ([]domain.BuyTransaction, error) {
	return r.findBuyTransactions(func(tx domain.BuyTransaction) bool {
		return tx.BuyOrderID == orderID
	}), nil
}

func (r transactionRepositoryImpl) UpdateBuyTransaction(
	_ context.Context,
	id int64,
	updateFn func(tx *domain.BuyTransaction) (*domain.BuyTransaction, error),
) error {
	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	tx, ok := r.store.buyTxs[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	updatedTx, err := updateFn(&tx)
	if err != nil {
		return err
	}
	updatedTx.ID = id
	r.store.buyTxs[id] = *updatedTx
	return nil
}

func (r transactionRepositoryImpl) AddSellTransaction(
	_ context.Context, tx *domain.SellTransaction,
) error {
	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	for _, t := range r.store.sellTxs {
		if t.SellOrderID == tx.SellOrderID && !t.Status.IsTerminal() {
			return domain.ErrTransactionPending
		}
	}

	r.store.sellTxSeq++
	tx.ID = r.store.sellTxSeq
	r.store.sellTxs[tx.ID] = *tx
	return nil
}

func (r transactionRepositoryImpl) GetSellTransaction(
	_ context.Context, id int64,
) (*domain.SellTransaction, error) {
	r.store.lock.RLock()
	defer r.store.lock.RUnlock()

	tx, ok := r.store.sellTxs[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return &tx, nil
}

func (r transactionRepositoryImpl) GetPendingSellTransaction(
	_ context.Context, orderID int64,
) (*domain.SellTransaction, error) {
	txs := r.findSellTransactions(func(tx domain.SellTransaction) bool {
		return tx.SellOrderID == orderID && !tx.Status.IsTerminal()
	})
	if len(txs) <= 0 {
		return nil, domain.ErrTransactionNotFound
	}
	return &txs[0], nil
}

func (r transactionRepositoryImpl) GetSellTransactionsForOrder(
	_ context.Context, orderID int64,
) ([]domain.SellTransaction, error) {
	return r.findSellTransactions(func(tx domain.SellTransaction) bool {
		return tx.SellOrderID == orderID
	}), nil
}

func (r transactionRepositoryImpl) UpdateSellTransaction(
	_ context.Context,
	id int64,
	updateFn func(tx *domain.SellTransaction) (*domain.SellTransaction, error),
) error {
	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	tx, ok := r.store.sellTxs[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	updatedTx, err := updateFn(&tx)
	if err != nil {
		return err
	}
	updatedTx.ID = id
	r.store.sellTxs[id] = *updatedTx
	return nil
}

func (r transactionRepositoryImpl) findBuyTransactions(
	filter func(tx domain.BuyTransaction) bool,
) []domain.BuyTransaction {
	r.store.lock.RLock()
	defer r.store.lock.RUnlock()

	txs := make([]domain.BuyTransaction, 0)
	for _, tx := range r.store.buyTxs {
		if filter(tx) {
			txs = append(txs, tx)
		}
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].ID < txs[j].ID })
	return txs
}

func (r transactionRepositoryImpl) findSellTransactions(
	filter func(tx domain.SellTransaction) bool,
) []domain.SellTransaction {
	r.store.lock.RLock()
	defer r.store.lock.RUnlock()

	txs := make([]domain.SellTransaction, 0)
	for _, tx := range r.store.sellTxs {
		if filter(tx) {
			txs = append(txs, tx)
		}
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].ID < txs[j].ID })
	return txs
}
