package dbbadger

import (
	"context"
	"errors"
	"sort"

	"github.com/dgraph-io/badger/v3"
	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

type orderRepositoryImpl struct {
	db *repoManager
}

func (r orderRepositoryImpl) AddOrder(ctx context.Context, order *domain.Order) error {
	id, err := nextID(r.db.orderSeq)
	if err != nil {
		return err
	}

	stored := order.Clone()
	stored.ID = id
	if err := r.db.update(ctx, func(txn *badger.Txn) error {
		return r.db.store.TxInsert(txn, id, &stored)
	}); err != nil {
		return err
	}
	order.ID = id
	return nil
}

func (r orderRepositoryImpl) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	var order *domain.Order
	if err := r.db.view(ctx, func(txn *badger.Txn) error {
		var err error
		order, err = r.getOrder(txn, id)
		return err
	}); err != nil {
		return nil, err
	}
	return order, nil
}

func (r orderRepositoryImpl) GetOpenOrders(ctx context.Context) ([]domain.Order, error) {
	orders, err := r.GetAllOrders(ctx)
	if err != nil {
		return nil, err
	}

	open := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if !o.IsClosed() {
			open = append(open, o)
		}
	}
	return open, nil
}

func (r orderRepositoryImpl) GetAllOrders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	if err := r.db.view(ctx, func(txn *badger.Txn) error {
		return r.db.store.TxFind(txn, &orders, nil)
	}); err != nil {
		return nil, err
	}

	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders, nil
}

func (r orderRepositoryImpl) UpdateOrder(
	ctx context.Context,
	id int64,
	updateFn func(o *domain.Order) (*domain.Order, error),
) error {
	return r.db.update(ctx, func(txn *badger.Txn) error {
		order, err := r.getOrder(txn, id)
		if err != nil {
			return err
		}

		updatedOrder, err := updateFn(order)
		if err != nil {
			return err
		}
		updatedOrder.ID = id
		return r.db.store.TxUpdate(txn, id, updatedOrder)
	})
}

func (r orderRepositoryImpl) getOrder(txn *badger.Txn, id int64) (*domain.Order, error) {
	var order domain.Order
	if err := r.db.store.TxGet(txn, id, &order); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}
