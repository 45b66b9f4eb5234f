package inmemory

import (
	"context"
	"sort"

	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
)

type orderRepositoryImpl struct {
	store *store
}

func (r orderRepositoryImpl) AddOrder(_ context.Context, order *domain.Order) error {
	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	r.store.orderSeq++
	order.ID = r.store.orderSeq
	r.store.orders[order.ID] = order.Clone()
	return nil
}

func (r orderRepositoryImpl) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	r.store.lock.RLock()
	defer r.store.lock.RUnlock()

	order, ok := r.store.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	clone := order.Clone()
	return &clone, nil
}

func (r orderRepositoryImpl) GetOpenOrders(_ context.Context) ([]domain.Order, error) {
	return r.findOrders(func(o *domain.Order) bool { return !o.IsClosed() }), nil
}

func (r orderRepositoryImpl) GetAllOrders(_ context.Context) ([]domain.Order, error) {
	return r.findOrders(func(*domain.Order) bool { return true }), nil
}

func (r orderRepositoryImpl) UpdateOrder(
	_ context.Context,
	id int64,
	updateFn func(o *domain.Order) (*domain.Order, error),
) error {
	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	stored, ok := r.store.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order := stored.Clone()

	updatedOrder, err := updateFn(&order)
	if err != nil {
		return err
	}
	updatedOrder.ID = id
	r.store.orders[id] = updatedOrder.Clone()
	return nil
}

func (r orderRepositoryImpl) findOrders(filter func(o *domain.Order) bool) []domain.Order {
	r.store.lock.RLock()
	defer r.store.lock.RUnlock()

	orders := make([]domain.Order, 0, len(r.store.orders))
	for _, order := range r.store.orders {
		if filter(&order) {
			orders = append(orders, order.Clone())
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders
}
