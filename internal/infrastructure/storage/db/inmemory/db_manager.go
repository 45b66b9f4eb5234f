package inmemory

import (
	"context"
	"sync"

	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
	"github.com/tdex-network/fiatln-daemon/internal/core/ports"
)

type RepoManager struct {
	store   *store
	txLock  sync.Mutex
	ordRepo domain.OrderRepository
	txRepo  domain.TransactionRepository
	coRepo  domain.CounterOfferRepository
	cfgRepo domain.ConfigRepository
}

func NewRepoManager() ports.RepoManager {
	s := newStore()
	return &RepoManager{
		store:   s,
		ordRepo: orderRepositoryImpl{s},
		txRepo:  transactionRepositoryImpl{s},
		coRepo:  counterOfferRepositoryImpl{s},
		cfgRepo: configRepositoryImpl{s},
	}
}

func (r *RepoManager) OrderRepository() domain.OrderRepository {
	return r.ordRepo
}

func (r *RepoManager) TransactionRepository() domain.TransactionRepository {
	return r.txRepo
}

func (r *RepoManager) CounterOfferRepository() domain.CounterOfferRepository {
	return r.coRepo
}

func (r *RepoManager) ConfigRepository() domain.ConfigRepository {
	return r.cfgRepo
}

type txKey struct{}

// RunTransaction runs the transactions one at a time. If handler fails, the
// state is restored to what it was before running it. Nested calls join the
// outer transaction.
func (r *RepoManager) RunTransaction(
	ctx context.Context, readOnly bool, handler func(ctx context.Context) error,
) error {
	if ctx.Value(txKey{}) != nil {
		return handler(ctx)
	}

	r.txLock.Lock()
	defer r.txLock.Unlock()

	ctx = context.WithValue(ctx, txKey{}, true)
	if readOnly {
		return handler(ctx)
	}

	snapshot := r.store.snapshot()
	if err := handler(ctx); err != nil {
		r.store.restore(snapshot)
		return err
	}
	return nil
}

func (r *RepoManager) Close() {}

type store struct {
	lock sync.RWMutex

	orderSeq        int64
	buyTxSeq        int64
	sellTxSeq       int64
	counterOfferSeq int64

	orders        map[int64]domain.Order
	buyTxs        map[int64]domain.BuyTransaction
	sellTxs       map[int64]domain.SellTransaction
	counterOffers map[int64]domain.CounterOffer
	config        map[string]string
}

func newStore() *store {
	return &store{
		orders:        make(map[int64]domain.Order),
		buyTxs:        make(map[int64]domain.BuyTransaction),
		sellTxs:       make(map[int64]domain.SellTransaction),
		counterOffers: make(map[int64]domain.CounterOffer),
		config:        make(map[string]string),
	}
}

func (s *store) snapshot() *store {
	s.lock.RLock()
	defer s.lock.RUnlock()

	clone := newStore()
	clone.orderSeq = s.orderSeq
	clone.buyTxSeq = s.buyTxSeq
	clone.sellTxSeq = s.sellTxSeq
	clone.counterOfferSeq = s.counterOfferSeq
	for k, v := range s.orders {
		clone.orders[k] = v.Clone()
	}
	for k, v := range s.buyTxs {
		clone.buyTxs[k] = v
	}
	for k, v := range s.sellTxs {
		clone.sellTxs[k] = v
	}
	for k, v := range s.counterOffers {
		clone.counterOffers[k] = domain.CounterOffer{ID: v.ID, Offer: v.Offer.Clone()}
	}
	for k, v := range s.config {
		clone.config[k] = v
	}
	return clone
}

func (s *store) restore(snapshot *store) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.orderSeq = snapshot.orderSeq
	s.buyTxSeq = snapshot.buyTxSeq
	s.sellTxSeq = snapshot.sellTxSeq
	s.counterOfferSeq = snapshot.counterOfferSeq
	s.orders = snapshot.orders
	s.buyTxs = snapshot.buyTxs
	s.sellTxs = snapshot.sellTxs
	s.counterOffers = snapshot.counterOffers
	s.config = snapshot.config
}
