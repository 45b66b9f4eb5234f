package inmemory

import (
	"context"

	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
)

type counterOfferRepositoryImpl struct {
	store *store
}

func (r counterOfferRepositoryImpl) AddCounterOffer(
	_ context.Context, counterOffer *domain.CounterOffer,
) error {
	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	r.store.counterOfferSeq++
	counterOffer.ID = r.store.counterOfferSeq
	r.store.counterOffers[counterOffer.ID] = domain.CounterOffer{
		ID:    counterOffer.ID,
		Offer: counterOffer.Offer.Clone(),
	}
	return nil
}

func (r counterOfferRepositoryImpl) GetCounterOffer(
	_ context.Context, id int64,
) (*domain.CounterOffer, error) {
	r.store.lock.RLock()
	defer r.store.lock.RUnlock()

	co, ok := r.store.counterOffers[id]
	if !ok {
		return nil, domain.ErrCounterOfferNotFound
	}
	return &domain.CounterOffer{ID: co.ID, Offer: co.Offer.Clone()}, nil
}
