package dbbadger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v3"
	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

type counterOfferRepositoryImpl struct {
	db *repoManager
}

func (r counterOfferRepositoryImpl) AddCounterOffer(
	ctx context.Context, counterOffer *domain.CounterOffer,
) error {
	id, err := nextID(r.db.counterOfferSeq)
	if err != nil {
		return err
	}

	stored := domain.CounterOffer{ID: id, Offer: counterOffer.Offer.Clone()}
	if err := r.db.update(ctx, func(txn *badger.Txn) error {
		return r.db.store.TxInsert(txn, id, &stored)
	}); err != nil {
		return err
	}
	counterOffer.ID = id
	return nil
}

func (r counterOfferRepositoryImpl) GetCounterOffer(
	ctx context.Context, id int64,
) (*domain.CounterOffer, error) {
	var counterOffer domain.CounterOffer
	if err := r.db.view(ctx, func(txn *badger.Txn) error {
		return r.db.store.TxGet(txn, id, &counterOffer)
	}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrCounterOfferNotFound
		}
		return nil, err
	}
	return &counterOffer, nil
}
