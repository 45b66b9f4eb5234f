package postgresdb

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
)

type counterOfferRepositoryImpl struct {
	db *repoManager
}

func (r counterOfferRepositoryImpl) AddCounterOffer(
	ctx context.Context, counterOffer *domain.CounterOffer,
) error {
	offer, err := json.Marshal(counterOffer.Offer)
	if err != nil {
		return err
	}

	return r.db.querier(ctx).QueryRow(
		ctx, `INSERT INTO counter_offers (offer) VALUES ($1) RETURNING id`, offer,
	).Scan(&counterOffer.ID)
}

func (r counterOfferRepositoryImpl) GetCounterOffer(
	ctx context.Context, id int64,
) (*domain.CounterOffer, error) {
	var (
		counterOffer domain.CounterOffer
		offer        []byte
	)
	if err := r.db.querier(ctx).QueryRow(
		ctx, `SELECT id, offer FROM counter_offers WHERE id = $1`, id,
	).Scan(&counterOffer.ID, &offer); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCounterOfferNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(offer, &counterOffer.Offer); err != nil {
		return nil, err
	}
	return &counterOffer, nil
}
