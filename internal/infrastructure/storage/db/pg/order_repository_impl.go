package postgresdb

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
)

const orderColumns = `id, kind, offer, limit_rate, rate_divisor, limit_rate_inverted,
	amount, per_tx_max_amount, status, remote_offer_id, timestamp`

type orderRepositoryImpl struct {
	db *repoManager
}

func (r orderRepositoryImpl) AddOrder(ctx context.Context, order *domain.Order) error {
	offer, err := json.Marshal(order.Offer)
	if err != nil {
		return err
	}

	// Rates are unsigned, they're stored bit by bit in signed columns.
	return r.db.querier(ctx).QueryRow(ctx, `
		INSERT INTO orders (
			kind, offer, limit_rate, rate_divisor, limit_rate_inverted,
			amount, per_tx_max_amount, status, remote_offer_id, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		int32(order.Kind), offer, int64(order.LimitRate), int64(order.RateDivisor),
		order.LimitRateInverted, order.Amount, order.PerTxMaxAmount,
		int32(order.Status), order.RemoteOfferID, order.Timestamp,
	).Scan(&order.ID)
}

func (r orderRepositoryImpl) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return getOrder(ctx, r.db.querier(ctx), id, false)
}

func (r orderRepositoryImpl) GetOpenOrders(ctx context.Context) ([]domain.Order, error) {
	return r.findOrders(
		ctx, `WHERE status IN ($1, $2)`,
		int32(domain.OrderStatusActive), int32(domain.OrderStatusCancelRequested),
	)
}

func (r orderRepositoryImpl) GetAllOrders(ctx context.Context) ([]domain.Order, error) {
	return r.findOrders(ctx, "")
}

func (r orderRepositoryImpl) UpdateOrder(
	ctx context.Context,
	id int64,
	updateFn func(o *domain.Order) (*domain.Order, error),
) error {
	return r.db.inTx(ctx, func(q querier) error {
		order, err := getOrder(ctx, q, id, true)
		if err != nil {
			return err
		}

		updatedOrder, err := updateFn(order)
		if err != nil {
			return err
		}

		offer, err := json.Marshal(updatedOrder.Offer)
		if err != nil {
			return err
		}
		_, err = q.Exec(ctx, `
			UPDATE orders SET
				offer = $2, limit_rate = $3, rate_divisor = $4,
				limit_rate_inverted = $5, amount = $6, per_tx_max_amount = $7,
				status = $8, remote_offer_id = $9, timestamp = $10
			WHERE id = $1`,
			id, offer, int64(updatedOrder.LimitRate), int64(updatedOrder.RateDivisor),
			updatedOrder.LimitRateInverted, updatedOrder.Amount,
			updatedOrder.PerTxMaxAmount, int32(updatedOrder.Status),
			updatedOrder.RemoteOfferID, updatedOrder.Timestamp,
		)
		return err
	})
}

func (r orderRepositoryImpl) findOrders(
	ctx context.Context, where string, args ...any,
) ([]domain.Order, error) {
	rows, err := r.db.querier(ctx).Query(
		ctx, `SELECT `+orderColumns+` FROM orders `+where+` ORDER BY id`, args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

func getOrder(ctx context.Context, q querier, id int64, forUpdate bool) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	order, err := scanOrder(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		order                  domain.Order
		kind, status           int32
		offer                  []byte
		limitRate, rateDivisor int64
	)
	if err := row.Scan(
		&order.ID, &kind, &offer, &limitRate, &rateDivisor,
		&order.LimitRateInverted, &order.Amount, &order.PerTxMaxAmount,
		&status, &order.RemoteOfferID, &order.Timestamp,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(offer, &order.Offer); err != nil {
		return nil, err
	}

	order.Kind = domain.OrderKind(kind)
	order.Status = domain.OrderStatus(status)
	order.LimitRate = uint64(limitRate)
	order.RateDivisor = uint64(rateDivisor)
	return &order, nil
}
