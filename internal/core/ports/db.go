package ports

import (
	"context"

	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
)

// RepoManager gives access to all the repositories.
type RepoManager interface {
	OrderRepository() domain.OrderRepository
	TransactionRepository() domain.TransactionRepository
	CounterOfferRepository() domain.CounterOfferRepository
	ConfigRepository() domain.ConfigRepository

	// RunTransaction runs handler atomically. Repository methods called with
	// the ctx given to handler take part in the same db transaction.
	RunTransaction(
		ctx context.Context,
		readOnly bool,
		handler func(ctx context.Context) error,
	) error

	Close()
}
