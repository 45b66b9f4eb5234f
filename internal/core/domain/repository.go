package domain

import "context"

// OrderRepository stores buy and sell orders. Ids are drawn from a single
// sequence shared by both kinds.
type OrderRepository interface {
	// AddOrder stores a new order and sets its ID.
	AddOrder(ctx context.Context, order *Order) error
	GetOrder(ctx context.Context, id int64) (*Order, error)
	// GetOpenOrders returns the orders that are Active or CancelRequested.
	GetOpenOrders(ctx context.Context) ([]Order, error)
	GetAllOrders(ctx context.Context) ([]Order, error)
	UpdateOrder(
		ctx context.Context,
		id int64,
		updateFn func(o *Order) (*Order, error),
	) error
}

// TransactionRepository stores buy and sell transactions. At most one non
// terminal transaction exists per order.
type TransactionRepository interface {
	// AddBuyTransaction stores a new transaction and sets its ID. It fails
	// with ErrTransactionPending if the order has one in progress.
	AddBuyTransaction(ctx context.Context, tx *BuyTransaction) error
	GetBuyTransaction(ctx context.Context, id int64) (*BuyTransaction, error)
	GetBuyTransactionByPaymentHash(
		ctx context.Context, paymentHash string,
	) (*BuyTransaction, error)
	// GetPendingBuyTransaction returns the non terminal transaction of the
	// given order, or ErrTransactionNotFound.
	GetPendingBuyTransaction(ctx context.Context, orderID int64) (*BuyTransaction, error)
	GetBuyTransactionsForOrder(ctx context.Context, orderID int64) ([]BuyTransaction, error)
	UpdateBuyTransaction(
		ctx context.Context,
		id int64,
		updateFn func(tx *BuyTransaction) (*BuyTransaction, error),
	) error

	AddSellTransaction(ctx context.Context, tx *SellTransaction) error
	GetSellTransaction(ctx context.Context, id int64) (*SellTransaction, error)
	GetPendingSellTransaction(ctx context.Context, orderID int64) (*SellTransaction, error)
	GetSellTransactionsForOrder(ctx context.Context, orderID int64) ([]SellTransaction, error)
	UpdateSellTransaction(
		ctx context.Context,
		id int64,
		updateFn func(tx *SellTransaction) (*SellTransaction, error),
	) error
}

type CounterOfferRepository interface {
	// AddCounterOffer stores a new counter offer and sets its ID.
	AddCounterOffer(ctx context.Context, counterOffer *CounterOffer) error
	GetCounterOffer(ctx context.Context, id int64) (*CounterOffer, error)
}

// ConfigRepository is a key-value store for the user settable configuration.
// Known keys get their default value on first access, unknown keys are
// rejected with ErrUnknownConfigKey.
type ConfigRepository interface {
	GetConfigValue(ctx context.Context, key string) (string, error)
	SetConfigValue(ctx context.Context, key, value string) error
	GetConfig(ctx context.Context) (map[string]string, error)
}
