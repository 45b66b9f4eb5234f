package ports

import "github.com/tdex-network/fiatln-daemon/internal/core/domain"

// EventNotifier is notified when orders and transactions reach a terminal
// status.
type EventNotifier interface {
	OrderClosed(order domain.Order)
	BuyTransactionClosed(order domain.Order, tx domain.BuyTransaction)
	SellTransactionClosed(order domain.Order, tx domain.SellTransaction)
}

// ConnectionStatus reports whether the exchange is reachable.
type ConnectionStatus interface {
	IsConnected() bool
}
